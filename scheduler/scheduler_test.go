package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	hiermem "github.com/Hirogarden/AuraNexus"
	"github.com/Hirogarden/AuraNexus/llmapi"
	"github.com/Hirogarden/AuraNexus/log"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	sessions []*hiermem.Session
}

func (f *fakeSource) Sessions() []*hiermem.Session { return f.sessions }

type fakeSummarizer struct{ calls int }

func (f *fakeSummarizer) Summarize(ctx context.Context, messages []llmapi.SourceMessage, level llmapi.Level) (llmapi.SummaryResult, error) {
	f.calls++
	var refs []string
	for _, m := range messages {
		refs = append(refs, m.ID)
	}
	return llmapi.SummaryResult{Content: "summary of batch", References: refs}, nil
}

type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dim)
	v[0] = 1
	return v, nil
}
func (f fakeEmbedder) Dimension() int { return f.dim }

func newSessionWithQueuedBatch(t *testing.T, idle time.Duration) *hiermem.Session {
	t.Helper()
	m := hiermem.NewManager(t.TempDir(), 4)
	session, err := m.CreateSession("s1", hiermem.ProjectGeneralChat, "")
	require.NoError(t, err)
	for i := 0; i < 61; i++ {
		_, err := session.AddMessage(hiermem.RoleUser, fmt.Sprintf("m%d", i), nil)
		require.NoError(t, err)
	}
	require.Equal(t, 1, session.Stats().CompressionQueueDepth)
	return session
}

func TestProcessOneBatchIngestsWhenIdle(t *testing.T) {
	session := newSessionWithQueuedBatch(t, 0)
	summarizer := &fakeSummarizer{}
	sched := New(&fakeSource{sessions: []*hiermem.Session{session}}, summarizer, fakeEmbedder{dim: 4}, Config{IdleThreshold: time.Nanosecond, LongIdleThreshold: time.Nanosecond})

	sched.tick(context.Background(), log.NewNullLogger())

	require.Equal(t, 1, summarizer.calls)
	stats := session.Stats()
	require.Equal(t, 0, stats.CompressionQueueDepth)
	require.Equal(t, 1, stats.Counts[hiermem.LayerMediumTerm])
}

func TestProcessOneBatchSkipsWhenNotIdle(t *testing.T) {
	session := newSessionWithQueuedBatch(t, 0)
	summarizer := &fakeSummarizer{}
	sched := New(&fakeSource{sessions: []*hiermem.Session{session}}, summarizer, fakeEmbedder{dim: 4}, Config{IdleThreshold: time.Hour, LongIdleThreshold: time.Hour})

	sched.tick(context.Background(), log.NewNullLogger())

	require.Equal(t, 0, summarizer.calls)
	require.Equal(t, 1, session.Stats().CompressionQueueDepth)
}

func TestProcessOneBatchSkipsDestroyedSession(t *testing.T) {
	session := newSessionWithQueuedBatch(t, 0)
	session.Destroy()
	summarizer := &fakeSummarizer{}
	sched := New(&fakeSource{sessions: []*hiermem.Session{session}}, summarizer, fakeEmbedder{dim: 4}, Config{IdleThreshold: 0, LongIdleThreshold: 0})

	sched.tick(context.Background(), log.NewNullLogger())
	require.Equal(t, 0, summarizer.calls)
}
