package hiermem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	messages map[string]*Message
}

func (f *fakeResolver) resolveMessage(id string) (*Message, bool) {
	m, ok := f.messages[id]
	return m, ok
}

func (f *fakeResolver) neighbors(id string, window int) []*Message {
	return nil
}

func TestCreateBookmarkRejectsEmptyMessageIDs(t *testing.T) {
	reg := NewBookmarkRegistry("s1")
	_, err := reg.Create("label", "desc", nil, 0.5, nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCreateAndGetBookmark(t *testing.T) {
	reg := NewBookmarkRegistry("s1")
	bm, err := reg.Create("label", "desc", []string{"tag1"}, 0.8, []string{"m1"})
	require.NoError(t, err)
	require.NotEmpty(t, bm.ID)

	got, err := reg.Get(bm.ID)
	require.NoError(t, err)
	require.Equal(t, bm.ID, got.ID)
}

func TestGetUnknownBookmark(t *testing.T) {
	reg := NewBookmarkRegistry("s1")
	_, err := reg.Get("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMarkOrphanedWhenReferenceGone(t *testing.T) {
	reg := NewBookmarkRegistry("s1")
	bm, err := reg.Create("label", "desc", nil, 0.5, []string{"m1"})
	require.NoError(t, err)

	resolver := &fakeResolver{messages: map[string]*Message{}}
	reg.MarkOrphanedIfUnresolvable(bm.ID, resolver)
	require.True(t, reg.IsOrphaned(bm.ID))
}

func TestContextResolvesSurvivingReference(t *testing.T) {
	reg := NewBookmarkRegistry("s1")
	bm, err := reg.Create("label", "desc", nil, 0.5, []string{"m1"})
	require.NoError(t, err)

	resolver := &fakeResolver{messages: map[string]*Message{
		"m1": {ID: "m1", Layer: LayerMediumTerm},
	}}
	entries, err := reg.Context(bm.ID, 2, resolver)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, LayerMediumTerm, entries[0].Layer)
}
