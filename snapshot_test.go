package hiermem

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Hirogarden/AuraNexus/cryptenv"
)

func writeGarbageFile(path string) error {
	return os.WriteFile(path, []byte("not a snapshot"), 0o644)
}

func TestSnapshotRoundTripPlaintext(t *testing.T) {
	root := t.TempDir()
	session := NewSession("s1", ProjectGeneralChat, root, false, nil, 4, 0, 0)

	for i := 0; i < 5; i++ {
		_, err := session.AddMessage(RoleUser, "hello", nil)
		require.NoError(t, err)
	}

	path := filepath.Join(root, "snapshot.bin")
	require.NoError(t, session.SaveSnapshot(path))

	restored := NewSession("s1", ProjectGeneralChat, root, false, nil, 4, 0, 0)
	require.NoError(t, restored.LoadSnapshot(path))

	require.Equal(t, session.Stats().Counts, restored.Stats().Counts)
	recent := restored.GetRecent(10)
	require.Len(t, recent, 5)
}

func TestSnapshotRoundTripEncrypted(t *testing.T) {
	root := t.TempDir()
	salt, err := cryptenv.NewSalt()
	require.NoError(t, err)
	envelope := cryptenv.New("a passphrase", salt)

	session := NewSession("medical-1", ProjectMedicalPeer, root, true, envelope, 4, 0, 0)
	for i := 0; i < 3; i++ {
		_, err := session.AddMessage(RoleUser, "sensitive note", nil)
		require.NoError(t, err)
	}

	path := filepath.Join(root, "snapshot.bin")
	require.NoError(t, session.SaveSnapshot(path))

	restored := NewSession("medical-1", ProjectMedicalPeer, root, true, envelope, 4, 0, 0)
	require.NoError(t, restored.LoadSnapshot(path))
	require.Equal(t, session.Stats().Counts, restored.Stats().Counts)
}

func TestSnapshotRoundTripPreservesBookmarksAndQueue(t *testing.T) {
	root := t.TempDir()
	session := NewSession("s1", ProjectGeneralChat, root, false, nil, 4, 0, 0)

	var firstID string
	for i := 0; i < 65; i++ {
		id, err := session.AddMessage(RoleUser, fmt.Sprintf("msg-%d", i), nil)
		require.NoError(t, err)
		if i == 0 {
			firstID = id
		}
	}
	_, err := session.bookmarks.Create("chapter-1", "start of the story", nil, 0, []string{firstID})
	require.NoError(t, err)

	path := filepath.Join(root, "snapshot.bin")
	require.NoError(t, session.SaveSnapshot(path))

	restored := NewSession("s1", ProjectGeneralChat, root, false, nil, 4, 0, 0)
	require.NoError(t, restored.LoadSnapshot(path))

	require.Equal(t, session.Stats().Counts, restored.Stats().Counts)
	require.Equal(t, session.Stats().BookmarkCount, restored.Stats().BookmarkCount)
	require.Equal(t, session.Stats().CompressionQueueDepth, restored.Stats().CompressionQueueDepth)
	require.Equal(t, 1, restored.Stats().BookmarkCount)
	require.True(t, restored.Stats().CompressionQueueDepth > 0)
}

func TestSnapshotLoadFailsWithWrongEnvelope(t *testing.T) {
	root := t.TempDir()
	salt, err := cryptenv.NewSalt()
	require.NoError(t, err)
	envelope := cryptenv.New("correct passphrase", salt)

	session := NewSession("medical-2", ProjectMedicalPeer, root, true, envelope, 4, 0, 0)
	_, err = session.AddMessage(RoleUser, "note", nil)
	require.NoError(t, err)

	path := filepath.Join(root, "snapshot.bin")
	require.NoError(t, session.SaveSnapshot(path))

	wrongSalt, err := cryptenv.NewSalt()
	require.NoError(t, err)
	wrongEnvelope := cryptenv.New("wrong passphrase", wrongSalt)
	restored := NewSession("medical-2", ProjectMedicalPeer, root, true, wrongEnvelope, 4, 0, 0)
	require.Error(t, restored.LoadSnapshot(path))
}

func TestSnapshotLoadRejectsBadMagic(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "snapshot.bin")
	require.NoError(t, writeGarbageFile(path))

	session := NewSession("s2", ProjectGeneralChat, root, false, nil, 4, 0, 0)
	require.Error(t, session.LoadSnapshot(path))
}
