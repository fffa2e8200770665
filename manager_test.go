package hiermem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), 4)
}

func TestCreateSessionChoosesStorageRootByProjectType(t *testing.T) {
	m := newTestManager(t)
	s, err := m.CreateSession("s1", ProjectGeneralChat, "")
	require.NoError(t, err)
	require.False(t, s.Encrypted())
	require.Contains(t, s.storageRoot, generalDir)

	med, err := m.CreateSession("med1", ProjectMedicalPeer, "p1")
	require.NoError(t, err)
	require.True(t, med.Encrypted())
	require.Contains(t, med.storageRoot, medicalSecureDir)

	_, err = os.Stat(filepath.Join(med.storageRoot, "salt"))
	require.NoError(t, err)
}

func TestCreateSessionRejectsDuplicateID(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateSession("s1", ProjectGeneralChat, "")
	require.NoError(t, err)
	_, err = m.CreateSession("s1", ProjectGeneralChat, "")
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCreateSessionRequiresPassphraseForMedical(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateSession("med1", ProjectMedicalAssistant, "")
	require.ErrorIs(t, err, ErrInvalidProjectType)
}

func TestCreateSessionRejectsPathTraversalID(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateSession("../escape", ProjectGeneralChat, "")
	require.ErrorIs(t, err, ErrInvalidSessionID)
}

func TestGetSessionNotFound(t *testing.T) {
	m := newTestManager(t)
	_, err := m.GetSession("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSessionIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateSession("s1", ProjectGeneralChat, "")
	require.NoError(t, err)

	require.NoError(t, m.DeleteSession("s1"))
	require.NoError(t, m.DeleteSession("s1"))

	_, err = m.GetSession("s1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAllMedicalRequiresExactToken(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateSession("med1", ProjectMedicalPeer, "p1")
	require.NoError(t, err)

	err = m.DeleteAllMedical("wrong")
	require.ErrorIs(t, err, ErrConfirmationRequired)
	require.Len(t, m.ListSessions(), 1)
}

func TestDeleteAllMedicalDestroysOnlyMedical(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateSession("med1", ProjectMedicalPeer, "p1")
	require.NoError(t, err)
	_, err = m.CreateSession("med2", ProjectMedicalAssistant, "p2")
	require.NoError(t, err)
	gen, err := m.CreateSession("gen1", ProjectGeneralChat, "")
	require.NoError(t, err)

	err = m.DeleteAllMedical(ConfirmationToken)
	require.NoError(t, err)

	sessions := m.ListSessions()
	require.Len(t, sessions, 1)
	require.Equal(t, "gen1", sessions[0].ID)

	_, err = os.Stat(filepath.Dir(gen.storageRoot))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(m.dataRoot, medicalSecureDir))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCheckpointAndRestoreRoundTrip(t *testing.T) {
	dataRoot := t.TempDir()
	m := NewManager(dataRoot, 4)
	s, err := m.CreateSession("s1", ProjectGeneralChat, "")
	require.NoError(t, err)
	_, err = s.AddMessage(RoleUser, "remember this", nil)
	require.NoError(t, err)

	require.NoError(t, m.Checkpoint("s1"))

	m2 := NewManager(dataRoot, 4)
	restored, err := m2.Restore("s1", ProjectGeneralChat, "")
	require.NoError(t, err)
	require.Equal(t, s.Stats().Counts, restored.Stats().Counts)

	_, err = m2.Restore("s1", ProjectGeneralChat, "")
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestRestoreMedicalRequiresMatchingPassphrase(t *testing.T) {
	dataRoot := t.TempDir()
	m := NewManager(dataRoot, 4)
	s, err := m.CreateSession("med1", ProjectMedicalPeer, "correct horse")
	require.NoError(t, err)
	_, err = s.AddMessage(RoleUser, "symptom notes", nil)
	require.NoError(t, err)
	require.NoError(t, m.Checkpoint("med1"))

	m2 := NewManager(dataRoot, 4)
	_, err = m2.Restore("med1", ProjectMedicalPeer, "wrong passphrase")
	require.Error(t, err)

	m3 := NewManager(dataRoot, 4)
	restored, err := m3.Restore("med1", ProjectMedicalPeer, "correct horse")
	require.NoError(t, err)
	require.Equal(t, 1, restored.Stats().Counts[LayerActive])
}

func TestDiscoverSessionsReadsMetaAcrossProcesses(t *testing.T) {
	dataRoot := t.TempDir()
	m := NewManager(dataRoot, 4)
	_, err := m.CreateSession("s1", ProjectGeneralChat, "")
	require.NoError(t, err)
	_, err = m.CreateSession("med1", ProjectMedicalPeer, "p1")
	require.NoError(t, err)

	m2 := NewManager(dataRoot, 4)
	descriptors, err := m2.DiscoverSessions()
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	byID := map[string]SessionDescriptor{}
	for _, d := range descriptors {
		byID[d.ID] = d
	}
	require.False(t, byID["s1"].Encrypted)
	require.True(t, byID["med1"].Encrypted)
	require.Equal(t, ProjectMedicalPeer, byID["med1"].ProjectType)
}

func TestSessionMetaFindsSessionWithoutLoadingIt(t *testing.T) {
	dataRoot := t.TempDir()
	m := NewManager(dataRoot, 4)
	_, err := m.CreateSession("med1", ProjectMedicalAssistant, "p1")
	require.NoError(t, err)

	m2 := NewManager(dataRoot, 4)
	projectType, encrypted, err := m2.SessionMeta("med1")
	require.NoError(t, err)
	require.Equal(t, ProjectMedicalAssistant, projectType)
	require.True(t, encrypted)

	_, _, err = m2.SessionMeta("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPurgeSessionRemovesStorageAcrossProcesses(t *testing.T) {
	dataRoot := t.TempDir()
	m := NewManager(dataRoot, 4)
	s, err := m.CreateSession("med1", ProjectMedicalPeer, "p1")
	require.NoError(t, err)
	root := s.storageRoot

	// Purge from a second, empty Manager, simulating a separate CLI
	// invocation that never loaded the session into memory.
	m2 := NewManager(dataRoot, 4)
	require.NoError(t, m2.PurgeSession("med1"))

	_, err = os.Stat(root)
	require.True(t, os.IsNotExist(err))

	// Idempotent: purging an already-gone session is not an error.
	require.NoError(t, m2.PurgeSession("med1"))
}

func TestPurgeAllMedicalDiscoversAcrossProcesses(t *testing.T) {
	dataRoot := t.TempDir()
	m := NewManager(dataRoot, 4)
	_, err := m.CreateSession("med1", ProjectMedicalPeer, "p1")
	require.NoError(t, err)
	_, err = m.CreateSession("gen1", ProjectGeneralChat, "")
	require.NoError(t, err)

	m2 := NewManager(dataRoot, 4)
	require.ErrorIs(t, m2.PurgeAllMedical("wrong"), ErrConfirmationRequired)

	require.NoError(t, m2.PurgeAllMedical(ConfirmationToken))

	remaining, err := m2.DiscoverSessions()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "gen1", remaining[0].ID)
}

func TestForkSessionDeepCopiesLayersAndBookmarks(t *testing.T) {
	m := newTestManager(t)
	s, err := m.CreateSession("s1", ProjectGeneralChat, "")
	require.NoError(t, err)
	id, err := s.AddMessage(RoleUser, "remember this", nil)
	require.NoError(t, err)
	_, err = s.bookmarks.Create("label", "desc", nil, 0, []string{id})
	require.NoError(t, err)

	fork, err := m.ForkSession("s1", "s1-fork", "")
	require.NoError(t, err)
	require.Equal(t, "s1-fork", fork.ID())
	require.Equal(t, s.Stats().Counts, fork.Stats().Counts)
	require.Equal(t, 1, fork.Stats().BookmarkCount)

	// The fork is independent: new messages on one don't appear on the other.
	_, err = fork.AddMessage(RoleUser, "only on the fork", nil)
	require.NoError(t, err)
	require.NotEqual(t, s.Stats().Counts[LayerActive], fork.Stats().Counts[LayerActive])
}

func TestForkEncryptedSessionMintsFreshEnvelope(t *testing.T) {
	m := newTestManager(t)
	s, err := m.CreateSession("med1", ProjectMedicalPeer, "correct horse")
	require.NoError(t, err)
	_, err = s.AddMessage(RoleUser, "symptom notes", nil)
	require.NoError(t, err)

	_, err = m.ForkSession("med1", "med1-fork", "")
	require.Error(t, err)

	fork, err := m.ForkSession("med1", "med1-fork", "a different passphrase")
	require.NoError(t, err)
	require.True(t, fork.Encrypted())
	require.NotSame(t, s.envelope, fork.envelope)
	require.Equal(t, s.Stats().Counts, fork.Stats().Counts)
}

func TestCheckpointAllCheckpointsEverySession(t *testing.T) {
	dataRoot := t.TempDir()
	m := NewManager(dataRoot, 4)
	_, err := m.CreateSession("s1", ProjectGeneralChat, "")
	require.NoError(t, err)
	_, err = m.CreateSession("s2", ProjectGeneralChat, "")
	require.NoError(t, err)

	require.NoError(t, m.CheckpointAll())

	for _, id := range []string{"s1", "s2"} {
		s, err := m.GetSession(id)
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(s.storageRoot, snapshotFileName))
		require.NoError(t, err)
	}
}
