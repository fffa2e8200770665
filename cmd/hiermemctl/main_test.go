package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateListStatsDeleteRoundTrip(t *testing.T) {
	dataRoot := filepath.Join(t.TempDir(), "data")

	require.NoError(t, runCreate([]string{"--id", "s1", "--type", "general_chat", "--data-root", dataRoot}))
	require.NoError(t, runList([]string{"--data-root", dataRoot}))
	require.NoError(t, runStats([]string{"--id", "s1", "--data-root", dataRoot}))
	require.NoError(t, runDelete([]string{"--id", "s1", "--data-root", dataRoot}))

	// A deleted session has nothing left to discover or restore.
	err := runStats([]string{"--id", "s1", "--data-root", dataRoot})
	require.Error(t, err)
}

func TestCreateGeneratesIDWhenOmitted(t *testing.T) {
	dataRoot := filepath.Join(t.TempDir(), "data")
	require.NoError(t, runCreate([]string{"--type", "general_chat", "--data-root", dataRoot}))
}

func TestCreateThenRestoreRoundTrip(t *testing.T) {
	dataRoot := filepath.Join(t.TempDir(), "data")

	require.NoError(t, runCreate([]string{"--id", "s1", "--type", "general_chat", "--data-root", dataRoot}))

	// A fresh manager (simulated process restart) must be able to restore
	// by reading the session's on-disk metadata, without the caller
	// having to re-supply its project type.
	require.NoError(t, runRestore([]string{"--id", "s1", "--data-root", dataRoot}))
}

func TestRestoreRejectsUnknownSession(t *testing.T) {
	dataRoot := filepath.Join(t.TempDir(), "data")
	err := runRestore([]string{"--id", "nope", "--data-root", dataRoot})
	require.Error(t, err)
}

func TestStatsRequiresMatchingPassphraseForMedical(t *testing.T) {
	dataRoot := filepath.Join(t.TempDir(), "data")
	require.NoError(t, runCreate([]string{"--id", "med1", "--type", "medical_peer", "--passphrase", "secret", "--data-root", dataRoot}))

	err := runStats([]string{"--id", "med1", "--passphrase", "wrong", "--data-root", dataRoot})
	require.Error(t, err)

	require.NoError(t, runStats([]string{"--id", "med1", "--passphrase", "secret", "--data-root", dataRoot}))
}

func TestDeleteAllMedicalRejectsWrongToken(t *testing.T) {
	dataRoot := filepath.Join(t.TempDir(), "data")
	require.NoError(t, runCreate([]string{"--id", "med1", "--type", "medical_peer", "--passphrase", "secret", "--data-root", dataRoot}))

	err := runDeleteAllMedical([]string{"--confirm", "wrong", "--data-root", dataRoot})
	require.Error(t, err)

	require.NoError(t, runStats([]string{"--id", "med1", "--passphrase", "secret", "--data-root", dataRoot}))
}

func TestForkCreatesIndependentSession(t *testing.T) {
	dataRoot := filepath.Join(t.TempDir(), "data")
	require.NoError(t, runCreate([]string{"--id", "s1", "--type", "general_chat", "--data-root", dataRoot}))
	require.NoError(t, runFork([]string{"--id", "s1", "--new-id", "s1-fork", "--data-root", dataRoot}))
	require.NoError(t, runStats([]string{"--id", "s1-fork", "--data-root", dataRoot}))
}

func TestPrintTableDoesNotPanicOnEmptyRows(t *testing.T) {
	printTable([]string{"A", "B"}, nil)
}
