package hiermem

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the Session Manager, HierarchicalMemory, and
// their collaborators. Callers should use errors.Is against these rather
// than matching on message text.
var (
	ErrNotFound             = errors.New("hiermem: not found")
	ErrAlreadyExists        = errors.New("hiermem: already exists")
	ErrInvalidProjectType   = errors.New("hiermem: invalid project type")
	ErrInvalidArgument      = errors.New("hiermem: invalid argument")
	ErrConfirmationRequired = errors.New("hiermem: confirmation required")
	ErrEncryptionRequired   = errors.New("hiermem: encryption required")
	ErrDecryptionFailed     = errors.New("hiermem: decryption failed")
	ErrStorageError         = errors.New("hiermem: storage error")
	ErrSchedulerError       = errors.New("hiermem: scheduler error")
	ErrEmbeddingUnavailable = errors.New("hiermem: embedding collaborator unavailable")
	ErrLLMUnavailable       = errors.New("hiermem: generation collaborator unavailable")
	ErrSessionQuarantined   = errors.New("hiermem: session quarantined")
	ErrInvalidSessionID     = errors.New("hiermem: invalid session id")
)

// MedicalDeletionError aggregates every failure encountered while running
// the medical bulk-deletion algorithm (stop writes, drain scheduler,
// destroy key, unlink directory, deregister). Partial failure is reported
// as a single error rather than abandoning remaining steps, since each step
// is independent of the others' success.
type MedicalDeletionError struct {
	SessionID string
	Errs      []error
}

func (e *MedicalDeletionError) Error() string {
	return fmt.Sprintf("hiermem: medical deletion of session %q failed with %d error(s): %v", e.SessionID, len(e.Errs), e.Errs)
}

func (e *MedicalDeletionError) Unwrap() []error {
	return e.Errs
}

// NewMedicalDeletionError returns nil if errs contains no non-nil errors,
// otherwise a *MedicalDeletionError carrying the non-nil ones.
func NewMedicalDeletionError(sessionID string, errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	if len(nonNil) == 0 {
		return nil
	}
	return &MedicalDeletionError{SessionID: sessionID, Errs: nonNil}
}
