package hiermem

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Hirogarden/AuraNexus/cryptenv"
)

// ConfirmationToken is the literal string delete_all_medical requires.
const ConfirmationToken = "DELETE_ALL_MEDICAL_DATA"

const (
	medicalSecureDir = "medical_secure"
	generalDir       = "general"
)

var validSessionID = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// validateSessionID enforces the §6 identifier format and rejects anything
// that could escape the storage root.
func validateSessionID(id string) error {
	if !validSessionID.MatchString(id) {
		return fmt.Errorf("%w: session id %q", ErrInvalidSessionID, id)
	}
	if id == "." || id == ".." || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: session id %q", ErrInvalidSessionID, id)
	}
	return nil
}

// SessionDescriptor is the summary returned by ListSessions.
type SessionDescriptor struct {
	ID           string
	ProjectType  ProjectType
	Encrypted    bool
	LastActivity time.Time
	LayerSizes   map[Layer]int
}

// Manager owns the registry of live sessions: construction with the
// correct storage root and encryption posture, enumeration, deletion, and
// the medical bulk-deletion operation. Registry mutation is serialized
// under a single writer lock; the registry is the only cross-session
// shared structure.
type Manager struct {
	mu                   sync.Mutex
	dataRoot             string
	sessions             map[string]*Session
	embeddingDim         int
	compressionBatchSize int
	backpressureBound    int
}

// ManagerOption configures optional Manager tuning knobs at construction.
type ManagerOption func(*Manager)

// WithCompressionBatchSize overrides the default number of records
// coalesced into one compression batch, for every session this Manager
// constructs.
func WithCompressionBatchSize(n int) ManagerOption {
	return func(m *Manager) { m.compressionBatchSize = n }
}

// WithBackpressureBound overrides the default compression-queue capacity
// above which a session reports itself "behind" in Stats().
func WithBackpressureBound(n int) ManagerOption {
	return func(m *Manager) { m.backpressureBound = n }
}

// NewManager returns a Manager rooted at dataRoot, which must already
// exist or be creatable. embeddingDim is the fixed vector dimension every
// session in this manager uses.
func NewManager(dataRoot string, embeddingDim int, opts ...ManagerOption) *Manager {
	m := &Manager{
		dataRoot:     dataRoot,
		sessions:     make(map[string]*Session),
		embeddingDim: embeddingDim,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) storageRoot(id string, projectType ProjectType) string {
	if projectType.IsMedical() {
		return filepath.Join(m.dataRoot, medicalSecureDir, id)
	}
	return filepath.Join(m.dataRoot, generalDir, id)
}

// CreateSession constructs and registers a new session. encryptionPassphrase
// is required for medical project types and ignored otherwise.
func (m *Manager) CreateSession(id string, projectType ProjectType, encryptionPassphrase string) (*Session, error) {
	if err := validateSessionID(id); err != nil {
		return nil, err
	}
	if !projectType.valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProjectType, projectType)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		return nil, fmt.Errorf("%w: session %q", ErrAlreadyExists, id)
	}

	encrypted := projectType.IsMedical()
	if encrypted && encryptionPassphrase == "" {
		return nil, fmt.Errorf("%w: medical session %q requires a passphrase", ErrInvalidProjectType, id)
	}

	root := m.storageRoot(id, projectType)
	if err := os.MkdirAll(filepath.Join(root, "blobs"), 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	if err := os.MkdirAll(filepath.Join(root, "vectors"), 0o700); err != nil {
		os.RemoveAll(root)
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	var envelope *cryptenv.Envelope
	if encrypted {
		salt, err := cryptenv.NewSalt()
		if err != nil {
			os.RemoveAll(root)
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		if err := os.WriteFile(filepath.Join(root, "salt"), salt[:], 0o600); err != nil {
			os.RemoveAll(root)
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		envelope = cryptenv.New(encryptionPassphrase, salt)
	}

	if err := writeSessionMeta(root, id, projectType, encrypted); err != nil {
		os.RemoveAll(root)
		return nil, err
	}

	session := NewSession(id, projectType, root, encrypted, envelope, m.embeddingDim, m.compressionBatchSize, m.backpressureBound)
	m.sessions[id] = session
	return session, nil
}

// GetSession returns the live session for id, or ErrNotFound.
func (m *Manager) GetSession(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %q", ErrNotFound, id)
	}
	return session, nil
}

// Sessions returns the live session handles, for the Compression
// Scheduler's round-robin wiring. Callers must not mutate the slice's
// backing sessions outside their own exported methods.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// ListSessions returns a descriptor for every live session.
func (m *Manager) ListSessions() []SessionDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionDescriptor, 0, len(m.sessions))
	for _, s := range m.sessions {
		stats := s.Stats()
		out = append(out, SessionDescriptor{
			ID:           s.ID(),
			ProjectType:  s.ProjectType(),
			Encrypted:    s.Encrypted(),
			LastActivity: s.LastActivity(),
			LayerSizes:   stats.Counts,
		})
	}
	return out
}

// DeleteSession destroys a single session: it is idempotent, a second call
// on an already-deleted id returns successfully.
func (m *Manager) DeleteSession(id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return m.destroySession(session)
}

// destroySession runs the teardown sequence common to single-session
// delete and medical bulk delete: stop writes, destroy key material,
// unlink the directory.
func (m *Manager) destroySession(session *Session) error {
	session.Destroy()
	if session.Encrypted() && session.envelope != nil {
		session.envelope.Shred()
	}
	if err := os.RemoveAll(session.storageRoot); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return nil
}

const snapshotFileName = "snapshot.bin"

// Checkpoint writes a durable snapshot of the session to its storage root.
// A subsequent process can recover it with Restore.
func (m *Manager) Checkpoint(id string) error {
	session, err := m.GetSession(id)
	if err != nil {
		return err
	}
	if err := session.SaveSnapshot(filepath.Join(session.storageRoot, snapshotFileName)); err != nil {
		return err
	}
	return session.saveBookmarks()
}

// CheckpointAll checkpoints every live session, collecting per-session
// failures rather than stopping at the first one.
func (m *Manager) CheckpointAll() error {
	var errs []error
	for _, session := range m.Sessions() {
		if err := session.SaveSnapshot(filepath.Join(session.storageRoot, snapshotFileName)); err != nil {
			errs = append(errs, fmt.Errorf("session %q: %w", session.ID(), err))
			continue
		}
		if err := session.saveBookmarks(); err != nil {
			errs = append(errs, fmt.Errorf("session %q: %w", session.ID(), err))
		}
	}
	if len(errs) > 0 {
		return NewMedicalDeletionError("(checkpoint all)", errs...)
	}
	return nil
}

// Restore re-registers a previously checkpointed session from disk.
// encryptionPassphrase is required for medical project types and must
// match the passphrase the session was created with; the salt file
// written at CreateSession time is read to re-derive the key.
func (m *Manager) Restore(id string, projectType ProjectType, encryptionPassphrase string) (*Session, error) {
	if err := validateSessionID(id); err != nil {
		return nil, err
	}
	if !projectType.valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProjectType, projectType)
	}

	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: session %q", ErrAlreadyExists, id)
	}
	m.mu.Unlock()

	encrypted := projectType.IsMedical()
	root := m.storageRoot(id, projectType)

	var envelope *cryptenv.Envelope
	if encrypted {
		if encryptionPassphrase == "" {
			return nil, fmt.Errorf("%w: medical session %q requires a passphrase", ErrInvalidProjectType, id)
		}
		saltBytes, err := os.ReadFile(filepath.Join(root, "salt"))
		if err != nil {
			return nil, fmt.Errorf("%w: reading salt: %v", ErrStorageError, err)
		}
		var salt [cryptenv.SaltSize]byte
		copy(salt[:], saltBytes)
		envelope = cryptenv.New(encryptionPassphrase, salt)
	}

	session := NewSession(id, projectType, root, encrypted, envelope, m.embeddingDim, m.compressionBatchSize, m.backpressureBound)
	if err := session.LoadSnapshot(filepath.Join(root, snapshotFileName)); err != nil {
		return nil, err
	}
	if err := session.loadBookmarks(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()
	return session, nil
}

// ForkSession deep-copies an existing session's entire state — every
// layer, bookmark, and pending compression item — into a brand new
// session under newID, leaving the source untouched. The source's records
// are read through the source's own live envelope. Forking an encrypted
// session requires a passphrase, from which the fork's key is derived under
// a freshly minted salt; the passphrase is not checked against the
// source's. The fork never shares key material with its parent, so
// destroying one session's key never affects the other.
func (m *Manager) ForkSession(sourceID, newID, encryptionPassphrase string) (*Session, error) {
	source, err := m.GetSession(sourceID)
	if err != nil {
		return nil, err
	}
	if err := validateSessionID(newID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, exists := m.sessions[newID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: session %q", ErrAlreadyExists, newID)
	}
	m.mu.Unlock()

	projectType := source.ProjectType()
	encrypted := source.Encrypted()
	if encrypted && encryptionPassphrase == "" {
		return nil, fmt.Errorf("%w: forking encrypted session %q requires its passphrase", ErrInvalidProjectType, sourceID)
	}

	tmp, err := os.CreateTemp("", "hiermem-fork-*.bin")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := source.SaveSnapshot(tmpPath); err != nil {
		return nil, err
	}

	scratch := NewSession(source.ID(), projectType, "", encrypted, source.envelope, m.embeddingDim, m.compressionBatchSize, m.backpressureBound)
	if err := scratch.LoadSnapshot(tmpPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	root := m.storageRoot(newID, projectType)
	if err := os.MkdirAll(filepath.Join(root, "blobs"), 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	if err := os.MkdirAll(filepath.Join(root, "vectors"), 0o700); err != nil {
		os.RemoveAll(root)
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	var envelope *cryptenv.Envelope
	if encrypted {
		salt, err := cryptenv.NewSalt()
		if err != nil {
			os.RemoveAll(root)
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		if err := os.WriteFile(filepath.Join(root, "salt"), salt[:], 0o600); err != nil {
			os.RemoveAll(root)
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		envelope = cryptenv.New(encryptionPassphrase, salt)
	}
	if err := writeSessionMeta(root, newID, projectType, encrypted); err != nil {
		os.RemoveAll(root)
		return nil, err
	}

	// TODO: re-seal the source's blobs/ under the fork's new envelope so
	// resolveMessage recovers pre-fork original message bodies for the
	// fork too, not just its own post-fork summaries. Until then a forked
	// session's pre-fork summaries fall back to their own content.
	scratch.id = newID
	scratch.storageRoot = root
	scratch.envelope = envelope
	scratch.bookmarks.idPrefix = newID

	if err := scratch.SaveSnapshot(filepath.Join(root, snapshotFileName)); err != nil {
		os.RemoveAll(root)
		return nil, err
	}
	if err := scratch.saveBookmarks(); err != nil {
		os.RemoveAll(root)
		return nil, err
	}

	m.mu.Lock()
	m.sessions[newID] = scratch
	m.mu.Unlock()
	return scratch, nil
}

// SummarizeMedical returns descriptors for every session whose project
// type is one of the medical variants.
func (m *Manager) SummarizeMedical() []SessionDescriptor {
	all := m.ListSessions()
	out := make([]SessionDescriptor, 0, len(all))
	for _, d := range all {
		if d.ProjectType.IsMedical() {
			out = append(out, d)
		}
	}
	return out
}

// DeleteAllMedical destroys every medical session currently loaded in this
// Manager's registry. confirmationToken must equal ConfirmationToken
// exactly, or the call fails with ErrConfirmationRequired and leaves state
// unchanged. Failures on individual sessions are collected and returned as
// a single *MedicalDeletionError; a failure on one session does not block
// the others. Long-running hosts that keep sessions loaded (serve) should
// call this one; callers that can't assume a session is already loaded,
// such as a one-shot CLI invocation, should call PurgeAllMedical instead.
func (m *Manager) DeleteAllMedical(confirmationToken string) error {
	if confirmationToken != ConfirmationToken {
		return ErrConfirmationRequired
	}

	m.mu.Lock()
	var targets []*Session
	for id, s := range m.sessions {
		if s.ProjectType().IsMedical() {
			targets = append(targets, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	var errs []error
	for _, session := range targets {
		if err := m.destroySession(session); err != nil {
			errs = append(errs, fmt.Errorf("session %q: %w", session.ID(), err))
		}
	}
	if len(errs) > 0 {
		return NewMedicalDeletionError("(bulk medical delete)", errs...)
	}
	return nil
}

const sessionMetaFileName = "meta.json"

// sessionMeta is a small plaintext record written alongside (never inside)
// an encrypted session's storage root, so the project type and encryption
// posture can be recovered without the passphrase. It carries no message
// content.
type sessionMeta struct {
	ID          string      `json:"id"`
	ProjectType ProjectType `json:"project_type"`
	Encrypted   bool        `json:"encrypted"`
}

func writeSessionMeta(root, id string, projectType ProjectType, encrypted bool) error {
	data, err := json.Marshal(sessionMeta{ID: id, ProjectType: projectType, Encrypted: encrypted})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	if err := os.WriteFile(filepath.Join(root, sessionMetaFileName), data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return nil
}

func readSessionMeta(root string) (sessionMeta, error) {
	data, err := os.ReadFile(filepath.Join(root, sessionMetaFileName))
	if err != nil {
		return sessionMeta{}, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	var meta sessionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return sessionMeta{}, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return meta, nil
}

// DiscoverSessions scans the data root for session directories written by
// a prior process and returns a descriptor for each, read from its
// meta.json without touching encrypted content. LastActivity and
// LayerSizes are left zero; callers that need them must Restore the
// session first.
func (m *Manager) DiscoverSessions() ([]SessionDescriptor, error) {
	var out []SessionDescriptor
	for _, sub := range []string{generalDir, medicalSecureDir} {
		base := filepath.Join(m.dataRoot, sub)
		entries, err := os.ReadDir(base)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			meta, err := readSessionMeta(filepath.Join(base, entry.Name()))
			if err != nil {
				continue
			}
			out = append(out, SessionDescriptor{ID: meta.ID, ProjectType: meta.ProjectType, Encrypted: meta.Encrypted})
		}
	}
	return out, nil
}

// SessionMeta returns the project type and encryption posture of a
// session on disk, whether or not it is currently loaded.
func (m *Manager) SessionMeta(id string) (ProjectType, bool, error) {
	if err := validateSessionID(id); err != nil {
		return "", false, err
	}
	for _, sub := range []string{generalDir, medicalSecureDir} {
		root := filepath.Join(m.dataRoot, sub, id)
		meta, err := readSessionMeta(root)
		if err == nil {
			return meta.ProjectType, meta.Encrypted, nil
		}
	}
	return "", false, fmt.Errorf("%w: session %q", ErrNotFound, id)
}

// PurgeSession removes a session's storage root directly from disk,
// whether or not it is currently loaded in this process. Deleting the
// directory removes the salt file along with everything else, so an
// encrypted session's key material becomes unrecoverable even though no
// live envelope was shredded in memory.
func (m *Manager) PurgeSession(id string) error {
	projectType, _, err := m.SessionMeta(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	m.mu.Lock()
	if session, ok := m.sessions[id]; ok {
		delete(m.sessions, id)
		session.Destroy()
		if session.Encrypted() && session.envelope != nil {
			session.envelope.Shred()
		}
	}
	m.mu.Unlock()

	root := m.storageRoot(id, projectType)
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return nil
}

// PurgeAllMedical removes every medical session's storage root directly
// from disk, including ones never loaded into this process's registry.
// confirmationToken must equal ConfirmationToken exactly.
func (m *Manager) PurgeAllMedical(confirmationToken string) error {
	if confirmationToken != ConfirmationToken {
		return ErrConfirmationRequired
	}

	descriptors, err := m.DiscoverSessions()
	if err != nil {
		return err
	}

	var errs []error
	for _, d := range descriptors {
		if !d.ProjectType.IsMedical() {
			continue
		}
		if err := m.PurgeSession(d.ID); err != nil {
			errs = append(errs, fmt.Errorf("session %q: %w", d.ID, err))
		}
	}
	if len(errs) > 0 {
		return NewMedicalDeletionError("(bulk medical purge)", errs...)
	}
	return nil
}
