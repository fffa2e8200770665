package hiermem

import (
	"encoding/json"
	"time"
)

// Role tags who produced a Message. The closed set covers the chat roles
// this engine knows about; Other preserves anything outside it rather than
// dropping it, since the source system's role field is effectively open.
type Role struct {
	name string
}

var (
	RoleUser      = Role{"user"}
	RoleAssistant = Role{"assistant"}
	RoleSystem    = Role{"system"}
	RoleNarrator  = Role{"narrator"}
	RoleCharacter = Role{"character"}
	RoleDirector  = Role{"director"}
)

// OtherRole returns a Role for a tag outside the known set.
func OtherRole(tag string) Role { return Role{tag} }

func (r Role) String() string { return r.name }

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.name)
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = RoleFromString(s)
	return nil
}

// RoleFromString maps a role tag to its canonical Role value, falling back
// to OtherRole for anything unrecognized.
func RoleFromString(tag string) Role {
	switch tag {
	case RoleUser.name:
		return RoleUser
	case RoleAssistant.name:
		return RoleAssistant
	case RoleSystem.name:
		return RoleSystem
	case RoleNarrator.name:
		return RoleNarrator
	case RoleCharacter.name:
		return RoleCharacter
	case RoleDirector.name:
		return RoleDirector
	default:
		return OtherRole(tag)
	}
}

// Metadata is a free-form, append-only key/value map attached to a Message
// or Bookmark. Values are whatever json.Marshal accepts.
type Metadata map[string]any

// Clone returns a shallow copy, sufficient for the append-only contract
// since values are never mutated in place, only added.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge returns a copy of m with additions layered on top. Existing keys in
// m are never removed, satisfying the append-only invariant; a key present
// in both is overwritten by additions, matching how the teacher's metadata
// maps behave under successive SetMetadata calls.
func (m Metadata) Merge(additions Metadata) Metadata {
	out := m.Clone()
	if out == nil {
		out = make(Metadata, len(additions))
	}
	for k, v := range additions {
		out[k] = v
	}
	return out
}

// Message is the atomic unit of conversation. Once assigned, ID never
// changes and Content is immutable after insertion; Layer is the only field
// the engine mutates after construction, and only ever forward through the
// canonical order or to LayerDeleted.
type Message struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	CreatedAt time.Time
	Seq       uint64 // monotonic per-session insertion order
	Metadata  Metadata
	Layer     Layer
}

// Copy returns a deep copy, used by fork and snapshot operations that must
// not let the copy's mutations reach the original.
func (m *Message) Copy() *Message {
	if m == nil {
		return nil
	}
	out := *m
	out.Metadata = m.Metadata.Clone()
	return &out
}

// WithMetadata returns a copy of m with additions merged into its metadata,
// preserving the append-only contract (the receiver is left untouched).
func (m *Message) WithMetadata(additions Metadata) *Message {
	out := m.Copy()
	out.Metadata = m.Metadata.Merge(additions)
	return out
}
