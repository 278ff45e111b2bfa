package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
)

// Identity describes the current actor.
type Identity struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// Anonymous is the identity of a session nobody has signed into.
var Anonymous = Identity{}

// IsAnonymous reports whether id is the no-identity sentinel.
func (id Identity) IsAnonymous() bool {
	return id == Anonymous
}

// ActorID returns the numeric user id, or 0 when the id is not numeric.
func (id Identity) ActorID() int64 {
	n, err := strconv.ParseInt(id.UserID, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// IdentityKeyPrefix prefixes the store key of each session's identity.
const IdentityKeyPrefix = "identity:"

// IdentityKey returns the store key of the identity bound to sessionID.
func IdentityKey(sessionID string) string {
	return IdentityKeyPrefix + sessionID
}

// Store is the key-value collaborator used to survive restarts.
type Store interface {
	Save(ctx context.Context, key, value string) error
	Load(ctx context.Context, key string) (string, bool, error)
}

type snapshot struct {
	identity    Identity
	permissions PermissionSet
}

var anonymousSnapshot = &snapshot{identity: Anonymous, permissions: DenyAll()}

// SessionState holds one session's identity and its derived permissions.
// Readers always see a matching identity/permission pair.
type SessionState struct {
	store   Store
	key     atomic.Pointer[string]
	current atomic.Pointer[snapshot]
}

// NewSessionState builds an anonymous state persisted under key in store.
// A nil store keeps the state in memory only.
func NewSessionState(store Store, key string) *SessionState {
	s := &SessionState{store: store}
	s.key.Store(&key)
	s.current.Store(anonymousSnapshot)
	return s
}

// Restore loads the persisted identity. A missing key leaves the state
// anonymous; an undecodable value resets it to anonymous and is reported.
func (s *SessionState) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	raw, ok, err := s.store.Load(ctx, s.Key())
	if err != nil {
		return fmt.Errorf("rbac: load identity: %w", err)
	}
	if !ok || raw == "" {
		s.current.Store(anonymousSnapshot)
		return nil
	}
	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		s.current.Store(anonymousSnapshot)
		return fmt.Errorf("rbac: decode identity: %w", err)
	}
	s.swap(id)
	return nil
}

// SetIdentity replaces the identity wholesale and persists it. Passing
// Anonymous signs the session out.
func (s *SessionState) SetIdentity(ctx context.Context, id Identity) error {
	s.swap(id)
	return s.persist(ctx, s.Key(), id)
}

// ApplyRole replaces the identity with one carrying role when the stored
// role differs. It reports whether anything changed. Anonymous states are
// left alone.
func (s *SessionState) ApplyRole(ctx context.Context, role Role) (bool, error) {
	id := s.CurrentIdentity()
	if id.IsAnonymous() || id.Role == role {
		return false, nil
	}
	id.Role = role
	return true, s.SetIdentity(ctx, id)
}

// Rekey moves the persisted identity to key and clears the old entry.
func (s *SessionState) Rekey(ctx context.Context, key string) error {
	old := s.Key()
	if old == key {
		return nil
	}
	s.key.Store(&key)
	if err := s.persist(ctx, key, s.CurrentIdentity()); err != nil {
		return err
	}
	return s.persist(ctx, old, Anonymous)
}

func (s *SessionState) persist(ctx context.Context, key string, id Identity) error {
	if s.store == nil {
		return nil
	}
	value := ""
	if !id.IsAnonymous() {
		data, err := json.Marshal(id)
		if err != nil {
			return fmt.Errorf("rbac: encode identity: %w", err)
		}
		value = string(data)
	}
	if err := s.store.Save(ctx, key, value); err != nil {
		return fmt.Errorf("rbac: save identity: %w", err)
	}
	return nil
}

// CurrentIdentity returns the signed-in identity or Anonymous.
func (s *SessionState) CurrentIdentity() Identity {
	return s.load().identity
}

// Permissions returns the permission set derived from the current role.
func (s *SessionState) Permissions() PermissionSet {
	return s.load().permissions
}

// IsReadOnly reports whether the session may only read.
func (s *SessionState) IsReadOnly() bool {
	return s.load().permissions.ReadOnly
}

// Authenticated reports whether an identity has been set.
func (s *SessionState) Authenticated() bool {
	return !s.load().identity.IsAnonymous()
}

// Key returns the store key of the state.
func (s *SessionState) Key() string {
	if s == nil {
		return ""
	}
	if key := s.key.Load(); key != nil {
		return *key
	}
	return ""
}

func (s *SessionState) swap(id Identity) {
	if id.IsAnonymous() {
		s.current.Store(anonymousSnapshot)
		return
	}
	s.current.Store(&snapshot{identity: id, permissions: PermissionsFor(id.Role)})
}

func (s *SessionState) load() *snapshot {
	if s == nil {
		return anonymousSnapshot
	}
	if snap := s.current.Load(); snap != nil {
		return snap
	}
	return anonymousSnapshot
}

type stateContextKey struct{}

// ContextWithState stores the session state in ctx.
func ContextWithState(ctx context.Context, state *SessionState) context.Context {
	return context.WithValue(ctx, stateContextKey{}, state)
}

// StateFromContext returns the session state carried by ctx, or an
// anonymous in-memory state when none is present.
func StateFromContext(ctx context.Context) *SessionState {
	if state, ok := ctx.Value(stateContextKey{}).(*SessionState); ok && state != nil {
		return state
	}
	return NewSessionState(nil, "")
}
