package app

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/okhotin/parley/internal/domain"
)

const (
	saltLen          = 16
	registerAttempts = 5
)

// AuthRegistry issues opaque credentials and resolves them back to display
// names. A credential is hex(sha256(name || salt)) with a fresh random salt,
// so knowing a display name never yields the credential; it must be shown to
// the user once at registration time.
type AuthRegistry struct {
	mu    sync.RWMutex
	users map[string]string // credential -> display name

	dirty func()
}

func NewAuthRegistry(dirty func()) *AuthRegistry {
	if dirty == nil {
		dirty = func() {}
	}
	return &AuthRegistry{users: make(map[string]string), dirty: dirty}
}

// Restore loads the credential table from a snapshot.
func (a *AuthRegistry) Restore(users map[string]string) {
	if len(users) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for cred, name := range users {
		a.users[cred] = name
	}
}

// Register derives a credential for name. On the (negligible) digest
// collision the salt is regenerated; an existing record is never
// overwritten, since that would hand one user another's identity.
func (a *AuthRegistry) Register(name string) (string, error) {
	if err := domain.ValidateDisplayName(name); err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for range registerAttempts {
		cred, err := deriveCredential(name)
		if err != nil {
			return "", err
		}
		if _, taken := a.users[cred]; taken {
			continue
		}
		a.users[cred] = name
		a.dirty()
		log.Info().Str("module", "app.auth").Str("name", name).Msg("registered user")
		return cred, nil
	}
	return "", domain.ErrCredentialClash
}

// Authenticate resolves a credential to the display name it was issued for.
func (a *AuthRegistry) Authenticate(cred string) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	name, ok := a.users[cred]
	if !ok {
		return "", domain.ErrCredentialNotFound
	}
	return name, nil
}

// Snapshot copies the credential table for persistence.
func (a *AuthRegistry) Snapshot() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]string, len(a.users))
	for cred, name := range a.users {
		out[cred] = name
	}
	return out
}

func deriveCredential(name string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(name))
	h.Write(salt)
	return hex.EncodeToString(h.Sum(nil)), nil
}
