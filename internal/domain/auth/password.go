package auth

import (
	"context"
	"errors"

	"github.com/alexedwards/argon2id"
)

// ErrInvalidCredentials is returned when a password doesn't match the
// stored hash, or the user has no stored credential.
var ErrInvalidCredentials = errors.New("invalid credentials")

// argon2idParams defines OWASP minimum parameters for Argon2id.
// Memory: 47 MiB, Iterations: 1, Parallelism: 1
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashPassword returns an Argon2id hash of the password in PHC format.
// The hash includes a random salt and uses OWASP minimum parameters.
func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, argon2idParams)
}

// VerifyPassword verifies a password against a stored PHC-format hash.
// Returns (false, nil) on mismatch; errors are reserved for malformed
// stored hashes.
func VerifyPassword(password, storedHash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, storedHash)
}

// CredentialService authenticates users against the user store. It is
// the collaborator invoked on the non-trusted session creation path.
type CredentialService struct {
	store Store
}

// NewCredentialService creates a CredentialService backed by the given
// user store.
func NewCredentialService(store Store) *CredentialService {
	return &CredentialService{store: store}
}

// Authenticate verifies the user's password and returns the user.
// Returns ErrInvalidCredentials on mismatch or missing credential, and
// store errors unchanged.
func (s *CredentialService) Authenticate(ctx context.Context, userID, password string) (*User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	match, err := VerifyPassword(password, u.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
