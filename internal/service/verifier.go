package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pkgcrypto "github.com/and161185/authkeeper/internal/crypto"
	"github.com/and161185/authkeeper/internal/errs"
	"github.com/and161185/authkeeper/internal/model"
	"github.com/and161185/authkeeper/internal/repository"
)

// CredentialVerifier checks an identifier/secret pair against the stored hash.
type CredentialVerifier struct {
	identities repository.IdentityRepository

	dummyOnce sync.Once
	dummy     string
}

// NewCredentialVerifier constructs a verifier over identities.
func NewCredentialVerifier(identities repository.IdentityRepository) *CredentialVerifier {
	return &CredentialVerifier{identities: identities}
}

// Verify returns the identity whose username or email is identifier and whose
// password is secret. Unknown identifier and wrong secret both yield
// errs.ErrInvalidCredentials.
func (v *CredentialVerifier) Verify(ctx context.Context, identifier, secret string) (*model.Identity, error) {
	u, err := v.identities.GetByLogin(ctx, identifier)
	if errors.Is(err, errs.ErrNotFound) {
		// same hashing cost as a real mismatch
		_, _ = pkgcrypto.VerifyPassword(secret, v.dummyHash())
		return nil, errs.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}
	ok, err := pkgcrypto.VerifyPassword(secret, u.PwdHash)
	if err != nil || !ok {
		return nil, errs.ErrInvalidCredentials
	}
	return u, nil
}

func (v *CredentialVerifier) dummyHash() string {
	v.dummyOnce.Do(func() {
		v.dummy, _ = pkgcrypto.HashPassword("authkeeper-dummy-secret")
	})
	return v.dummy
}
