package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// CredentialRepository captures the API key persistence operations.
type CredentialRepository interface {
	CreateCredential(ctx context.Context, credential OwnerCredential) error
	GetCredential(ctx context.Context, keyID string) (OwnerCredential, error)
	RevokeCredential(ctx context.Context, keyID string, revokedAt time.Time) error
}

// credentialRecheckInterval bounds how long a cached key is trusted before
// its revocation state is read again. Keys revoked by another process, such
// as focusd revoke-key, stop working within this window.
const credentialRecheckInterval = 15 * time.Second

// SecretVerifier compares a stored hash with a presented secret.
type SecretVerifier func(encodedHash, secret string) error

// OwnerAuthService issues, verifies, and revokes owner API keys. Tokens have
// the form "<key_id>.<secret>".
type OwnerAuthService struct {
	credentials     CredentialRepository
	verifySecret    SecretVerifier
	cache           *credentialCache
	idGenerator     func() string
	secretGenerator func() (string, error)
	now             func() time.Time
	hashParams      Argon2idParams
	logger          *slog.Logger
}

// NewOwnerAuthService constructs an OwnerAuthService with the provided dependencies.
func NewOwnerAuthService(credentials CredentialRepository, verify SecretVerifier, idGenerator func() string, now func() time.Time, cacheTTL time.Duration) *OwnerAuthService {
	return NewOwnerAuthServiceWithLogger(credentials, verify, idGenerator, now, cacheTTL, nil)
}

// NewOwnerAuthServiceWithLogger constructs an OwnerAuthService with a specified logger.
func NewOwnerAuthServiceWithLogger(credentials CredentialRepository, verify SecretVerifier, idGenerator func() string, now func() time.Time, cacheTTL time.Duration, logger *slog.Logger) *OwnerAuthService {
	if verify == nil {
		verify = VerifySecret
	}
	if now == nil {
		now = time.Now
	}
	return &OwnerAuthService{
		credentials:     credentials,
		verifySecret:    verify,
		cache:           newCredentialCache(cacheTTL, 0, now),
		idGenerator:     idGenerator,
		secretGenerator: func() (string, error) { return randomHex(24) },
		now:             now,
		hashParams:      DefaultArgon2idParams,
		logger:          defaultLogger(logger),
	}
}

func (s *OwnerAuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "OwnerAuthService", operation, attrs...)
}

// Authenticate resolves a bearer token to its owner. Every failure is
// reported as ErrNotAuthenticated so callers fail closed.
func (s *OwnerAuthService) Authenticate(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("OwnerAuthService is nil")
		return
	}

	keyID, secret, ok := splitToken(token)
	if !ok {
		err = ErrNotAuthenticated
		return
	}

	if cached, hit := s.cache.Get(token); hit {
		if s.now().Sub(cached.checkedAt) < credentialRecheckInterval {
			return cached.principal, nil
		}
		if s.stillValid(ctx, keyID) {
			s.cache.MarkChecked(token)
			return cached.principal, nil
		}
		s.cache.InvalidateKey(keyID)
	}

	logger := s.loggerWith(ctx, "Authenticate", "key_id", keyID)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("owner_id", principal.OwnerID).InfoContext(ctx, "api key verified")
	}()

	if s.credentials == nil {
		err = fmt.Errorf("credential repository not configured")
		return
	}

	credential, lookupErr := s.credentials.GetCredential(ctx, keyID)
	if lookupErr != nil {
		if isNotFound(lookupErr) {
			err = ErrNotAuthenticated
			return
		}
		err = lookupErr
		return
	}
	if credential.RevokedAt != nil {
		err = fmt.Errorf("%w: key revoked", ErrNotAuthenticated)
		return
	}
	if verifyErr := s.verifySecret(credential.SecretHash, secret); verifyErr != nil {
		err = fmt.Errorf("%w: %v", ErrNotAuthenticated, verifyErr)
		return
	}

	principal = Principal{OwnerID: credential.OwnerID}
	s.cache.Store(token, keyID, principal)
	return
}

// IssueKey creates a new API key for ownerID. The returned token is the only
// time the secret is available.
func (s *OwnerAuthService) IssueKey(ctx context.Context, ownerID string) (issued IssuedKey, err error) {
	if s == nil {
		err = fmt.Errorf("OwnerAuthService is nil")
		return
	}

	ownerID = strings.TrimSpace(ownerID)
	logger := s.loggerWith(ctx, "IssueKey", "owner_id", ownerID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to issue api key", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("key_id", issued.KeyID).InfoContext(ctx, "api key issued")
	}()

	if ownerID == "" {
		vErr := &ValidationError{}
		vErr.add("owner_id", "owner id is required")
		err = vErr
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential repository not configured")
		return
	}

	keyID, idErr := s.newKeyID()
	if idErr != nil {
		err = fmt.Errorf("generate key id: %w", idErr)
		return
	}
	if keyID == "" || strings.Contains(keyID, ".") {
		err = fmt.Errorf("invalid generated key id %q", keyID)
		return
	}
	secret, secretErr := s.secretGenerator()
	if secretErr != nil {
		err = fmt.Errorf("generate secret: %w", secretErr)
		return
	}

	hash, hashErr := CreateSecretHash(secret, s.hashParams)
	if hashErr != nil {
		err = fmt.Errorf("hash secret: %w", hashErr)
		return
	}

	now := s.now()
	if err = s.credentials.CreateCredential(ctx, OwnerCredential{
		KeyID:      keyID,
		OwnerID:    ownerID,
		SecretHash: hash,
		CreatedAt:  now,
	}); err != nil {
		err = mapTimerRepoError(err)
		return
	}

	issued = IssuedKey{
		KeyID:     keyID,
		OwnerID:   ownerID,
		Token:     keyID + "." + secret,
		CreatedAt: now,
	}
	return
}

// RevokeKey revokes an API key and drops it from the verification cache.
func (s *OwnerAuthService) RevokeKey(ctx context.Context, keyID string) error {
	if s == nil {
		return fmt.Errorf("OwnerAuthService is nil")
	}
	if s.credentials == nil {
		return fmt.Errorf("credential repository not configured")
	}

	logger := s.loggerWith(ctx, "RevokeKey", "key_id", keyID)

	if err := s.credentials.RevokeCredential(ctx, keyID, s.now()); err != nil {
		err = mapTimerRepoError(err)
		logger.ErrorContext(ctx, "failed to revoke api key", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	s.cache.InvalidateKey(keyID)

	logger.InfoContext(ctx, "api key revoked")
	return nil
}

func splitToken(token string) (keyID, secret string, ok bool) {
	token = strings.TrimSpace(token)
	keyID, secret, found := strings.Cut(token, ".")
	if !found || keyID == "" || secret == "" {
		return "", "", false
	}
	return keyID, secret, true
}

// newKeyID uses the injected generator, or random hex without one.
func (s *OwnerAuthService) newKeyID() (string, error) {
	if s.idGenerator != nil {
		return s.idGenerator(), nil
	}
	return randomHex(8)
}

// stillValid reports whether a cached key is still present and unrevoked in
// storage. Lookup failures count as invalid so the caller re-verifies.
func (s *OwnerAuthService) stillValid(ctx context.Context, keyID string) bool {
	if s.credentials == nil {
		return false
	}
	credential, err := s.credentials.GetCredential(ctx, keyID)
	return err == nil && credential.RevokedAt == nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
