package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
)

// tokenBytes gives 256 bits of entropy per raw token.
const tokenBytes = 32

// Generate returns a fresh raw token and its persistable hash.
func Generate() (raw, hash string, err error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", common.NewError(common.CodeInternal, "failed to generate token", err)
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, Hash(raw), nil
}

// Hash is the one-way digest under which tokens are stored and looked up.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Vault manages the verification-token lifecycle: issue, validate, consume,
// supersede. All state lives in the repository; raw values are never stored.
type Vault struct {
	tokens Repository
	ttl    time.Duration
}

func NewVault(tokens Repository, ttl time.Duration) *Vault {
	return &Vault{tokens: tokens, ttl: ttl}
}

// Issue creates and persists a token for the application and returns the raw
// secret for delivery plus its expiry.
func (v *Vault) Issue(ctx context.Context, applicationID common.UUID, tokenType Type) (string, time.Time, error) {
	raw, hash, err := Generate()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt := now.Add(v.ttl)
	_, err = v.tokens.Create(ctx, VerificationToken{
		ID:            common.NewUUID(),
		ApplicationID: applicationID,
		TokenHash:     hash,
		TokenType:     tokenType,
		ExpiresAt:     expiresAt,
		CreatedAt:     now,
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return raw, expiresAt, nil
}

// Validate resolves a raw token without consuming it, so callers can preview
// the application before committing (the principal view path relies on this).
func (v *Vault) Validate(ctx context.Context, raw string, expected Type) (*VerificationToken, error) {
	if raw == "" {
		return nil, common.NewError(common.CodeInvalidToken, "invalid or missing verification token", nil)
	}
	tok, err := v.tokens.GetByHash(ctx, Hash(raw))
	if err != nil {
		if common.Is(err, common.CodeNotFound) {
			return nil, common.NewError(common.CodeInvalidToken, "invalid or missing verification token", err)
		}
		return nil, err
	}
	if tok.TokenType != expected {
		return nil, common.NewError(common.CodeInvalidToken, "invalid token type for this operation", nil)
	}
	if tok.UsedAt != nil {
		return nil, common.NewError(common.CodeTokenAlreadyUsed, "this verification link has already been used", nil)
	}
	if time.Now().UTC().After(tok.ExpiresAt) {
		return nil, common.NewError(common.CodeTokenExpired, "this verification link has expired, please request a new one", nil)
	}
	return tok, nil
}

// Consume marks the token used. It must be called exactly once per successful
// workflow transition; the repository's conditional update makes the second
// call fail with CodeTokenAlreadyUsed.
func (v *Vault) Consume(ctx context.Context, raw string) error {
	return v.tokens.Consume(ctx, Hash(raw), time.Now().UTC())
}

// Supersede deletes all unused tokens of the type, making room for a resend.
func (v *Vault) Supersede(ctx context.Context, applicationID common.UUID, tokenType Type) error {
	return v.tokens.DeleteUnused(ctx, applicationID, tokenType)
}

// Reissue replaces the current valid token with a fresh secret while keeping
// the original expiry and creation time. Reminder emails need a working link,
// but the raw value of the original token is gone once delivered, and the
// verification window must not restart.
func (v *Vault) Reissue(ctx context.Context, applicationID common.UUID, tokenType Type) (string, *VerificationToken, error) {
	current, err := v.tokens.ValidForApplication(ctx, applicationID, tokenType, time.Now().UTC())
	if err != nil {
		if common.Is(err, common.CodeNotFound) {
			return "", nil, common.NewError(common.CodeInvalidToken, "no valid token to reissue", err)
		}
		return "", nil, err
	}
	raw, hash, err := Generate()
	if err != nil {
		return "", nil, err
	}
	if err := v.tokens.DeleteUnused(ctx, applicationID, tokenType); err != nil {
		return "", nil, err
	}
	replacement, err := v.tokens.Create(ctx, VerificationToken{
		ID:            common.NewUUID(),
		ApplicationID: applicationID,
		TokenHash:     hash,
		TokenType:     tokenType,
		ExpiresAt:     current.ExpiresAt,
		CreatedAt:     current.CreatedAt,
	})
	if err != nil {
		return "", nil, err
	}
	return raw, replacement, nil
}
