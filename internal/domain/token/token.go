package token

import (
	"context"
	"time"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
)

// Type discriminates applicant email verification from principal confirmation.
// The two are never interchangeable.
type Type string

const (
	TypeApplicantVerification Type = "applicant_verification"
	TypePrincipalConfirmation Type = "principal_confirmation"
)

// VerificationToken is a single-use expiring credential bound to one
// application. Only the SHA-256 hash of the raw secret is ever stored; the raw
// value exists transiently between generation and email delivery.
type VerificationToken struct {
	ID            common.UUID
	ApplicationID common.UUID
	TokenHash     string
	TokenType     Type
	ExpiresAt     time.Time
	UsedAt        *time.Time
	CreatedAt     time.Time
}

func (t VerificationToken) Valid(now time.Time) bool {
	return t.UsedAt == nil && !now.After(t.ExpiresAt)
}

type Repository interface {
	Create(ctx context.Context, t VerificationToken) (*VerificationToken, error)
	GetByHash(ctx context.Context, hash string) (*VerificationToken, error)
	// Consume sets used_at iff it is still null. A second consume fails with
	// common.CodeTokenAlreadyUsed; a missing hash fails with CodeInvalidToken.
	Consume(ctx context.Context, hash string, at time.Time) error
	// DeleteUnused removes all unused tokens of the given type for the
	// application. Used tokens are kept for audit.
	DeleteUnused(ctx context.Context, applicationID common.UUID, tokenType Type) error
	// ValidForApplication returns the current unused, unexpired token of the
	// given type, or a CodeNotFound error when none exists.
	ValidForApplication(ctx context.Context, applicationID common.UUID, tokenType Type, now time.Time) (*VerificationToken, error)
}
