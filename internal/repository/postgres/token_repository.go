package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/token"
)

type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Create(ctx context.Context, t token.VerificationToken) (*token.VerificationToken, error) {
	if t.ID == "" {
		t.ID = common.NewUUID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO verification_tokens (id, application_id, token_hash, token_type, expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.ApplicationID, t.TokenHash, t.TokenType, t.ExpiresAt, t.UsedAt, t.CreatedAt)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to create verification token", err)
	}
	return &t, nil
}

func (r *TokenRepository) GetByHash(ctx context.Context, hash string) (*token.VerificationToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, application_id, token_hash, token_type, expires_at, used_at, created_at
		FROM verification_tokens WHERE token_hash = $1`, hash)
	var t token.VerificationToken
	if err := row.Scan(&t.ID, &t.ApplicationID, &t.TokenHash, &t.TokenType, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "verification token not found", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to load verification token", err)
	}
	return &t, nil
}

func (r *TokenRepository) Consume(ctx context.Context, hash string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE verification_tokens SET used_at = $2
		WHERE token_hash = $1 AND used_at IS NULL`, hash, at)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to consume verification token", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to consume verification token", err)
	}
	if rows == 0 {
		if _, getErr := r.GetByHash(ctx, hash); common.Is(getErr, common.CodeNotFound) {
			return common.NewError(common.CodeInvalidToken, "invalid or missing verification token", getErr)
		}
		return common.NewError(common.CodeTokenAlreadyUsed, "this verification link has already been used", nil)
	}
	return nil
}

func (r *TokenRepository) DeleteUnused(ctx context.Context, applicationID common.UUID, tokenType token.Type) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM verification_tokens
		WHERE application_id = $1 AND token_type = $2 AND used_at IS NULL`, applicationID, tokenType)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to delete verification tokens", err)
	}
	return nil
}

func (r *TokenRepository) ValidForApplication(ctx context.Context, applicationID common.UUID, tokenType token.Type, now time.Time) (*token.VerificationToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, application_id, token_hash, token_type, expires_at, used_at, created_at
		FROM verification_tokens
		WHERE application_id = $1 AND token_type = $2 AND used_at IS NULL AND expires_at > $3
		ORDER BY created_at DESC LIMIT 1`,
		applicationID, tokenType, now)
	var t token.VerificationToken
	if err := row.Scan(&t.ID, &t.ApplicationID, &t.TokenHash, &t.TokenType, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "no valid verification token", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to load verification token", err)
	}
	return &t, nil
}
