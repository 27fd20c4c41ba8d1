package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/application"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/school"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/user"
)

// ProvisioningRepository creates the school tenant and its admin account in a
// single transaction together with the approval status flip.
type ProvisioningRepository struct {
	db *sql.DB
}

func NewProvisioningRepository(db *sql.DB) *ProvisioningRepository {
	return &ProvisioningRepository{db: db}
}

func (r *ProvisioningRepository) ProvisionApproval(ctx context.Context, app application.Application, reviewedBy common.UUID, passwordHash string, at time.Time) (*school.ProvisionResult, error) {
	adminEmail := app.DesignatedAdminEmail()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to begin provisioning transaction", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))`, adminEmail).Scan(&exists); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to check admin email", err)
	}
	if exists {
		return nil, common.NewError(common.CodeProvisioningFailed,
			fmt.Sprintf("an account with email %s already exists", adminEmail), nil)
	}

	schoolID := common.NewUUID()
	_, err = tx.ExecContext(ctx, `INSERT INTO schools (id, name, year_established, school_type, student_population,
			country_code, city, address, phone, email,
			principal_name, principal_email, principal_phone,
			is_active, application_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		schoolID, app.SchoolName, app.YearEstablished, app.SchoolType, app.StudentPopulation,
		app.CountryCode, app.City, app.Address, app.SchoolPhone, app.SchoolEmail,
		app.PrincipalName, app.PrincipalEmail, app.PrincipalPhone,
		true, app.ID, at)
	if err != nil {
		return nil, provisionError("failed to create school", err)
	}

	adminUserID := common.NewUUID()
	_, err = tx.ExecContext(ctx, `INSERT INTO users (id, email, full_name, phone, role, school_id, password_hash, must_change_password, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		adminUserID, adminEmail, app.DesignatedAdminName(), adminPhone(app), user.RoleSchoolAdmin, schoolID, passwordHash, true, at)
	if err != nil {
		return nil, provisionError("failed to create admin user", err)
	}

	result, err := tx.ExecContext(ctx, `UPDATE school_applications SET
			status = $3, reviewed_at = $4, reviewed_by = $5, updated_at = $4
		WHERE id = $1 AND status = $2`,
		app.ID, app.Status, application.StatusApproved, at, reviewedBy)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to approve application", err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return nil, common.NewError(common.CodeInvalidApplicationState,
			fmt.Sprintf("application is no longer in status %s", app.Status), nil)
	}

	if err := tx.Commit(); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to commit provisioning transaction", err)
	}
	return &school.ProvisionResult{SchoolID: schoolID, AdminUserID: adminUserID}, nil
}

func adminPhone(app application.Application) string {
	if app.ApplicantIsPrincipal || (app.AdminChoice != nil && *app.AdminChoice == application.AdminChoicePrincipal) {
		return app.PrincipalPhone
	}
	return app.ApplicantPhone
}

func provisionError(msg string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return common.NewError(common.CodeProvisioningFailed, msg+": record already exists", err)
	}
	return common.NewError(common.CodeInternal, msg, err)
}
