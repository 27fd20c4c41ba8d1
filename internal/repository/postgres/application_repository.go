package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/application"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/token"
)

const applicationColumns = `id, school_name, school_type, year_established, student_population,
	country_code, city, address, school_phone, school_email,
	principal_name, principal_email, principal_phone,
	applicant_is_principal, applicant_name, applicant_email, applicant_phone, applicant_role, admin_choice,
	online_presence, reasons, other_reason,
	status, applicant_verified_at, principal_confirmed_at, reviewed_at, reviewed_by, decision_reason,
	reminder_sent_at, internal_notes, submitted_at, updated_at`

type ApplicationRepository struct {
	db *sql.DB
}

func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func nonTerminalStatusStrings() []string {
	statuses := application.NonTerminalStatuses()
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *ApplicationRepository) Create(ctx context.Context, app application.Application) (*application.Application, error) {
	if app.ID == "" {
		app.ID = common.NewUUID()
	}
	now := time.Now().UTC()
	app.SubmittedAt = now
	app.UpdatedAt = now
	if app.Status == "" {
		app.Status = application.StatusAwaitingApplicantVerification
	}

	presence, err := marshalNullable(app.OnlinePresence, len(app.OnlinePresence) == 0)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to encode online presence", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO school_applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
		        $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32)`,
		app.ID, app.SchoolName, app.SchoolType, app.YearEstablished, app.StudentPopulation,
		app.CountryCode, app.City, app.Address, app.SchoolPhone, app.SchoolEmail,
		app.PrincipalName, app.PrincipalEmail, app.PrincipalPhone,
		app.ApplicantIsPrincipal, app.ApplicantName, app.ApplicantEmail, app.ApplicantPhone, app.ApplicantRole, adminChoiceValue(app.AdminChoice),
		presence, pq.Array(app.Reasons), app.OtherReason,
		app.Status, app.ApplicantVerifiedAt, app.PrincipalConfirmedAt, app.ReviewedAt, uuidValue(app.ReviewedBy), app.DecisionReason,
		app.ReminderSentAt, []byte(`[]`), app.SubmittedAt, app.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, common.NewError(common.CodeDuplicateApplication, "a pending application already exists for this school", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to create application", err)
	}
	return &app, nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id common.UUID) (*application.Application, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM school_applications WHERE id = $1`, id)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "application not found", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to load application", err)
	}
	return app, nil
}

func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id common.UUID, from, to application.Status, update application.StatusUpdate) (*application.Application, error) {
	if !application.CanTransition(from, to) {
		return nil, common.NewError(common.CodeInvalidApplicationState,
			fmt.Sprintf("invalid status transition: %s -> %s", from, to), nil)
	}
	result, err := r.db.ExecContext(ctx, `UPDATE school_applications SET
			status = $3,
			applicant_verified_at = COALESCE($4, applicant_verified_at),
			principal_confirmed_at = COALESCE($5, principal_confirmed_at),
			reviewed_at = COALESCE($6, reviewed_at),
			reviewed_by = COALESCE($7, reviewed_by),
			decision_reason = COALESCE($8, decision_reason),
			updated_at = $9
		WHERE id = $1 AND status = $2`,
		id, from, to,
		update.ApplicantVerifiedAt, update.PrincipalConfirmedAt, update.ReviewedAt,
		uuidValue(update.ReviewedBy), update.DecisionReason, time.Now().UTC())
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to update application status", err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		// Either the row is gone or another writer won the race.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, common.NewError(common.CodeInvalidApplicationState,
			fmt.Sprintf("application is no longer in status %s", from), nil)
	}
	return r.GetByID(ctx, id)
}

func (r *ApplicationRepository) AppendNote(ctx context.Context, id common.UUID, note application.Note) error {
	payload, err := json.Marshal([]application.Note{note})
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to encode note", err)
	}
	result, err := r.db.ExecContext(ctx, `UPDATE school_applications SET
			internal_notes = COALESCE(internal_notes, '[]'::jsonb) || $2::jsonb,
			updated_at = $3
		WHERE id = $1`,
		id, payload, time.Now().UTC())
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to append note", err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return common.NewError(common.CodeNotFound, "application not found", sql.ErrNoRows)
	}
	return nil
}

func (r *ApplicationRepository) ClaimReminder(ctx context.Context, id common.UUID, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE school_applications SET reminder_sent_at = $2, updated_at = $2
		WHERE id = $1 AND reminder_sent_at IS NULL`, id, at)
	if err != nil {
		return false, common.NewError(common.CodeInternal, "failed to claim reminder", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, common.NewError(common.CodeInternal, "failed to claim reminder", err)
	}
	return rows == 1, nil
}

func (r *ApplicationRepository) PendingBySchoolAndCity(ctx context.Context, schoolName, city string) (*application.Application, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM school_applications
		WHERE lower(school_name) = lower($1) AND lower(city) = lower($2) AND status = ANY($3)
		LIMIT 1`,
		schoolName, city, pq.Array(nonTerminalStatusStrings()))
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "no pending application for school and city", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to query pending applications", err)
	}
	return app, nil
}

func (r *ApplicationRepository) PendingByApplicantEmail(ctx context.Context, email, schoolName string) (*application.Application, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM school_applications
		WHERE lower(school_name) = lower($2) AND status = ANY($3)
		  AND (lower(applicant_email) = lower($1)
		       OR (applicant_is_principal AND lower(principal_email) = lower($1)))
		LIMIT 1`,
		email, schoolName, pq.Array(nonTerminalStatusStrings()))
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "no pending application for applicant", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to query pending applications", err)
	}
	return app, nil
}

func (r *ApplicationRepository) NeedingApplicantReminder(ctx context.Context, cutoff time.Time) ([]application.Application, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+applicationColumns+` FROM school_applications
		WHERE status = $1 AND submitted_at < $2 AND reminder_sent_at IS NULL
		ORDER BY submitted_at`,
		application.StatusAwaitingApplicantVerification, cutoff)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to query reminder candidates", err)
	}
	return collectApplications(rows)
}

func (r *ApplicationRepository) ExpiredUnverified(ctx context.Context, cutoff time.Time) ([]application.Application, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+applicationColumns+` FROM school_applications
		WHERE status = $1 AND submitted_at < $2
		ORDER BY submitted_at`,
		application.StatusAwaitingApplicantVerification, cutoff)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to query expiry candidates", err)
	}
	return collectApplications(rows)
}

func (r *ApplicationRepository) PrincipalNeedingReminder(ctx context.Context, cutoff time.Time) ([]application.PrincipalPending, error) {
	return r.queryPrincipalPending(ctx, `SELECT `+prefixedApplicationColumns("a")+`,
			t.id, t.application_id, t.token_hash, t.token_type, t.expires_at, t.used_at, t.created_at
		FROM school_applications a
		JOIN verification_tokens t ON t.application_id = a.id
		WHERE a.status = $1 AND a.reminder_sent_at IS NULL
		  AND t.token_type = $2 AND t.created_at < $3 AND t.used_at IS NULL AND t.expires_at > $4
		ORDER BY t.created_at`,
		application.StatusAwaitingPrincipalConfirmation, token.TypePrincipalConfirmation, cutoff, time.Now().UTC())
}

func (r *ApplicationRepository) PrincipalToExpire(ctx context.Context, cutoff time.Time) ([]application.PrincipalPending, error) {
	return r.queryPrincipalPending(ctx, `SELECT `+prefixedApplicationColumns("a")+`,
			t.id, t.application_id, t.token_hash, t.token_type, t.expires_at, t.used_at, t.created_at
		FROM school_applications a
		JOIN verification_tokens t ON t.application_id = a.id
		WHERE a.status = $1 AND t.token_type = $2 AND t.created_at < $3 AND t.used_at IS NULL
		ORDER BY t.created_at`,
		application.StatusAwaitingPrincipalConfirmation, token.TypePrincipalConfirmation, cutoff)
}

func (r *ApplicationRepository) queryPrincipalPending(ctx context.Context, query string, args ...any) ([]application.PrincipalPending, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to query principal confirmations", err)
	}
	defer rows.Close()
	var items []application.PrincipalPending
	for rows.Next() {
		var p application.PrincipalPending
		app, tok, err := scanApplicationWithToken(rows)
		if err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan principal confirmation", err)
		}
		p.Application = *app
		p.Token = *tok
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to read principal confirmations", err)
	}
	return items, nil
}

func (r *ApplicationRepository) List(ctx context.Context, filter application.ListFilter) ([]application.Application, int, error) {
	where := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != nil {
		where = append(where, "status = "+arg(string(*filter.Status)))
	}
	if filter.SchoolType != nil {
		where = append(where, "school_type = "+arg(string(*filter.SchoolType)))
	}
	if filter.Country != "" {
		where = append(where, "country_code = "+arg(filter.Country))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, fmt.Sprintf(
			"(school_name ILIKE %[1]s OR school_email ILIKE %[1]s OR applicant_email ILIKE %[1]s OR principal_email ILIKE %[1]s)", p))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM school_applications`+clause, args...).Scan(&total); err != nil {
		return nil, 0, common.NewError(common.CodeInternal, "failed to count applications", err)
	}

	// Sort column is validated against a fixed whitelist, never interpolated
	// from raw input.
	sortCol := "submitted_at"
	if filter.SortBy == "school_name" {
		sortCol = "school_name"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	query := fmt.Sprintf(`SELECT %s FROM school_applications%s ORDER BY %s %s LIMIT %s OFFSET %s`,
		applicationColumns, clause, sortCol, direction, arg(filter.Limit), arg(filter.Offset))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, common.NewError(common.CodeInternal, "failed to list applications", err)
	}
	items, err := collectApplications(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *ApplicationRepository) Stats(ctx context.Context) (*application.Stats, error) {
	var stats application.Stats
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `SELECT
			COUNT(*) FILTER (WHERE status = 'pending_review'),
			COUNT(*) FILTER (WHERE status = 'under_review'),
			COUNT(*) FILTER (WHERE status = 'more_info_requested'),
			COUNT(*) FILTER (WHERE status = 'approved' AND reviewed_at >= NOW() - INTERVAL '7 days'),
			COUNT(*) FILTER (WHERE submitted_at >= date_trunc('month', NOW())),
			AVG(EXTRACT(EPOCH FROM (reviewed_at - submitted_at)) / 86400.0)
				FILTER (WHERE status IN ('approved', 'rejected') AND reviewed_at >= NOW() - INTERVAL '30 days')
		FROM school_applications`).Scan(
		&stats.PendingReview, &stats.UnderReview, &stats.MoreInfoRequested,
		&stats.ApprovedThisWeek, &stats.TotalThisMonth, &avg)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to load dashboard stats", err)
	}
	if avg.Valid {
		stats.AvgReviewTimeDays = &avg.Float64
	}
	return &stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*application.Application, error) {
	var app application.Application
	dest := applicationScanDest(&app)
	if err := row.Scan(dest.targets...); err != nil {
		return nil, err
	}
	if err := dest.finish(&app); err != nil {
		return nil, err
	}
	return &app, nil
}

func scanApplicationWithToken(row rowScanner) (*application.Application, *token.VerificationToken, error) {
	var app application.Application
	var tok token.VerificationToken
	dest := applicationScanDest(&app)
	targets := append(dest.targets,
		&tok.ID, &tok.ApplicationID, &tok.TokenHash, &tok.TokenType, &tok.ExpiresAt, &tok.UsedAt, &tok.CreatedAt)
	if err := row.Scan(targets...); err != nil {
		return nil, nil, err
	}
	if err := dest.finish(&app); err != nil {
		return nil, nil, err
	}
	return &app, &tok, nil
}

type scanDest struct {
	targets     []any
	adminChoice sql.NullString
	reviewedBy  sql.NullString
	presence    []byte
	notes       []byte
}

func applicationScanDest(app *application.Application) *scanDest {
	d := &scanDest{}
	d.targets = []any{
		&app.ID, &app.SchoolName, &app.SchoolType, &app.YearEstablished, &app.StudentPopulation,
		&app.CountryCode, &app.City, &app.Address, &app.SchoolPhone, &app.SchoolEmail,
		&app.PrincipalName, &app.PrincipalEmail, &app.PrincipalPhone,
		&app.ApplicantIsPrincipal, &app.ApplicantName, &app.ApplicantEmail, &app.ApplicantPhone, &app.ApplicantRole, &d.adminChoice,
		&d.presence, pq.Array(&app.Reasons), &app.OtherReason,
		&app.Status, &app.ApplicantVerifiedAt, &app.PrincipalConfirmedAt, &app.ReviewedAt, &d.reviewedBy, &app.DecisionReason,
		&app.ReminderSentAt, &d.notes, &app.SubmittedAt, &app.UpdatedAt,
	}
	return d
}

func (d *scanDest) finish(app *application.Application) error {
	if d.adminChoice.Valid {
		choice := application.AdminChoice(d.adminChoice.String)
		app.AdminChoice = &choice
	}
	if d.reviewedBy.Valid {
		id := common.UUID(d.reviewedBy.String)
		app.ReviewedBy = &id
	}
	if len(d.presence) > 0 {
		if err := json.Unmarshal(d.presence, &app.OnlinePresence); err != nil {
			return err
		}
	}
	if len(d.notes) > 0 {
		if err := json.Unmarshal(d.notes, &app.InternalNotes); err != nil {
			return err
		}
	}
	return nil
}

func collectApplications(rows *sql.Rows) ([]application.Application, error) {
	defer rows.Close()
	var items []application.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan application", err)
		}
		items = append(items, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to read applications", err)
	}
	return items, nil
}

func marshalNullable(v any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	return json.Marshal(v)
}

func adminChoiceValue(choice *application.AdminChoice) any {
	if choice == nil {
		return nil
	}
	return string(*choice)
}

func uuidValue(id *common.UUID) any {
	if id == nil {
		return nil
	}
	return string(*id)
}

func prefixedApplicationColumns(alias string) string {
	cols := strings.Split(applicationColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
