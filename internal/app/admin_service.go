package app

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/application"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/school"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/email"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/security"
)

type AdminService struct {
	apps        application.Repository
	provisioner school.Provisioner
	emails      *email.Service
	logger      zerolog.Logger
}

func NewAdminService(apps application.Repository, provisioner school.Provisioner, emails *email.Service, logger zerolog.Logger) *AdminService {
	return &AdminService{apps: apps, provisioner: provisioner, emails: emails, logger: logger}
}

func (s *AdminService) List(ctx context.Context, filter application.ListFilter) ([]application.Application, int, error) {
	switch filter.SortBy {
	case "", "submitted_at", "school_name":
	default:
		return nil, 0, common.NewError(common.CodeValidation, "sort_by must be submitted_at or school_name", nil)
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.apps.List(ctx, filter)
}

func (s *AdminService) Stats(ctx context.Context) (*application.Stats, error) {
	return s.apps.Stats(ctx)
}

func (s *AdminService) Get(ctx context.Context, id common.UUID) (*application.Application, error) {
	return s.apps.GetByID(ctx, id)
}

// StartReview moves a pending application to under_review and records the
// reviewing admin.
func (s *AdminService) StartReview(ctx context.Context, id, adminID common.UUID) (*application.Application, error) {
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status != application.StatusPendingReview {
		return nil, common.NewError(common.CodeCannotReview, "only applications pending review can be picked up", nil)
	}
	now := time.Now().UTC()
	updated, err := s.apps.UpdateStatus(ctx, id, application.StatusPendingReview, application.StatusUnderReview,
		application.StatusUpdate{ReviewedAt: &now, ReviewedBy: &adminID})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("application_id", id.String()).Str("admin_id", adminID.String()).Msg("review started")
	return updated, nil
}

// RequestMoreInfo pauses a review while the applicant responds. The message
// is stored as the decision reason and mailed to the applicant.
func (s *AdminService) RequestMoreInfo(ctx context.Context, id, adminID common.UUID, message string) (*application.Application, error) {
	message = strings.TrimSpace(message)
	if len(message) < 10 || len(message) > 1000 {
		return nil, common.NewError(common.CodeValidation, "message must be between 10 and 1000 characters", nil)
	}
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !application.CanTransition(app.Status, application.StatusMoreInfoRequested) {
		return nil, common.NewError(common.CodeCannotDecide, "application is not under review", nil)
	}
	now := time.Now().UTC()
	updated, err := s.apps.UpdateStatus(ctx, id, app.Status, application.StatusMoreInfoRequested,
		application.StatusUpdate{ReviewedAt: &now, ReviewedBy: &adminID, DecisionReason: &message})
	if err != nil {
		return nil, err
	}
	_ = s.emails.MoreInfoRequested(ctx, app.EffectiveApplicantEmail(), app.EffectiveApplicantName(), app.SchoolName, message, app.ID)
	s.logger.Info().Str("application_id", id.String()).Str("admin_id", adminID.String()).Msg("more info requested")
	return updated, nil
}

type ApproveOutcome struct {
	Application *application.Application
	SchoolID    common.UUID
	AdminUserID common.UUID
}

// Approve provisions the school tenant and its first admin account, then
// mails the credentials. The temporary password exists in memory only for the
// duration of this call.
func (s *AdminService) Approve(ctx context.Context, id, adminID common.UUID) (*ApproveOutcome, error) {
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !application.CanTransition(app.Status, application.StatusApproved) {
		return nil, common.NewError(common.CodeCannotDecide, "application cannot be approved from its current status", nil)
	}

	tempPassword, err := security.GenerateTempPassword()
	if err != nil {
		return nil, err
	}
	passwordHash, err := security.HashPassword(tempPassword)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	provisioned, err := s.provisioner.ProvisionApproval(ctx, *app, adminID, passwordHash, now)
	if err != nil {
		s.logger.Error().Err(err).Str("application_id", id.String()).Msg("school provisioning failed")
		return nil, err
	}
	s.logger.Info().
		Str("application_id", id.String()).
		Str("school_id", provisioned.SchoolID.String()).
		Str("admin_user_id", provisioned.AdminUserID.String()).
		Msg("application approved, school provisioned")

	if err := s.emails.ApplicationApproved(ctx, app.DesignatedAdminEmail(), app.DesignatedAdminName(), app.SchoolName, app.DesignatedAdminEmail(), tempPassword); err != nil {
		// The tenant exists either way. Record the failed delivery so an
		// admin can resend credentials manually.
		note := application.Note{
			Note:      "Welcome email delivery failed; credentials need to be resent manually.",
			CreatedBy: adminID,
			CreatedAt: time.Now().UTC(),
		}
		if noteErr := s.apps.AppendNote(ctx, id, note); noteErr != nil {
			s.logger.Error().Err(noteErr).Str("application_id", id.String()).Msg("failed to record email-failure note")
		}
	}

	updated, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ApproveOutcome{Application: updated, SchoolID: provisioned.SchoolID, AdminUserID: provisioned.AdminUserID}, nil
}

func (s *AdminService) Reject(ctx context.Context, id, adminID common.UUID, reason string) (*application.Application, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) < 20 || len(reason) > 1000 {
		return nil, common.NewError(common.CodeValidation, "reason must be between 20 and 1000 characters", nil)
	}
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !application.CanTransition(app.Status, application.StatusRejected) {
		return nil, common.NewError(common.CodeCannotDecide, "application cannot be rejected from its current status", nil)
	}
	now := time.Now().UTC()
	updated, err := s.apps.UpdateStatus(ctx, id, app.Status, application.StatusRejected,
		application.StatusUpdate{ReviewedAt: &now, ReviewedBy: &adminID, DecisionReason: &reason})
	if err != nil {
		return nil, err
	}
	_ = s.emails.ApplicationRejected(ctx, app.EffectiveApplicantEmail(), app.EffectiveApplicantName(), app.SchoolName, reason)
	s.logger.Info().Str("application_id", id.String()).Str("admin_id", adminID.String()).Msg("application rejected")
	return updated, nil
}

func (s *AdminService) AddNote(ctx context.Context, id, adminID common.UUID, text string) (*application.Note, error) {
	text = strings.TrimSpace(text)
	if len(text) < 1 || len(text) > 2000 {
		return nil, common.NewError(common.CodeValidation, "note must be between 1 and 2000 characters", nil)
	}
	if _, err := s.apps.GetByID(ctx, id); err != nil {
		return nil, err
	}
	note := application.Note{Note: text, CreatedBy: adminID, CreatedAt: time.Now().UTC()}
	if err := s.apps.AppendNote(ctx, id, note); err != nil {
		return nil, err
	}
	return &note, nil
}
