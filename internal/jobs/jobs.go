package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/application"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/token"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/email"
)

const (
	JobSendReminders      = "school_applications_send_reminders"
	JobExpireApplications = "school_applications_expire_applications"
)

// Lifecycle runs the reminder and expiry jobs. Both are idempotent: reminders
// are claimed with a conditional update before any email goes out, and expiry
// uses compare-and-set status transitions, so concurrent or repeated runs
// never double-process an application.
type Lifecycle struct {
	apps              application.Repository
	vault             *token.Vault
	emails            *email.Service
	reminderThreshold time.Duration
	expiryThreshold   time.Duration
	logger            zerolog.Logger
}

func NewLifecycle(
	apps application.Repository,
	vault *token.Vault,
	emails *email.Service,
	reminderThreshold, expiryThreshold time.Duration,
	logger zerolog.Logger,
) *Lifecycle {
	return &Lifecycle{
		apps:              apps,
		vault:             vault,
		emails:            emails,
		reminderThreshold: reminderThreshold,
		expiryThreshold:   expiryThreshold,
		logger:            logger,
	}
}

// RegisterAll wires both jobs into the registry.
func (l *Lifecycle) RegisterAll(registry *Registry) {
	registry.Register(JobSendReminders, l.SendReminders)
	registry.Register(JobExpireApplications, l.ExpireApplications)
}

func (l *Lifecycle) hoursRemaining() int {
	return int((l.expiryThreshold - l.reminderThreshold) / time.Hour)
}

// SendReminders emails everyone whose verification window passed the reminder
// threshold. The applicant path keys on submission time; the principal path
// keys on when the confirmation token was created, since the principal's
// window starts only after the applicant verifies.
func (l *Lifecycle) SendReminders(ctx context.Context) (*Result, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-l.reminderThreshold)
	result := &Result{Job: JobSendReminders, ExecutedAt: now}

	applicants, err := l.apps.NeedingApplicantReminder(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	for _, app := range applicants {
		item := l.remindOne(ctx, app, token.TypeApplicantVerification, "/register/verify",
			app.EffectiveApplicantEmail(), app.EffectiveApplicantName(), now)
		result.add(item)
	}

	principals, err := l.apps.PrincipalNeedingReminder(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	for _, pending := range principals {
		app := pending.Application
		item := l.remindOne(ctx, app, token.TypePrincipalConfirmation, "/register/confirm-principal",
			app.PrincipalEmail, app.PrincipalName, now)
		result.add(item)
	}

	l.logger.Info().Int("processed", result.Processed).Int("skipped", result.Skipped).Int("errors", result.Errors).Msg("reminder job finished")
	return result, nil
}

func (l *Lifecycle) remindOne(ctx context.Context, app application.Application, tokenType token.Type, path, toEmail, toName string, now time.Time) ItemResult {
	claimed, err := l.apps.ClaimReminder(ctx, app.ID, now)
	if err != nil {
		l.logger.Error().Err(err).Str("application_id", app.ID.String()).Msg("reminder claim failed")
		return ItemResult{ApplicationID: app.ID, Status: "error", Reason: err.Error()}
	}
	if !claimed {
		return ItemResult{ApplicationID: app.ID, Status: "skipped", Reason: "already_claimed"}
	}

	// Only the hash of the original token survives in storage, so the
	// reminder link carries a reissued token with the original window.
	raw, _, err := l.vault.Reissue(ctx, app.ID, tokenType)
	if err != nil {
		if common.Is(err, common.CodeInvalidToken) {
			l.logger.Warn().Str("application_id", app.ID.String()).Msg("no valid token to remind about, expiry job will pick it up")
			return ItemResult{ApplicationID: app.ID, Status: "skipped", Reason: "no_valid_token"}
		}
		return ItemResult{ApplicationID: app.ID, Status: "error", Reason: err.Error()}
	}

	if err := l.emails.VerificationReminder(ctx, toEmail, toName, app.SchoolName, path, raw, l.hoursRemaining()); err != nil {
		// Claim stays set: a reminder is best-effort and retrying risks
		// duplicates more than it helps.
		return ItemResult{ApplicationID: app.ID, Status: "claimed_email_failed", Reason: err.Error()}
	}
	return ItemResult{ApplicationID: app.ID, Status: "sent"}
}

// ExpireApplications moves applications past the verification window to the
// expired terminal status and notifies the applicant.
func (l *Lifecycle) ExpireApplications(ctx context.Context) (*Result, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-l.expiryThreshold)
	result := &Result{Job: JobExpireApplications, ExecutedAt: now}

	unverified, err := l.apps.ExpiredUnverified(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	for _, app := range unverified {
		result.add(l.expireOne(ctx, app, application.StatusAwaitingApplicantVerification))
	}

	principals, err := l.apps.PrincipalToExpire(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	for _, pending := range principals {
		result.add(l.expireOne(ctx, pending.Application, application.StatusAwaitingPrincipalConfirmation))
	}

	l.logger.Info().Int("processed", result.Processed).Int("skipped", result.Skipped).Int("errors", result.Errors).Msg("expiry job finished")
	return result, nil
}

func (l *Lifecycle) expireOne(ctx context.Context, app application.Application, from application.Status) ItemResult {
	_, err := l.apps.UpdateStatus(ctx, app.ID, from, application.StatusExpired, application.StatusUpdate{})
	if err != nil {
		if common.Is(err, common.CodeInvalidApplicationState) {
			// Someone verified or another run expired it between the query
			// and the update.
			return ItemResult{ApplicationID: app.ID, Status: "skipped", Reason: "status_changed"}
		}
		l.logger.Error().Err(err).Str("application_id", app.ID.String()).Msg("expiry update failed")
		return ItemResult{ApplicationID: app.ID, Status: "error", Reason: err.Error()}
	}
	l.logger.Info().Str("application_id", app.ID.String()).Str("school", app.SchoolName).Msg("application expired")
	_ = l.emails.ApplicationExpired(ctx, app.EffectiveApplicantEmail(), app.EffectiveApplicantName(), app.SchoolName)
	return ItemResult{ApplicationID: app.ID, Status: "expired"}
}

func (r *Result) add(item ItemResult) {
	r.Items = append(r.Items, item)
	switch item.Status {
	case "skipped":
		r.Skipped++
	case "error":
		r.Errors++
	default:
		r.Processed++
	}
}
