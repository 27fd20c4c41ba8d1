package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/application"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/token"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/email"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/ratelimit"
)

// RegistrationService drives the public registration workflow from submission
// through principal confirmation.
type RegistrationService struct {
	apps         application.Repository
	vault        *token.Vault
	emails       *email.Service
	limiter      ratelimit.Limiter
	resendLimit  int
	resendWindow time.Duration
	logger       zerolog.Logger
}

func NewRegistrationService(
	apps application.Repository,
	vault *token.Vault,
	emails *email.Service,
	limiter ratelimit.Limiter,
	resendLimit int,
	resendWindow time.Duration,
	logger zerolog.Logger,
) *RegistrationService {
	return &RegistrationService{
		apps:         apps,
		vault:        vault,
		emails:       emails,
		limiter:      limiter,
		resendLimit:  resendLimit,
		resendWindow: resendWindow,
		logger:       logger,
	}
}

type SchoolInfo struct {
	Name              string                        `json:"name"`
	YearEstablished   int                           `json:"year_established"`
	SchoolType        application.SchoolType        `json:"school_type"`
	StudentPopulation application.StudentPopulation `json:"student_population"`
}

type LocationInfo struct {
	CountryCode string `json:"country_code"`
	City        string `json:"city"`
	Address     string `json:"address"`
}

type ContactInfo struct {
	SchoolPhone    string `json:"school_phone"`
	SchoolEmail    string `json:"school_email"`
	PrincipalName  string `json:"principal_name"`
	PrincipalEmail string `json:"principal_email"`
	PrincipalPhone string `json:"principal_phone"`
}

type ApplicantInfo struct {
	IsPrincipal bool                     `json:"is_principal"`
	Name        string                   `json:"name"`
	Email       string                   `json:"email"`
	Phone       string                   `json:"phone"`
	Role        string                   `json:"role"`
	AdminChoice *application.AdminChoice `json:"admin_choice"`
}

type DetailsInfo struct {
	OnlinePresence []application.OnlinePresence `json:"online_presence"`
	Reasons        []string                     `json:"reasons"`
	OtherReason    string                       `json:"other_reason"`
}

// SubmitRequest is the POST /school-applications body.
type SubmitRequest struct {
	School    SchoolInfo    `json:"school"`
	Location  LocationInfo  `json:"location"`
	Contact   ContactInfo   `json:"contact"`
	Applicant ApplicantInfo `json:"applicant"`
	Details   DetailsInfo   `json:"details"`
}

func validEmail(s string) bool {
	at := strings.Index(s, "@")
	return at > 0 && at < len(s)-1 && !strings.Contains(s[at+1:], "@") && strings.Contains(s[at+1:], ".")
}

func (r SubmitRequest) Validate() error {
	fail := func(msg string) error {
		return common.NewError(common.CodeValidation, msg, nil)
	}
	if strings.TrimSpace(r.School.Name) == "" {
		return fail("school.name is required")
	}
	if r.School.YearEstablished < 1000 || r.School.YearEstablished > time.Now().Year() {
		return fail("school.year_established must be a past year")
	}
	if !r.School.SchoolType.Valid() {
		return fail("school.school_type must be public, private, mission, university, or vocational")
	}
	if !r.School.StudentPopulation.Valid() {
		return fail("school.student_population must be under_100, 100_to_300, 300_to_500, or over_500")
	}
	if !IsSupportedCountry(r.Location.CountryCode) {
		return fail(fmt.Sprintf("country code %q is not supported", r.Location.CountryCode))
	}
	if strings.TrimSpace(r.Location.City) == "" {
		return fail("location.city is required")
	}
	if strings.TrimSpace(r.Location.Address) == "" {
		return fail("location.address is required")
	}
	if r.Contact.SchoolPhone == "" && r.Contact.SchoolEmail == "" {
		return fail("at least one of school_phone or school_email is required")
	}
	if r.Contact.SchoolEmail != "" && !validEmail(r.Contact.SchoolEmail) {
		return fail("contact.school_email is not a valid email address")
	}
	if strings.TrimSpace(r.Contact.PrincipalName) == "" {
		return fail("contact.principal_name is required")
	}
	if !validEmail(r.Contact.PrincipalEmail) {
		return fail("contact.principal_email is not a valid email address")
	}
	if strings.TrimSpace(r.Contact.PrincipalPhone) == "" {
		return fail("contact.principal_phone is required")
	}
	if !r.Applicant.IsPrincipal {
		if strings.TrimSpace(r.Applicant.Name) == "" {
			return fail("applicant.name is required when applicant is not the principal")
		}
		if !validEmail(r.Applicant.Email) {
			return fail("applicant.email is required when applicant is not the principal")
		}
		if strings.TrimSpace(r.Applicant.Phone) == "" {
			return fail("applicant.phone is required when applicant is not the principal")
		}
		if strings.TrimSpace(r.Applicant.Role) == "" {
			return fail("applicant.role is required when applicant is not the principal")
		}
		if r.Applicant.AdminChoice == nil || !r.Applicant.AdminChoice.Valid() {
			return fail("applicant.admin_choice is required when applicant is not the principal")
		}
	}
	if len(r.Details.Reasons) == 0 {
		return fail("details.reasons must contain at least one entry")
	}
	return nil
}

type SubmitResult struct {
	ID                    common.UUID        `json:"id"`
	Status                application.Status `json:"status"`
	ApplicantEmail        string             `json:"applicant_email"`
	Message               string             `json:"message"`
	VerificationExpiresAt time.Time          `json:"verification_expires_at"`
}

func (s *RegistrationService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	applicantEmail := req.Contact.PrincipalEmail
	applicantName := req.Contact.PrincipalName
	if !req.Applicant.IsPrincipal {
		applicantEmail = req.Applicant.Email
		applicantName = req.Applicant.Name
	}

	if existing, err := s.apps.PendingByApplicantEmail(ctx, applicantEmail, req.School.Name); err == nil && existing != nil {
		return nil, common.NewError(common.CodeDuplicateApplication,
			fmt.Sprintf("You already have a pending application for %s. Please check your email for the verification link or contact support.", req.School.Name), nil)
	} else if err != nil && !common.Is(err, common.CodeNotFound) {
		return nil, err
	}
	if existing, err := s.apps.PendingBySchoolAndCity(ctx, req.School.Name, req.Location.City); err == nil && existing != nil {
		return nil, common.NewError(common.CodeDuplicateApplication,
			fmt.Sprintf("A school named '%s' in %s already has a pending application. If this is not a duplicate, please contact support.", req.School.Name, req.Location.City), nil)
	} else if err != nil && !common.Is(err, common.CodeNotFound) {
		return nil, err
	}

	app := application.Application{
		ID:                   common.NewUUID(),
		SchoolName:           req.School.Name,
		SchoolType:           req.School.SchoolType,
		YearEstablished:      req.School.YearEstablished,
		StudentPopulation:    req.School.StudentPopulation,
		CountryCode:          req.Location.CountryCode,
		City:                 req.Location.City,
		Address:              req.Location.Address,
		SchoolPhone:          req.Contact.SchoolPhone,
		SchoolEmail:          req.Contact.SchoolEmail,
		PrincipalName:        req.Contact.PrincipalName,
		PrincipalEmail:       req.Contact.PrincipalEmail,
		PrincipalPhone:       req.Contact.PrincipalPhone,
		ApplicantIsPrincipal: req.Applicant.IsPrincipal,
		ApplicantName:        req.Applicant.Name,
		ApplicantEmail:       req.Applicant.Email,
		ApplicantPhone:       req.Applicant.Phone,
		ApplicantRole:        req.Applicant.Role,
		AdminChoice:          req.Applicant.AdminChoice,
		OnlinePresence:       req.Details.OnlinePresence,
		Reasons:              req.Details.Reasons,
		OtherReason:          req.Details.OtherReason,
		Status:               application.StatusAwaitingApplicantVerification,
	}
	created, err := s.apps.Create(ctx, app)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("application_id", created.ID.String()).Str("school", created.SchoolName).Msg("application submitted")

	raw, expiresAt, err := s.vault.Issue(ctx, created.ID, token.TypeApplicantVerification)
	if err != nil {
		return nil, err
	}

	// Delivery failure is logged inside the email service but does not fail
	// the submission; the applicant can use the resend endpoint.
	_ = s.emails.ApplicantVerification(ctx, applicantEmail, applicantName, created.SchoolName, raw)

	return &SubmitResult{
		ID:                    created.ID,
		Status:                created.Status,
		ApplicantEmail:        applicantEmail,
		Message:               "Application submitted. Please check your email to verify.",
		VerificationExpiresAt: expiresAt,
	}, nil
}

type VerifyResult struct {
	ID                            common.UUID        `json:"id"`
	Status                        application.Status `json:"status"`
	Message                       string             `json:"message"`
	RequiresPrincipalConfirmation bool               `json:"requires_principal_confirmation"`
	PrincipalEmailHint            string             `json:"principal_email_hint,omitempty"`
}

// VerifyApplicant consumes an applicant verification token. When the
// applicant is the principal the application goes straight to review;
// otherwise a confirmation token is issued and mailed to the principal.
func (s *RegistrationService) VerifyApplicant(ctx context.Context, rawToken string) (*VerifyResult, error) {
	tok, err := s.vault.Validate(ctx, rawToken, token.TypeApplicantVerification)
	if err != nil {
		return nil, err
	}
	app, err := s.apps.GetByID(ctx, tok.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != application.StatusAwaitingApplicantVerification {
		return nil, common.NewError(common.CodeInvalidApplicationState, "this application has already been verified", nil)
	}
	if err := s.vault.Consume(ctx, rawToken); err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	if app.ApplicantIsPrincipal {
		// Principal filed the application themselves, so their verification
		// doubles as the principal confirmation.
		updated, err := s.apps.UpdateStatus(ctx, app.ID,
			application.StatusAwaitingApplicantVerification, application.StatusPendingReview,
			application.StatusUpdate{ApplicantVerifiedAt: &now, PrincipalConfirmedAt: &now})
		if err != nil {
			return nil, err
		}
		_ = s.emails.ApplicationUnderReview(ctx, app.PrincipalEmail, app.PrincipalName, app.SchoolName, app.ID)
		return &VerifyResult{
			ID:                            updated.ID,
			Status:                        updated.Status,
			Message:                       "Email verified. Your application is now under review.",
			RequiresPrincipalConfirmation: false,
		}, nil
	}

	updated, err := s.apps.UpdateStatus(ctx, app.ID,
		application.StatusAwaitingApplicantVerification, application.StatusAwaitingPrincipalConfirmation,
		application.StatusUpdate{ApplicantVerifiedAt: &now})
	if err != nil {
		return nil, err
	}
	principalRaw, _, err := s.vault.Issue(ctx, app.ID, token.TypePrincipalConfirmation)
	if err != nil {
		return nil, err
	}
	_ = s.emails.PrincipalConfirmation(ctx,
		app.PrincipalEmail, app.PrincipalName, app.SchoolName,
		app.EffectiveApplicantName(), applicantRoleOrDefault(app.ApplicantRole),
		app.City, CountryName(app.CountryCode), app.DesignatedAdminName(), principalRaw)

	return &VerifyResult{
		ID:                            updated.ID,
		Status:                        updated.Status,
		Message:                       "Email verified. The principal has been notified to confirm.",
		RequiresPrincipalConfirmation: true,
		PrincipalEmailHint:            application.MaskEmail(app.PrincipalEmail),
	}, nil
}

func applicantRoleOrDefault(role string) string {
	if role == "" {
		return "Staff"
	}
	return role
}

type PrincipalViewResult struct {
	ID            common.UUID             `json:"id"`
	SchoolName    string                  `json:"school_name"`
	ApplicantName string                  `json:"applicant_name"`
	City          string                  `json:"city"`
	Country       string                  `json:"country"`
	AdminChoice   application.AdminChoice `json:"admin_choice"`
}

// PrincipalView resolves a confirmation token without consuming it so the
// principal can see what they are confirming.
func (s *RegistrationService) PrincipalView(ctx context.Context, rawToken string) (*PrincipalViewResult, error) {
	tok, err := s.vault.Validate(ctx, rawToken, token.TypePrincipalConfirmation)
	if err != nil {
		return nil, err
	}
	app, err := s.apps.GetByID(ctx, tok.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != application.StatusAwaitingPrincipalConfirmation {
		return nil, common.NewError(common.CodeInvalidApplicationState, "this application is not awaiting principal confirmation", nil)
	}
	choice := application.AdminChoicePrincipal
	if !app.ApplicantIsPrincipal && app.AdminChoice != nil {
		choice = *app.AdminChoice
	}
	return &PrincipalViewResult{
		ID:            app.ID,
		SchoolName:    app.SchoolName,
		ApplicantName: app.EffectiveApplicantName(),
		City:          app.City,
		Country:       CountryName(app.CountryCode),
		AdminChoice:   choice,
	}, nil
}

type ConfirmResult struct {
	ID         common.UUID        `json:"id"`
	Status     application.Status `json:"status"`
	Message    string             `json:"message"`
	SchoolName string             `json:"school_name"`
}

func (s *RegistrationService) ConfirmPrincipal(ctx context.Context, rawToken string) (*ConfirmResult, error) {
	tok, err := s.vault.Validate(ctx, rawToken, token.TypePrincipalConfirmation)
	if err != nil {
		return nil, err
	}
	app, err := s.apps.GetByID(ctx, tok.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != application.StatusAwaitingPrincipalConfirmation {
		return nil, common.NewError(common.CodeInvalidApplicationState, "this application is not awaiting principal confirmation", nil)
	}
	if err := s.vault.Consume(ctx, rawToken); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	updated, err := s.apps.UpdateStatus(ctx, app.ID,
		application.StatusAwaitingPrincipalConfirmation, application.StatusPendingReview,
		application.StatusUpdate{PrincipalConfirmedAt: &now})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("application_id", app.ID.String()).Msg("principal confirmed application")
	_ = s.emails.ApplicationUnderReview(ctx, app.EffectiveApplicantEmail(), app.EffectiveApplicantName(), app.SchoolName, app.ID)
	return &ConfirmResult{
		ID:         updated.ID,
		Status:     updated.Status,
		Message:    "Application confirmed. It is now under review by our team.",
		SchoolName: app.SchoolName,
	}, nil
}

type ResendResult struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResendVerification issues a fresh token for whichever verification phase the
// application is in, limited per application. The limiter failing closed means
// a Redis outage rejects the resend rather than opening an email-sending
// loophole.
func (s *RegistrationService) ResendVerification(ctx context.Context, applicationID common.UUID, requestEmail string) (*ResendResult, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(requestEmail, app.EffectiveApplicantEmail()) {
		return nil, common.NewError(common.CodeInvalidEmail, "email does not match the application", nil)
	}
	if app.Status != application.StatusAwaitingApplicantVerification &&
		app.Status != application.StatusAwaitingPrincipalConfirmation {
		return nil, common.NewError(common.CodeAlreadyVerified, "this application has already been verified", nil)
	}

	allowed, retryAfter, err := s.limiter.Allow(ctx, "resend:"+app.ID.String(), s.resendLimit, s.resendWindow)
	if err != nil {
		return nil, err
	}
	if !allowed {
		seconds := int(retryAfter / time.Second)
		minutes := seconds / 60
		if minutes < 1 {
			minutes = 1
		}
		return nil, common.NewRateLimitedError(
			fmt.Sprintf("Too many resend requests. Please try again in %d minute(s).", minutes), seconds)
	}

	tokenType := token.TypeApplicantVerification
	if app.Status == application.StatusAwaitingPrincipalConfirmation {
		tokenType = token.TypePrincipalConfirmation
	}
	if err := s.vault.Supersede(ctx, app.ID, tokenType); err != nil {
		return nil, err
	}
	raw, expiresAt, err := s.vault.Issue(ctx, app.ID, tokenType)
	if err != nil {
		return nil, err
	}

	// Delivery failure is logged inside the email service but does not fail
	// the resend; the new token is persisted and a later resend can deliver it.
	if tokenType == token.TypePrincipalConfirmation {
		_ = s.emails.PrincipalConfirmation(ctx,
			app.PrincipalEmail, app.PrincipalName, app.SchoolName,
			app.EffectiveApplicantName(), applicantRoleOrDefault(app.ApplicantRole),
			app.City, CountryName(app.CountryCode), app.DesignatedAdminName(), raw)
		return &ResendResult{Message: "Confirmation email resent to the principal.", ExpiresAt: expiresAt}, nil
	}
	_ = s.emails.ApplicantVerification(ctx, app.EffectiveApplicantEmail(), app.EffectiveApplicantName(), app.SchoolName, raw)
	return &ResendResult{Message: "Verification email sent successfully.", ExpiresAt: expiresAt}, nil
}

type StatusStep struct {
	Name        string     `json:"name"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type StatusResult struct {
	ID                   common.UUID        `json:"id"`
	SchoolName           string             `json:"school_name"`
	Status               application.Status `json:"status"`
	StatusLabel          string             `json:"status_label"`
	StatusDescription    string             `json:"status_description"`
	SubmittedAt          time.Time          `json:"submitted_at"`
	ApplicantVerifiedAt  *time.Time         `json:"applicant_verified_at,omitempty"`
	PrincipalConfirmedAt *time.Time         `json:"principal_confirmed_at,omitempty"`
	Steps                []StatusStep       `json:"steps"`
}

var statusLabels = map[application.Status][2]string{
	application.StatusAwaitingApplicantVerification: {"Awaiting Email Verification", "Check your email for the verification link."},
	application.StatusAwaitingPrincipalConfirmation: {"Awaiting Principal Confirmation", "The principal has been asked to confirm this application."},
	application.StatusPendingReview:                 {"Pending Review", "Your application is queued for review by our team."},
	application.StatusUnderReview:                   {"Under Review", "Our team is reviewing your application."},
	application.StatusMoreInfoRequested:             {"More Information Requested", "Please check your email and respond to our request."},
	application.StatusApproved:                      {"Approved", "Your school has been registered. Check your email for credentials."},
	application.StatusRejected:                      {"Rejected", "Unfortunately your application was not approved. Check your email for details."},
	application.StatusExpired:                       {"Expired", "The application expired before verification completed. You may submit a new one."},
}

// Status reports workflow progress. The caller must supply the applicant's
// email; anyone without it only holds an opaque ID and learns nothing.
func (s *RegistrationService) Status(ctx context.Context, applicationID common.UUID, requestEmail string) (*StatusResult, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(requestEmail, app.EffectiveApplicantEmail()) {
		return nil, common.NewError(common.CodeInvalidEmail, "email does not match the application", nil)
	}

	decided := app.Status == application.StatusApproved || app.Status == application.StatusRejected
	reviewing := decided || app.Status == application.StatusUnderReview || app.Status == application.StatusMoreInfoRequested

	steps := []StatusStep{
		{Name: "submitted", Completed: true, CompletedAt: &app.SubmittedAt},
		{Name: "email_verified", Completed: app.ApplicantVerifiedAt != nil, CompletedAt: app.ApplicantVerifiedAt},
	}
	if !app.ApplicantIsPrincipal {
		steps = append(steps, StatusStep{
			Name:        "principal_confirmed",
			Completed:   app.PrincipalConfirmedAt != nil,
			CompletedAt: app.PrincipalConfirmedAt,
		})
	}
	steps = append(steps,
		StatusStep{Name: "under_review", Completed: reviewing, CompletedAt: reviewedAtIf(reviewing, app.ReviewedAt)},
		StatusStep{Name: "decision", Completed: decided, CompletedAt: reviewedAtIf(decided, app.ReviewedAt)},
	)

	labels := statusLabels[app.Status]
	return &StatusResult{
		ID:                   app.ID,
		SchoolName:           app.SchoolName,
		Status:               app.Status,
		StatusLabel:          labels[0],
		StatusDescription:    labels[1],
		SubmittedAt:          app.SubmittedAt,
		ApplicantVerifiedAt:  app.ApplicantVerifiedAt,
		PrincipalConfirmedAt: app.PrincipalConfirmedAt,
		Steps:                steps,
	}, nil
}

func reviewedAtIf(cond bool, at *time.Time) *time.Time {
	if !cond {
		return nil
	}
	return at
}
