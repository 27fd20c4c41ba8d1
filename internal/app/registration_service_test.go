package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/application"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/token"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/email"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/ratelimit"
)

type fakeAppRepo struct {
	mu   sync.Mutex
	apps map[common.UUID]*application.Application
}

func newFakeAppRepo() *fakeAppRepo {
	return &fakeAppRepo{apps: make(map[common.UUID]*application.Application)}
}

func (r *fakeAppRepo) Create(ctx context.Context, app application.Application) (*application.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	app.SubmittedAt = now
	app.UpdatedAt = now
	stored := app
	r.apps[app.ID] = &stored
	out := stored
	return &out, nil
}

func (r *fakeAppRepo) GetByID(ctx context.Context, id common.UUID) (*application.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "application not found", nil)
	}
	out := *app
	return &out, nil
}

func (r *fakeAppRepo) UpdateStatus(ctx context.Context, id common.UUID, from, to application.Status, update application.StatusUpdate) (*application.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "application not found", nil)
	}
	if !application.CanTransition(from, to) {
		return nil, common.NewError(common.CodeInvalidApplicationState, "transition not allowed", nil)
	}
	if app.Status != from {
		return nil, common.NewError(common.CodeInvalidApplicationState, "application status changed", nil)
	}
	app.Status = to
	if update.ApplicantVerifiedAt != nil {
		app.ApplicantVerifiedAt = update.ApplicantVerifiedAt
	}
	if update.PrincipalConfirmedAt != nil {
		app.PrincipalConfirmedAt = update.PrincipalConfirmedAt
	}
	if update.ReviewedAt != nil {
		app.ReviewedAt = update.ReviewedAt
	}
	if update.ReviewedBy != nil {
		app.ReviewedBy = update.ReviewedBy
	}
	if update.DecisionReason != nil {
		app.DecisionReason = update.DecisionReason
	}
	app.UpdatedAt = time.Now().UTC()
	out := *app
	return &out, nil
}

func (r *fakeAppRepo) AppendNote(ctx context.Context, id common.UUID, note application.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return common.NewError(common.CodeNotFound, "application not found", nil)
	}
	app.InternalNotes = append(app.InternalNotes, note)
	return nil
}

func (r *fakeAppRepo) ClaimReminder(ctx context.Context, id common.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return false, common.NewError(common.CodeNotFound, "application not found", nil)
	}
	if app.ReminderSentAt != nil {
		return false, nil
	}
	claimed := at
	app.ReminderSentAt = &claimed
	return true, nil
}

func (r *fakeAppRepo) PendingBySchoolAndCity(ctx context.Context, schoolName, city string) (*application.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, app := range r.apps {
		if application.IsTerminal(app.Status) {
			continue
		}
		if strings.EqualFold(app.SchoolName, schoolName) && strings.EqualFold(app.City, city) {
			out := *app
			return &out, nil
		}
	}
	return nil, common.NewError(common.CodeNotFound, "application not found", nil)
}

func (r *fakeAppRepo) PendingByApplicantEmail(ctx context.Context, email, schoolName string) (*application.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, app := range r.apps {
		if application.IsTerminal(app.Status) {
			continue
		}
		if strings.EqualFold(app.EffectiveApplicantEmail(), email) && strings.EqualFold(app.SchoolName, schoolName) {
			out := *app
			return &out, nil
		}
	}
	return nil, common.NewError(common.CodeNotFound, "application not found", nil)
}

func (r *fakeAppRepo) NeedingApplicantReminder(ctx context.Context, cutoff time.Time) ([]application.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []application.Application
	for _, app := range r.apps {
		if app.Status == application.StatusAwaitingApplicantVerification && app.SubmittedAt.Before(cutoff) && app.ReminderSentAt == nil {
			out = append(out, *app)
		}
	}
	return out, nil
}

func (r *fakeAppRepo) ExpiredUnverified(ctx context.Context, cutoff time.Time) ([]application.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []application.Application
	for _, app := range r.apps {
		if app.Status == application.StatusAwaitingApplicantVerification && app.SubmittedAt.Before(cutoff) {
			out = append(out, *app)
		}
	}
	return out, nil
}

func (r *fakeAppRepo) PrincipalNeedingReminder(ctx context.Context, cutoff time.Time) ([]application.PrincipalPending, error) {
	return nil, nil
}

func (r *fakeAppRepo) PrincipalToExpire(ctx context.Context, cutoff time.Time) ([]application.PrincipalPending, error) {
	return nil, nil
}

func (r *fakeAppRepo) List(ctx context.Context, filter application.ListFilter) ([]application.Application, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []application.Application
	for _, app := range r.apps {
		if filter.Status != nil && app.Status != *filter.Status {
			continue
		}
		out = append(out, *app)
	}
	return out, len(out), nil
}

func (r *fakeAppRepo) Stats(ctx context.Context) (*application.Stats, error) {
	return &application.Stats{}, nil
}

type fakeTokenStore struct {
	mu     sync.Mutex
	byHash map[string]*token.VerificationToken
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{byHash: make(map[string]*token.VerificationToken)}
}

func (s *fakeTokenStore) Create(ctx context.Context, t token.VerificationToken) (*token.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := t
	s.byHash[t.TokenHash] = &stored
	out := stored
	return &out, nil
}

func (s *fakeTokenStore) GetByHash(ctx context.Context, hash string) (*token.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byHash[hash]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "token not found", nil)
	}
	out := *t
	return &out, nil
}

func (s *fakeTokenStore) Consume(ctx context.Context, hash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byHash[hash]
	if !ok {
		return common.NewError(common.CodeInvalidToken, "token not found", nil)
	}
	if t.UsedAt != nil {
		return common.NewError(common.CodeTokenAlreadyUsed, "token already used", nil)
	}
	used := at
	t.UsedAt = &used
	return nil
}

func (s *fakeTokenStore) DeleteUnused(ctx context.Context, applicationID common.UUID, tokenType token.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, t := range s.byHash {
		if t.ApplicationID == applicationID && t.TokenType == tokenType && t.UsedAt == nil {
			delete(s.byHash, hash)
		}
	}
	return nil
}

func (s *fakeTokenStore) ValidForApplication(ctx context.Context, applicationID common.UUID, tokenType token.Type, now time.Time) (*token.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.byHash {
		if t.ApplicationID == applicationID && t.TokenType == tokenType && t.Valid(now) {
			out := *t
			return &out, nil
		}
	}
	return nil, common.NewError(common.CodeNotFound, "no valid token", nil)
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []email.Message
	failNext bool
}

func (s *fakeSender) Send(ctx context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return common.NewError(common.CodeInternal, "smtp unavailable", nil)
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) lastTo() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return ""
	}
	return s.sent[len(s.sent)-1].To
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// failLimiter simulates a limiter backend outage.
type failLimiter struct{}

func (failLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	return false, 0, common.NewError(common.CodeServiceUnavailable, "rate limiter unavailable", nil)
}

type registrationFixture struct {
	repo    *fakeAppRepo
	tokens  *fakeTokenStore
	sender  *fakeSender
	vault   *token.Vault
	service *RegistrationService
}

func newRegistrationFixture(limiter ratelimit.Limiter) *registrationFixture {
	repo := newFakeAppRepo()
	tokens := newFakeTokenStore()
	sender := &fakeSender{}
	vault := token.NewVault(tokens, 72*time.Hour)
	emails := email.NewService(sender, "http://localhost:3000", zerolog.Nop())
	service := NewRegistrationService(repo, vault, emails, limiter, 3, time.Hour, zerolog.Nop())
	return &registrationFixture{repo: repo, tokens: tokens, sender: sender, vault: vault, service: service}
}

func principalSubmitRequest() SubmitRequest {
	return SubmitRequest{
		School: SchoolInfo{
			Name:              "Hope Academy",
			YearEstablished:   1998,
			SchoolType:        application.SchoolTypePrivate,
			StudentPopulation: application.Population100To300,
		},
		Location: LocationInfo{CountryCode: "LR", City: "Monrovia", Address: "12 Broad Street"},
		Contact: ContactInfo{
			SchoolEmail:    "office@hopeacademy.edu",
			PrincipalName:  "Ada Kollie",
			PrincipalEmail: "ada@hopeacademy.edu",
			PrincipalPhone: "+231770000001",
		},
		Applicant: ApplicantInfo{IsPrincipal: true},
		Details:   DetailsInfo{Reasons: []string{"student_records"}},
	}
}

func staffSubmitRequest() SubmitRequest {
	choice := application.AdminChoiceApplicant
	req := principalSubmitRequest()
	req.Applicant = ApplicantInfo{
		IsPrincipal: false,
		Name:        "Ben Sesay",
		Email:       "ben@hopeacademy.edu",
		Phone:       "+231770000002",
		Role:        "Vice Principal",
		AdminChoice: &choice,
	}
	return req
}

// rawTokenFor finds the live raw token by reissuing it, which keeps the
// stored hash and the raw value in the test's hands at the same time.
func (f *registrationFixture) rawTokenFor(t *testing.T, appID common.UUID, typ token.Type) string {
	t.Helper()
	raw, _, err := f.vault.Reissue(context.Background(), appID, typ)
	if err != nil {
		t.Fatalf("expected a live token to reissue, got %v", err)
	}
	return raw
}

func TestRegistrationSubmit_PrincipalApplicant(t *testing.T) {
	f := newRegistrationFixture(ratelimit.NewMemoryLimiter())

	result, err := f.service.Submit(context.Background(), principalSubmitRequest())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Status != application.StatusAwaitingApplicantVerification {
		t.Fatalf("expected awaiting_applicant_verification, got %s", result.Status)
	}
	if result.ApplicantEmail != "ada@hopeacademy.edu" {
		t.Fatalf("expected principal email as applicant email, got %s", result.ApplicantEmail)
	}
	if f.sender.lastTo() != "ada@hopeacademy.edu" {
		t.Fatalf("expected verification email to principal, got %q", f.sender.lastTo())
	}
	if result.VerificationExpiresAt.Before(time.Now().Add(71 * time.Hour)) {
		t.Fatalf("expected ~72h verification window, got %v", result.VerificationExpiresAt)
	}
}

func TestRegistrationSubmit_ValidationFailures(t *testing.T) {
	f := newRegistrationFixture(ratelimit.NewMemoryLimiter())

	cases := []struct {
		name   string
		mutate func(*SubmitRequest)
	}{
		{"future year", func(r *SubmitRequest) { r.School.YearEstablished = time.Now().Year() + 1 }},
		{"ancient year", func(r *SubmitRequest) { r.School.YearEstablished = 999 }},
		{"unsupported country", func(r *SubmitRequest) { r.Location.CountryCode = "US" }},
		{"no school contact", func(r *SubmitRequest) { r.Contact.SchoolPhone = ""; r.Contact.SchoolEmail = "" }},
		{"bad principal email", func(r *SubmitRequest) { r.Contact.PrincipalEmail = "not-an-email" }},
		{"no reasons", func(r *SubmitRequest) { r.Details.Reasons = nil }},
		{"staff missing admin choice", func(r *SubmitRequest) {
			*r = staffSubmitRequest()
			r.Applicant.AdminChoice = nil
		}},
	}
	for _, c := range cases {
		req := principalSubmitRequest()
		c.mutate(&req)
		if _, err := f.service.Submit(context.Background(), req); !common.Is(err, common.CodeValidation) {
			t.Errorf("%s: expected validation error, got %v", c.name, err)
		}
	}
}

func TestRegistrationSubmit_DuplicateDetection(t *testing.T) {
	f := newRegistrationFixture(ratelimit.NewMemoryLimiter())

	if _, err := f.service.Submit(context.Background(), principalSubmitRequest()); err != nil {
		t.Fatalf("expected first submission to succeed, got %v", err)
	}

	_, err := f.service.Submit(context.Background(), principalSubmitRequest())
	if !common.Is(err, common.CodeDuplicateApplication) {
		t.Fatalf("expected duplicate_application, got %v", err)
	}

	other := principalSubmitRequest()
	other.Contact.PrincipalEmail = "someone@else.edu"
	_, err = f.service.Submit(context.Background(), other)
	if !common.Is(err, common.CodeDuplicateApplication) {
		t.Fatalf("expected duplicate_application for same school and city, got %v", err)
	}
}

func TestRegistrationVerify_PrincipalApplicant_SkipsConfirmation(t *testing.T) {
	f := newRegistrationFixture(ratelimit.NewMemoryLimiter())

	submitted, err := f.service.Submit(context.Background(), principalSubmitRequest())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	raw := f.rawTokenFor(t, submitted.ID, token.TypeApplicantVerification)

	result, err := f.service.VerifyApplicant(context.Background(), raw)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Status != application.StatusPendingReview {
		t.Fatalf("expected pending_review, got %s", result.Status)
	}
	if result.RequiresPrincipalConfirmation {
		t.Fatal("principal applicant must not require separate confirmation")
	}

	app, _ := f.repo.GetByID(context.Background(), submitted.ID)
	if app.ApplicantVerifiedAt == nil || app.PrincipalConfirmedAt == nil {
		t.Fatal("expected both verification timestamps set")
	}

	if _, err := f.service.VerifyApplicant(context.Background(), raw); !common.Is(err, common.CodeTokenAlreadyUsed) {
		t.Fatalf("expected token_already_used on replay, got %v", err)
	}
}

func TestRegistrationVerify_StaffApplicant_NotifiesPrincipal(t *testing.T) {
	f := newRegistrationFixture(ratelimit.NewMemoryLimiter())

	submitted, err := f.service.Submit(context.Background(), staffSubmitRequest())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if f.sender.lastTo() != "ben@hopeacademy.edu" {
		t.Fatalf("expected verification email to applicant, got %q", f.sender.lastTo())
	}

	raw := f.rawTokenFor(t, submitted.ID, token.TypeApplicantVerification)
	result, err := f.service.VerifyApplicant(context.Background(), raw)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Status != application.StatusAwaitingPrincipalConfirmation {
		t.Fatalf("expected awaiting_principal_confirmation, got %s", result.Status)
	}
	if !result.RequiresPrincipalConfirmation {
		t.Fatal("expected principal confirmation to be required")
	}
	if result.PrincipalEmailHint != "a***@hopeacademy.edu" {
		t.Fatalf("expected masked principal email, got %q", result.PrincipalEmailHint)
	}
	if f.sender.lastTo() != "ada@hopeacademy.edu" {
		t.Fatalf("expected confirmation email to principal, got %q", f.sender.lastTo())
	}

	confirmRaw := f.rawTokenFor(t, submitted.ID, token.TypePrincipalConfirmation)

	view, err := f.service.PrincipalView(context.Background(), confirmRaw)
	if err != nil {
		t.Fatalf("expected principal view to resolve, got %v", err)
	}
	if view.SchoolName != "Hope Academy" || view.ApplicantName != "Ben Sesay" {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.Country != "Liberia" {
		t.Fatalf("expected country name, got %q", view.Country)
	}

	confirmed, err := f.service.ConfirmPrincipal(context.Background(), confirmRaw)
	if err != nil {
		t.Fatalf("expected confirmation to succeed, got %v", err)
	}
	if confirmed.Status != application.StatusPendingReview {
		t.Fatalf("expected pending_review, got %s", confirmed.Status)
	}
	if f.sender.lastTo() != "ben@hopeacademy.edu" {
		t.Fatalf("expected under-review email to applicant, got %q", f.sender.lastTo())
	}

	if _, err := f.service.ConfirmPrincipal(context.Background(), confirmRaw); !common.Is(err, common.CodeTokenAlreadyUsed) {
		t.Fatalf("expected token_already_used on replay, got %v", err)
	}
}

func TestRegistrationVerify_WrongTokenType(t *testing.T) {
	f := newRegistrationFixture(ratelimit.NewMemoryLimiter())

	submitted, err := f.service.Submit(context.Background(), principalSubmitRequest())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	raw := f.rawTokenFor(t, submitted.ID, token.TypeApplicantVerification)

	if _, err := f.service.ConfirmPrincipal(context.Background(), raw); !common.Is(err, common.CodeInvalidToken) {
		t.Fatalf("expected invalid_token for applicant token on principal path, got %v", err)
	}
}

func TestResendVerification_RateLimit(t *testing.T) {
	f := newRegistrationFixture(ratelimit.NewMemoryLimiter())

	submitted, err := f.service.Submit(context.Background(), principalSubmitRequest())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := f.service.ResendVerification(context.Background(), submitted.ID, "ada@hopeacademy.edu"); err != nil {
			t.Fatalf("resend %d: expected nil error, got %v", i+1, err)
		}
	}
	_, err = f.service.ResendVerification(context.Background(), submitted.ID, "ada@hopeacademy.edu")
	if !common.Is(err, common.CodeRateLimited) {
		t.Fatalf("expected rate_limited on 4th resend, got %v", err)
	}
	if retryAfter := common.RetryAfterOf(err); retryAfter < 1 {
		t.Fatalf("expected positive retry-after, got %d", retryAfter)
	}
}

func TestResendVerification_FailsClosedOnLimiterError(t *testing.T) {
	f := newRegistrationFixture(failLimiter{})

	submitted, err := f.service.Submit(context.Background(), principalSubmitRequest())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	before := f.sender.count()
	_, err = f.service.ResendVerification(context.Background(), submitted.ID, "ada@hopeacademy.edu")
	if !common.Is(err, common.CodeServiceUnavailable) {
		t.Fatalf("expected service_unavailable, got %v", err)
	}
	if f.sender.count() != before {
		t.Fatal("no email may be sent when the limiter is down")
	}
}

func TestResendVerification_EmailMismatch(t *testing.T) {
	f := newRegistrationFixture(ratelimit.NewMemoryLimiter())

	submitted, err := f.service.Submit(context.Background(), principalSubmitRequest())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	_, err = f.service.ResendVerification(context.Background(), submitted.ID, "stranger@example.com")
	if !common.Is(err, common.CodeInvalidEmail) {
		t.Fatalf("expected invalid_email, got %v", err)
	}
}

func TestResendVerification_AlreadyVerified(t *testing.T) {
	f := newRegistrationFixture(ratelimit.NewMemoryLimiter())

	submitted, err := f.service.Submit(context.Background(), principalSubmitRequest())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	raw := f.rawTokenFor(t, submitted.ID, token.TypeApplicantVerification)
	if _, err := f.service.VerifyApplicant(context.Background(), raw); err != nil {
		t.Fatalf("expected verification to succeed, got %v", err)
	}

	_, err = f.service.ResendVerification(context.Background(), submitted.ID, "ada@hopeacademy.edu")
	if !common.Is(err, common.CodeAlreadyVerified) {
		t.Fatalf("expected already_verified, got %v", err)
	}
}

func TestResendVerification_PrincipalConfirmationPhase(t *testing.T) {
	f := newRegistrationFixture(ratelimit.NewMemoryLimiter())

	submitted, err := f.service.Submit(context.Background(), staffSubmitRequest())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	raw := f.rawTokenFor(t, submitted.ID, token.TypeApplicantVerification)
	if _, err := f.service.VerifyApplicant(context.Background(), raw); err != nil {
		t.Fatalf("expected verification to succeed, got %v", err)
	}

	result, err := f.service.ResendVerification(context.Background(), submitted.ID, "ben@hopeacademy.edu")
	if err != nil {
		t.Fatalf("expected resend to succeed while awaiting the principal, got %v", err)
	}
	if !strings.Contains(result.Message, "principal") {
		t.Fatalf("expected a principal-directed message, got %q", result.Message)
	}
	if f.sender.lastTo() != "ada@hopeacademy.edu" {
		t.Fatalf("expected confirmation email to principal, got %q", f.sender.lastTo())
	}

	confirmRaw := f.rawTokenFor(t, submitted.ID, token.TypePrincipalConfirmation)
	confirmed, err := f.service.ConfirmPrincipal(context.Background(), confirmRaw)
	if err != nil {
		t.Fatalf("expected reissued token to confirm, got %v", err)
	}
	if confirmed.Status != application.StatusPendingReview {
		t.Fatalf("expected pending_review, got %s", confirmed.Status)
	}
}

func TestResendVerification_EmailFailureStillSucceeds(t *testing.T) {
	f := newRegistrationFixture(ratelimit.NewMemoryLimiter())

	submitted, err := f.service.Submit(context.Background(), principalSubmitRequest())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	f.sender.failNext = true
	if _, err := f.service.ResendVerification(context.Background(), submitted.ID, "ada@hopeacademy.edu"); err != nil {
		t.Fatalf("expected resend to survive a delivery failure, got %v", err)
	}

	// The freshly issued token must remain usable even though its email bounced.
	raw := f.rawTokenFor(t, submitted.ID, token.TypeApplicantVerification)
	if _, err := f.service.VerifyApplicant(context.Background(), raw); err != nil {
		t.Fatalf("expected the new token to verify, got %v", err)
	}
}

func TestRegistrationSubmit_AllowedAfterTerminalStatus(t *testing.T) {
	f := newRegistrationFixture(ratelimit.NewMemoryLimiter())

	first, err := f.service.Submit(context.Background(), principalSubmitRequest())
	if err != nil {
		t.Fatalf("expected first submission to succeed, got %v", err)
	}
	if _, err := f.service.Submit(context.Background(), principalSubmitRequest()); !common.Is(err, common.CodeDuplicateApplication) {
		t.Fatalf("expected duplicate_application while pending, got %v", err)
	}

	if _, err := f.repo.UpdateStatus(context.Background(), first.ID,
		application.StatusAwaitingApplicantVerification, application.StatusExpired,
		application.StatusUpdate{}); err != nil {
		t.Fatalf("expected expiry to succeed, got %v", err)
	}

	if _, err := f.service.Submit(context.Background(), principalSubmitRequest()); err != nil {
		t.Fatalf("expected resubmission after expiry to succeed, got %v", err)
	}
}

func TestStatus_StepsForStaffApplicant(t *testing.T) {
	f := newRegistrationFixture(ratelimit.NewMemoryLimiter())

	submitted, err := f.service.Submit(context.Background(), staffSubmitRequest())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if _, err := f.service.Status(context.Background(), submitted.ID, "stranger@example.com"); !common.Is(err, common.CodeInvalidEmail) {
		t.Fatalf("expected invalid_email for wrong email, got %v", err)
	}

	status, err := f.service.Status(context.Background(), submitted.ID, "BEN@hopeacademy.edu")
	if err != nil {
		t.Fatalf("expected status lookup to succeed, got %v", err)
	}
	names := make([]string, 0, len(status.Steps))
	for _, step := range status.Steps {
		names = append(names, step.Name)
	}
	want := []string{"submitted", "email_verified", "principal_confirmed", "under_review", "decision"}
	if len(names) != len(want) {
		t.Fatalf("expected steps %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected steps %v, got %v", want, names)
		}
	}
	if !status.Steps[0].Completed || status.Steps[1].Completed {
		t.Fatal("only the submitted step should be complete")
	}
}
