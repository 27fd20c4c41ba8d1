package application

import (
	"testing"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusAwaitingApplicantVerification, StatusAwaitingPrincipalConfirmation, true},
		{StatusAwaitingApplicantVerification, StatusPendingReview, true},
		{StatusAwaitingApplicantVerification, StatusExpired, true},
		{StatusAwaitingApplicantVerification, StatusApproved, false},
		{StatusAwaitingPrincipalConfirmation, StatusPendingReview, true},
		{StatusAwaitingPrincipalConfirmation, StatusUnderReview, false},
		{StatusPendingReview, StatusUnderReview, true},
		{StatusPendingReview, StatusApproved, true},
		{StatusPendingReview, StatusRejected, true},
		{StatusPendingReview, StatusExpired, false},
		{StatusUnderReview, StatusMoreInfoRequested, true},
		{StatusUnderReview, StatusApproved, true},
		{StatusMoreInfoRequested, StatusUnderReview, true},
		{StatusMoreInfoRequested, StatusExpired, true},
		{StatusMoreInfoRequested, StatusApproved, false},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusUnderReview, false},
		{StatusExpired, StatusPendingReview, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []Status{StatusApproved, StatusRejected, StatusExpired}
	for _, status := range terminal {
		if !IsTerminal(status) {
			t.Errorf("expected %s to be terminal", status)
		}
		if len(Transitions[status]) != 0 {
			t.Errorf("expected no transitions out of %s", status)
		}
	}
	active := []Status{
		StatusAwaitingApplicantVerification,
		StatusAwaitingPrincipalConfirmation,
		StatusPendingReview,
		StatusUnderReview,
		StatusMoreInfoRequested,
	}
	for _, status := range active {
		if IsTerminal(status) {
			t.Errorf("expected %s not to be terminal", status)
		}
	}
}

func TestNonTerminalStatuses(t *testing.T) {
	got := NonTerminalStatuses()
	if len(got) != 5 {
		t.Fatalf("expected 5 non-terminal statuses, got %d: %v", len(got), got)
	}
	for _, status := range got {
		if IsTerminal(status) {
			t.Errorf("terminal status %s in non-terminal set", status)
		}
	}
}

func TestMaskEmail(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"principal@school.edu", "p***@school.edu"},
		{"a@b.com", "*@b.com"},
		{"not-an-email", "***"},
		{"", "***"},
		{"@school.edu", "*@school.edu"},
	}
	for _, c := range cases {
		if got := MaskEmail(c.in); got != c.want {
			t.Errorf("MaskEmail(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestEffectiveApplicant_FallsBackToPrincipal(t *testing.T) {
	app := Application{
		PrincipalName:        "Ada Kollie",
		PrincipalEmail:       "ada@school.edu",
		ApplicantIsPrincipal: true,
		ApplicantName:        "Someone Else",
		ApplicantEmail:       "else@school.edu",
	}
	if got := app.EffectiveApplicantEmail(); got != "ada@school.edu" {
		t.Fatalf("expected principal email, got %q", got)
	}
	if got := app.EffectiveApplicantName(); got != "Ada Kollie" {
		t.Fatalf("expected principal name, got %q", got)
	}

	app.ApplicantIsPrincipal = false
	if got := app.EffectiveApplicantEmail(); got != "else@school.edu" {
		t.Fatalf("expected applicant email, got %q", got)
	}

	app.ApplicantEmail = ""
	app.ApplicantName = ""
	if got := app.EffectiveApplicantEmail(); got != "ada@school.edu" {
		t.Fatalf("expected fallback to principal email, got %q", got)
	}
	if got := app.EffectiveApplicantName(); got != "Ada Kollie" {
		t.Fatalf("expected fallback to principal name, got %q", got)
	}
}

func TestDesignatedAdmin(t *testing.T) {
	principal := AdminChoicePrincipal
	applicant := AdminChoiceApplicant

	app := Application{
		PrincipalName:  "Ada Kollie",
		PrincipalEmail: "ada@school.edu",
		ApplicantName:  "Ben Sesay",
		ApplicantEmail: "ben@school.edu",
		AdminChoice:    &applicant,
	}
	if got := app.DesignatedAdminEmail(); got != "ben@school.edu" {
		t.Fatalf("expected applicant as admin, got %q", got)
	}

	app.AdminChoice = &principal
	if got := app.DesignatedAdminEmail(); got != "ada@school.edu" {
		t.Fatalf("expected principal as admin, got %q", got)
	}
	if got := app.DesignatedAdminName(); got != "Ada Kollie" {
		t.Fatalf("expected principal name, got %q", got)
	}

	app.AdminChoice = &applicant
	app.ApplicantIsPrincipal = true
	if got := app.DesignatedAdminEmail(); got != "ada@school.edu" {
		t.Fatalf("principal applicant must always be the admin, got %q", got)
	}
}
