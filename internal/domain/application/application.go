package application

import (
	"strings"
	"time"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
)

type Status string

const (
	StatusAwaitingApplicantVerification Status = "awaiting_applicant_verification"
	StatusAwaitingPrincipalConfirmation Status = "awaiting_principal_confirmation"
	StatusPendingReview                 Status = "pending_review"
	StatusUnderReview                   Status = "under_review"
	StatusMoreInfoRequested             Status = "more_info_requested"
	StatusApproved                      Status = "approved"
	StatusRejected                      Status = "rejected"
	StatusExpired                       Status = "expired"
)

// Transitions is the complete state machine. Terminal statuses map to an
// empty set; every status update in the system must pass CanTransition.
var Transitions = map[Status][]Status{
	StatusAwaitingApplicantVerification: {StatusAwaitingPrincipalConfirmation, StatusPendingReview, StatusExpired},
	StatusAwaitingPrincipalConfirmation: {StatusPendingReview, StatusExpired},
	StatusPendingReview:                 {StatusUnderReview, StatusApproved, StatusRejected},
	StatusUnderReview:                   {StatusMoreInfoRequested, StatusApproved, StatusRejected},
	StatusMoreInfoRequested:             {StatusUnderReview, StatusExpired, StatusRejected},
	StatusApproved:                      {},
	StatusRejected:                      {},
	StatusExpired:                       {},
}

func CanTransition(from, to Status) bool {
	for _, allowed := range Transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func IsTerminal(status Status) bool {
	return len(Transitions[status]) == 0
}

// NonTerminalStatuses returns the statuses under which an application still
// blocks a duplicate submission.
func NonTerminalStatuses() []Status {
	out := make([]Status, 0, len(Transitions))
	for status, next := range Transitions {
		if len(next) > 0 {
			out = append(out, status)
		}
	}
	return out
}

type SchoolType string

const (
	SchoolTypePublic     SchoolType = "public"
	SchoolTypePrivate    SchoolType = "private"
	SchoolTypeMission    SchoolType = "mission"
	SchoolTypeUniversity SchoolType = "university"
	SchoolTypeVocational SchoolType = "vocational"
)

func (t SchoolType) Valid() bool {
	switch t {
	case SchoolTypePublic, SchoolTypePrivate, SchoolTypeMission, SchoolTypeUniversity, SchoolTypeVocational:
		return true
	}
	return false
}

type StudentPopulation string

const (
	PopulationUnder100 StudentPopulation = "under_100"
	Population100To300 StudentPopulation = "100_to_300"
	Population300To500 StudentPopulation = "300_to_500"
	PopulationOver500  StudentPopulation = "over_500"
)

func (p StudentPopulation) Valid() bool {
	switch p {
	case PopulationUnder100, Population100To300, Population300To500, PopulationOver500:
		return true
	}
	return false
}

// AdminChoice records who the applicant designated as the school's initial
// platform administrator when the applicant is not the principal.
type AdminChoice string

const (
	AdminChoiceApplicant AdminChoice = "applicant"
	AdminChoicePrincipal AdminChoice = "principal"
)

func (c AdminChoice) Valid() bool {
	return c == AdminChoiceApplicant || c == AdminChoicePrincipal
}

// OnlinePresence is one public web touchpoint declared on the application,
// kept as free-form type plus URL.
type OnlinePresence struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Note is an internal reviewer annotation. Notes are append-only.
type Note struct {
	Note      string      `json:"note"`
	CreatedBy common.UUID `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
}

type Application struct {
	ID common.UUID `json:"id"`

	SchoolName        string            `json:"school_name"`
	SchoolType        SchoolType        `json:"school_type"`
	YearEstablished   int               `json:"year_established"`
	StudentPopulation StudentPopulation `json:"student_population"`

	CountryCode string `json:"country_code"`
	City        string `json:"city"`
	Address     string `json:"address"`

	SchoolPhone string `json:"school_phone,omitempty"`
	SchoolEmail string `json:"school_email,omitempty"`

	OnlinePresence []OnlinePresence `json:"online_presence,omitempty"`

	PrincipalName  string `json:"principal_name"`
	PrincipalEmail string `json:"principal_email"`
	PrincipalPhone string `json:"principal_phone"`

	ApplicantIsPrincipal bool         `json:"applicant_is_principal"`
	ApplicantName        string       `json:"applicant_name,omitempty"`
	ApplicantRole        string       `json:"applicant_role,omitempty"`
	ApplicantEmail       string       `json:"applicant_email,omitempty"`
	ApplicantPhone       string       `json:"applicant_phone,omitempty"`
	AdminChoice          *AdminChoice `json:"admin_choice,omitempty"`

	Reasons     []string `json:"reasons"`
	OtherReason string   `json:"other_reason,omitempty"`

	Status Status `json:"status"`

	ApplicantVerifiedAt  *time.Time   `json:"applicant_verified_at,omitempty"`
	PrincipalConfirmedAt *time.Time   `json:"principal_confirmed_at,omitempty"`
	ReviewedAt           *time.Time   `json:"reviewed_at,omitempty"`
	ReviewedBy           *common.UUID `json:"reviewed_by,omitempty"`
	DecisionReason       *string      `json:"decision_reason,omitempty"`
	ReminderSentAt       *time.Time   `json:"-"`

	InternalNotes []Note `json:"-"`

	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EffectiveApplicantEmail is the address that owns the verification step:
// the principal's when the applicant is the principal, otherwise the
// applicant's own.
func (a Application) EffectiveApplicantEmail() string {
	if a.ApplicantIsPrincipal || a.ApplicantEmail == "" {
		return a.PrincipalEmail
	}
	return a.ApplicantEmail
}

func (a Application) EffectiveApplicantName() string {
	if a.ApplicantIsPrincipal || a.ApplicantName == "" {
		return a.PrincipalName
	}
	return a.ApplicantName
}

// DesignatedAdminEmail returns the address that receives platform credentials
// on approval. The principal is the admin when they filed the application
// themselves or when the applicant chose them.
func (a Application) DesignatedAdminEmail() string {
	if a.ApplicantIsPrincipal || (a.AdminChoice != nil && *a.AdminChoice == AdminChoicePrincipal) {
		return a.PrincipalEmail
	}
	return a.ApplicantEmail
}

func (a Application) DesignatedAdminName() string {
	if a.ApplicantIsPrincipal || (a.AdminChoice != nil && *a.AdminChoice == AdminChoicePrincipal) {
		return a.PrincipalName
	}
	return a.ApplicantName
}

// MaskEmail hides the local part for display on public status pages.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at < 0 {
		return "***"
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 1 {
		return "*" + domain
	}
	return local[:1] + "***" + domain
}
