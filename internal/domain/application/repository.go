package application

import (
	"context"
	"time"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/token"
)

// StatusUpdate carries the fields that may change alongside a status
// transition. Nil fields are left untouched.
type StatusUpdate struct {
	ApplicantVerifiedAt  *time.Time
	PrincipalConfirmedAt *time.Time
	ReviewedAt           *time.Time
	ReviewedBy           *common.UUID
	DecisionReason       *string
}

// ListFilter narrows and pages the admin listing.
type ListFilter struct {
	Status     *Status
	SchoolType *SchoolType
	Country    string
	Search     string
	SortBy     string
	SortDesc   bool
	Limit      int
	Offset     int
}

// Stats is the admin dashboard aggregate.
type Stats struct {
	PendingReview     int      `json:"pending_review"`
	UnderReview       int      `json:"under_review"`
	MoreInfoRequested int      `json:"more_info_requested"`
	ApprovedThisWeek  int      `json:"approved_this_week"`
	TotalThisMonth    int      `json:"total_this_month"`
	AvgReviewTimeDays *float64 `json:"avg_review_time_days"`
}

// PrincipalPending pairs an application awaiting principal confirmation with
// its outstanding token. Reminder and expiry timing on this path follow the
// token's creation time rather than the submission time.
type PrincipalPending struct {
	Application Application
	Token       token.VerificationToken
}

type Repository interface {
	Create(ctx context.Context, app Application) (*Application, error)
	GetByID(ctx context.Context, id common.UUID) (*Application, error)
	// UpdateStatus performs a compare-and-set: the row is updated only if it
	// is still in the from status. A lost race fails with
	// common.CodeInvalidApplicationState.
	UpdateStatus(ctx context.Context, id common.UUID, from, to Status, update StatusUpdate) (*Application, error)
	AppendNote(ctx context.Context, id common.UUID, note Note) error
	// ClaimReminder marks the reminder as sent iff no reminder has been
	// claimed yet, returning whether this caller won the claim.
	ClaimReminder(ctx context.Context, id common.UUID, at time.Time) (bool, error)

	PendingBySchoolAndCity(ctx context.Context, schoolName, city string) (*Application, error)
	PendingByApplicantEmail(ctx context.Context, email, schoolName string) (*Application, error)

	// NeedingApplicantReminder returns unverified applications submitted
	// before the cutoff that have not been reminded.
	NeedingApplicantReminder(ctx context.Context, cutoff time.Time) ([]Application, error)
	// ExpiredUnverified returns unverified applications whose submission
	// predates the cutoff.
	ExpiredUnverified(ctx context.Context, cutoff time.Time) ([]Application, error)
	// PrincipalNeedingReminder returns confirmations whose token was created
	// before the cutoff and whose application has no reminder claimed.
	PrincipalNeedingReminder(ctx context.Context, cutoff time.Time) ([]PrincipalPending, error)
	// PrincipalToExpire returns confirmations whose token was created before
	// the cutoff.
	PrincipalToExpire(ctx context.Context, cutoff time.Time) ([]PrincipalPending, error)

	List(ctx context.Context, filter ListFilter) ([]Application, int, error)
	Stats(ctx context.Context) (*Stats, error)
}
