package school

import (
	"context"
	"time"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/application"
)

// ProvisionResult reports the records created while approving an application.
type ProvisionResult struct {
	SchoolID    common.UUID
	AdminUserID common.UUID
}

// Provisioner performs the approval transaction: verify the admin email is
// unused, create the school and its admin user, and flip the application to
// approved with a compare-and-set. Everything commits or nothing does.
type Provisioner interface {
	ProvisionApproval(ctx context.Context, app application.Application, reviewedBy common.UUID, passwordHash string, at time.Time) (*ProvisionResult, error)
}
