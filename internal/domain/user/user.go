package user

import (
	"time"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
)

type Role string

const (
	RoleSchoolAdmin   Role = "school_admin"
	RolePlatformAdmin Role = "platform_admin"
)

// User is a platform account. The first one per school is created during
// approval provisioning with a temporary password.
type User struct {
	ID                 common.UUID  `json:"id"`
	Email              string       `json:"email"`
	FullName           string       `json:"full_name"`
	Phone              string       `json:"phone,omitempty"`
	Role               Role         `json:"role"`
	SchoolID           *common.UUID `json:"school_id,omitempty"`
	PasswordHash       string       `json:"-"`
	MustChangePassword bool         `json:"must_change_password"`
	CreatedAt          time.Time    `json:"created_at"`
}
