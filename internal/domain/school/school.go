package school

import (
	"time"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
)

// School is the tenant record provisioned when an application is approved.
// Its fields snapshot the application at approval time.
type School struct {
	ID                common.UUID `json:"id"`
	Name              string      `json:"name"`
	YearEstablished   int         `json:"year_established"`
	SchoolType        string      `json:"school_type"`
	StudentPopulation string      `json:"student_population"`
	CountryCode       string      `json:"country_code"`
	City              string      `json:"city"`
	Address           string      `json:"address"`
	Phone             string      `json:"phone,omitempty"`
	Email             string      `json:"email,omitempty"`
	PrincipalName     string      `json:"principal_name"`
	PrincipalEmail    string      `json:"principal_email"`
	PrincipalPhone    string      `json:"principal_phone,omitempty"`
	IsActive          bool        `json:"is_active"`
	ApplicationID     common.UUID `json:"application_id"`
	CreatedAt         time.Time   `json:"created_at"`
}
