package security

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", common.NewError(common.CodeInternal, "failed to hash password", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateTempPassword returns a random single-use password for provisioned
// admin accounts. The recipient must change it on first login.
func GenerateTempPassword() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", common.NewError(common.CodeInternal, "failed to generate password", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
