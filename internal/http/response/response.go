package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var statusByCode = map[common.Code]int{
	common.CodeValidation:              http.StatusBadRequest,
	common.CodeInvalidToken:            http.StatusBadRequest,
	common.CodeTokenExpired:            http.StatusBadRequest,
	common.CodeUnauthorized:            http.StatusUnauthorized,
	common.CodeForbidden:               http.StatusForbidden,
	common.CodeInvalidEmail:            http.StatusForbidden,
	common.CodeNotFound:                http.StatusNotFound,
	common.CodeConflict:                http.StatusConflict,
	common.CodeDuplicateApplication:    http.StatusConflict,
	common.CodeTokenAlreadyUsed:        http.StatusConflict,
	common.CodeInvalidApplicationState: http.StatusConflict,
	common.CodeAlreadyVerified:         http.StatusConflict,
	common.CodeCannotReview:            http.StatusConflict,
	common.CodeCannotDecide:            http.StatusConflict,
	common.CodeRateLimited:             http.StatusTooManyRequests,
	common.CodeProvisioningFailed:      http.StatusInternalServerError,
	common.CodeServiceUnavailable:      http.StatusServiceUnavailable,
	common.CodeInternal:                http.StatusInternalServerError,
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// Error writes a coded error as the standard error envelope. Errors without a
// code become opaque internal errors so internals never leak to clients.
func Error(w http.ResponseWriter, err error) {
	code := common.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := "An unexpected error occurred. Please try again later."
	var coded *common.Error
	if errors.As(err, &coded) && code != common.CodeInternal {
		message = coded.Message
	}
	if code == common.CodeRateLimited {
		if retryAfter := common.RetryAfterOf(err); retryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		}
	}
	JSON(w, status, errorBody{Error: string(code), Message: message})
}
