package handlers

import (
	"net/http"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/app"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/http/response"
)

type RegistrationHandler struct {
	registrations *app.RegistrationService
}

func NewRegistrationHandler(registrations *app.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

func (h *RegistrationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req app.SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	result, err := h.registrations.Submit(r.Context(), req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, result)
}

func (h *RegistrationHandler) Countries(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string][]app.Country{"countries": app.SupportedCountries})
}

func (h *RegistrationHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := idFromPath(r, 1)
	if err != nil {
		response.Error(w, err)
		return
	}
	email := r.URL.Query().Get("email")
	if email == "" {
		response.Error(w, common.NewError(common.CodeValidation, "email query parameter is required", nil))
		return
	}
	result, err := h.registrations.Status(r.Context(), id, email)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

type resendRequest struct {
	Email string `json:"email"`
}

func (h *RegistrationHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	id, err := idFromPath(r, 1)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req resendRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if req.Email == "" {
		response.Error(w, common.NewError(common.CodeValidation, "email is required", nil))
		return
	}
	result, err := h.registrations.ResendVerification(r.Context(), id, req.Email)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *RegistrationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	result, err := h.registrations.VerifyApplicant(r.Context(), token)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *RegistrationHandler) PrincipalView(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	result, err := h.registrations.PrincipalView(r.Context(), token)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

type confirmPrincipalRequest struct {
	Token string `json:"token"`
}

func (h *RegistrationHandler) ConfirmPrincipal(w http.ResponseWriter, r *http.Request) {
	var req confirmPrincipalRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	result, err := h.registrations.ConfirmPrincipal(r.Context(), req.Token)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}
