package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/app"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/application"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/http/middleware"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/http/response"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/jobs"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/ratelimit"
)

// Per-admin action quotas, all per minute. Decisions are rarer and riskier
// than notes, so they get the tightest budget.
const (
	limitApprove     = 10
	limitReject      = 10
	limitRequestInfo = 20
	limitNotes       = 30
	limitStartReview = 30

	actionWindow = time.Minute
)

type AdminHandler struct {
	admins   *app.AdminService
	registry *jobs.Registry
	limiter  ratelimit.Limiter
}

func NewAdminHandler(admins *app.AdminService, registry *jobs.Registry, limiter ratelimit.Limiter) *AdminHandler {
	return &AdminHandler{admins: admins, registry: registry, limiter: limiter}
}

func (h *AdminHandler) allowAction(r *http.Request, action string, adminID common.UUID, limit int) error {
	allowed, retryAfter, err := h.limiter.Allow(r.Context(), "admin:"+action+":"+adminID.String(), limit, actionWindow)
	if err != nil {
		return err
	}
	if !allowed {
		seconds := int(retryAfter / time.Second)
		return common.NewRateLimitedError(
			fmt.Sprintf("Too many %s requests. Limit is %d per minute.", action, limit), seconds)
	}
	return nil
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := application.ListFilter{
		Country: q.Get("country_code"),
		Search:  q.Get("search"),
		SortBy:  q.Get("sort_by"),
	}
	if s := q.Get("status"); s != "" {
		status := application.Status(s)
		filter.Status = &status
	}
	if t := q.Get("school_type"); t != "" {
		schoolType := application.SchoolType(t)
		if !schoolType.Valid() {
			response.Error(w, common.NewError(common.CodeValidation, "invalid school_type filter", nil))
			return
		}
		filter.SchoolType = &schoolType
	}
	filter.SortDesc = strings.EqualFold(q.Get("sort_order"), "desc")
	filter.Limit = intQuery(q.Get("limit"), 20)
	filter.Offset = intQuery(q.Get("skip"), 0)

	items, total, err := h.admins.List(r.Context(), filter)
	if err != nil {
		response.Error(w, err)
		return
	}
	if items == nil {
		items = []application.Application{}
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"applications": items,
		"total":        total,
		"skip":         filter.Offset,
		"limit":        filter.Limit,
	})
}

func intQuery(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admins.Stats(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idFromPath(r, 2)
	if err != nil {
		response.Error(w, err)
		return
	}
	item, err := h.admins.Get(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, adminDetail(item))
}

// adminDetail exposes the admin-only fields hidden from public serialization.
func adminDetail(a *application.Application) map[string]any {
	return map[string]any{
		"id":                     a.ID,
		"school_name":            a.SchoolName,
		"year_established":       a.YearEstablished,
		"school_type":            a.SchoolType,
		"student_population":     a.StudentPopulation,
		"country_code":           a.CountryCode,
		"city":                   a.City,
		"address":                a.Address,
		"school_phone":           a.SchoolPhone,
		"school_email":           a.SchoolEmail,
		"principal_name":         a.PrincipalName,
		"principal_email":        a.PrincipalEmail,
		"principal_phone":        a.PrincipalPhone,
		"applicant_is_principal": a.ApplicantIsPrincipal,
		"applicant_name":         a.ApplicantName,
		"applicant_email":        a.ApplicantEmail,
		"applicant_phone":        a.ApplicantPhone,
		"applicant_role":         a.ApplicantRole,
		"admin_choice":           a.AdminChoice,
		"online_presence":        a.OnlinePresence,
		"reasons":                a.Reasons,
		"other_reason":           a.OtherReason,
		"status":                 a.Status,
		"submitted_at":           a.SubmittedAt,
		"applicant_verified_at":  a.ApplicantVerifiedAt,
		"principal_confirmed_at": a.PrincipalConfirmedAt,
		"reviewed_at":            a.ReviewedAt,
		"reviewed_by":            a.ReviewedBy,
		"decision_reason":        a.DecisionReason,
		"internal_notes":         a.InternalNotes,
	}
}

func (h *AdminHandler) StartReview(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.Error(w, errUnauthorized())
		return
	}
	id, err := idFromPath(r, 2)
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.allowAction(r, "start-review", adminID, limitStartReview); err != nil {
		response.Error(w, err)
		return
	}
	updated, err := h.admins.StartReview(r.Context(), id, adminID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"id":          updated.ID,
		"status":      updated.Status,
		"reviewed_by": updated.ReviewedBy,
		"reviewed_at": updated.ReviewedAt,
		"message":     "Application is now under review",
	})
}

type requestInfoRequest struct {
	Message string `json:"message"`
}

func (h *AdminHandler) RequestInfo(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.Error(w, errUnauthorized())
		return
	}
	id, err := idFromPath(r, 2)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req requestInfoRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.allowAction(r, "request-info", adminID, limitRequestInfo); err != nil {
		response.Error(w, err)
		return
	}
	updated, err := h.admins.RequestMoreInfo(r.Context(), id, adminID, req.Message)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"id":      updated.ID,
		"status":  updated.Status,
		"message": "Information request sent to applicant",
	})
}

type addNoteRequest struct {
	Note string `json:"note"`
}

func (h *AdminHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.Error(w, errUnauthorized())
		return
	}
	id, err := idFromPath(r, 2)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req addNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.allowAction(r, "notes", adminID, limitNotes); err != nil {
		response.Error(w, err)
		return
	}
	note, err := h.admins.AddNote(r.Context(), id, adminID, req.Note)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, map[string]any{
		"id":      id,
		"note":    note,
		"message": "Note added successfully",
	})
}

func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.Error(w, errUnauthorized())
		return
	}
	id, err := idFromPath(r, 2)
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.allowAction(r, "approve", adminID, limitApprove); err != nil {
		response.Error(w, err)
		return
	}
	outcome, err := h.admins.Approve(r.Context(), id, adminID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"id":            outcome.Application.ID,
		"status":        outcome.Application.Status,
		"school_id":     outcome.SchoolID,
		"admin_user_id": outcome.AdminUserID,
		"message":       "Application approved. School and admin account created successfully.",
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.Error(w, errUnauthorized())
		return
	}
	id, err := idFromPath(r, 2)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.allowAction(r, "reject", adminID, limitReject); err != nil {
		response.Error(w, err)
		return
	}
	updated, err := h.admins.Reject(r.Context(), id, adminID, req.Reason)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"id":      updated.ID,
		"status":  updated.Status,
		"message": "Application rejected. Notification sent to applicant.",
	})
}

// TriggerJob runs a registered background job immediately.
func (h *AdminHandler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(segments) < 4 {
		response.Error(w, common.NewError(common.CodeValidation, "missing job id in path", nil))
		return
	}
	jobID := segments[2]
	result, err := h.registry.Trigger(r.Context(), jobID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}
