package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/user"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/http/handlers"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/http/metrics"
	httpmw "github.com/EL-KENDEH-TEAM/EK-SMS/internal/http/middleware"
)

type RouterDependencies struct {
	RegistrationHandler *handlers.RegistrationHandler
	AdminHandler        *handlers.AdminHandler
	MetricsHandler      http.Handler
	AuthMiddleware      *httpmw.AuthMiddleware
	Metrics             *metrics.Collector
	Logger              zerolog.Logger
	RequestTimeout      time.Duration
}

type Router struct {
	deps    RouterDependencies
	handler http.Handler
}

const maxBodyBytes = 1 << 20

func NewRouter(deps RouterDependencies) http.Handler {
	r := &Router{deps: deps}
	r.handler = httpmw.Chain(r.baseHandler(),
		httpmw.RequestID,
		httpmw.Logging(deps.Logger),
		httpmw.BodyLimit(maxBodyBytes),
		httpmw.Recover(deps.Logger),
		httpmw.Metrics(deps.Metrics),
		httpmw.Timeout(deps.RequestTimeout))
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) baseHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path := req.URL.Path

		switch {
		case req.Method == http.MethodGet && path == "/health":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		case req.Method == http.MethodGet && path == "/metrics":
			r.deps.MetricsHandler.ServeHTTP(w, req)
			return
		case req.Method == http.MethodPost && path == "/school-applications":
			r.deps.RegistrationHandler.Submit(w, req)
			return
		case req.Method == http.MethodGet && path == "/school-applications/countries":
			r.deps.RegistrationHandler.Countries(w, req)
			return
		case req.Method == http.MethodGet && path == "/school-applications/verify":
			r.deps.RegistrationHandler.Verify(w, req)
			return
		case req.Method == http.MethodGet && path == "/school-applications/confirm-principal":
			r.deps.RegistrationHandler.PrincipalView(w, req)
			return
		case req.Method == http.MethodPost && path == "/school-applications/confirm-principal":
			r.deps.RegistrationHandler.ConfirmPrincipal(w, req)
			return
		case req.Method == http.MethodGet && strings.HasPrefix(path, "/school-applications/") && strings.HasSuffix(path, "/status"):
			r.deps.RegistrationHandler.Status(w, req)
			return
		case req.Method == http.MethodPost && strings.HasPrefix(path, "/school-applications/") && strings.HasSuffix(path, "/resend-verification"):
			r.deps.RegistrationHandler.ResendVerification(w, req)
			return
		}

		if strings.HasPrefix(path, "/admin/") {
			protected := r.deps.AuthMiddleware.Authenticate(
				httpmw.RequireRole(user.RolePlatformAdmin)(http.HandlerFunc(r.handleAdmin)))
			protected.ServeHTTP(w, req)
			return
		}

		http.NotFound(w, req)
	})
}

func (r *Router) handleAdmin(w http.ResponseWriter, req *http.Request) {
	path := req.URL.Path

	switch {
	case req.Method == http.MethodGet && path == "/admin/applications":
		r.deps.AdminHandler.List(w, req)
		return
	case req.Method == http.MethodGet && path == "/admin/applications/stats":
		r.deps.AdminHandler.Stats(w, req)
		return
	case req.Method == http.MethodPost && strings.HasPrefix(path, "/admin/applications/") && strings.HasSuffix(path, "/start-review"):
		r.deps.AdminHandler.StartReview(w, req)
		return
	case req.Method == http.MethodPost && strings.HasPrefix(path, "/admin/applications/") && strings.HasSuffix(path, "/request-info"):
		r.deps.AdminHandler.RequestInfo(w, req)
		return
	case req.Method == http.MethodPost && strings.HasPrefix(path, "/admin/applications/") && strings.HasSuffix(path, "/approve"):
		r.deps.AdminHandler.Approve(w, req)
		return
	case req.Method == http.MethodPost && strings.HasPrefix(path, "/admin/applications/") && strings.HasSuffix(path, "/reject"):
		r.deps.AdminHandler.Reject(w, req)
		return
	case req.Method == http.MethodPost && strings.HasPrefix(path, "/admin/applications/") && strings.HasSuffix(path, "/notes"):
		r.deps.AdminHandler.AddNote(w, req)
		return
	case req.Method == http.MethodGet && strings.HasPrefix(path, "/admin/applications/"):
		r.deps.AdminHandler.Get(w, req)
		return
	case req.Method == http.MethodPost && strings.HasPrefix(path, "/admin/jobs/") && strings.HasSuffix(path, "/trigger"):
		r.deps.AdminHandler.TriggerJob(w, req)
		return
	}

	http.NotFound(w, req)
}
