package middleware

import (
	"net/http"
	"time"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/http/metrics"
)

func Metrics(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if collector == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			collector.ObserveRequest(r.Method, rec.status, time.Since(start))
		})
	}
}
