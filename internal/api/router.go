package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/proppilot/indices/internal/api/handlers"
	"github.com/proppilot/indices/pkg/logger"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(indexHandler *handlers.IndexHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", indexHandler.Health).Methods("GET")

	api := r.PathPrefix("/api/indices").Subrouter()

	// Computed values and mutating operations; fixed paths first so they
	// are not swallowed by the {country} variables below.
	api.HandleFunc("/adjustment", indexHandler.GetAdjustmentFactor).Methods("GET")
	api.HandleFunc("/refresh", indexHandler.RefreshAll).Methods("POST")
	api.HandleFunc("/refresh/{country}", indexHandler.RefreshCountry).Methods("POST")
	api.HandleFunc("/backfill", indexHandler.Backfill).Methods("POST")

	// Read accessors. "all" routes before "{type}" routes.
	api.HandleFunc("/{country}/all/latest", indexHandler.GetAllLatest).Methods("GET")
	api.HandleFunc("/{country}/all/annual-changes", indexHandler.GetAllAnnualChanges).Methods("GET")
	api.HandleFunc("/{country}/all/monthly-changes", indexHandler.GetAllMonthlyChanges).Methods("GET")
	api.HandleFunc("/{country}/{type}/latest", indexHandler.GetLatest).Methods("GET")
	api.HandleFunc("/{country}/{type}/date/{date}", indexHandler.GetAtDate).Methods("GET")
	api.HandleFunc("/{country}/{type}/closest", indexHandler.GetClosest).Methods("GET")
	api.HandleFunc("/{country}/{type}/history", indexHandler.GetHistory).Methods("GET")
	api.HandleFunc("/{country}/{type}/annual-change", indexHandler.GetAnnualChange).Methods("GET")
	api.HandleFunc("/{country}/{type}/monthly-change", indexHandler.GetMonthlyChange).Methods("GET")

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics.
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
