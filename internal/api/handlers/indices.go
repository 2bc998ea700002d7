package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/proppilot/indices/internal/indices"
	"github.com/proppilot/indices/pkg/database"
	"github.com/proppilot/indices/pkg/logger"
)

// IndexHandler handles index-related API endpoints. Validation errors are
// the only failures surfaced as 4xx; missing data in computed endpoints
// degrades to the service's safe defaults instead of erroring.
type IndexHandler struct {
	service *indices.Service
	db      *database.DB // nil when running without Postgres
	logger  *logger.Logger
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(service *indices.Service, db *database.DB, log *logger.Logger) *IndexHandler {
	return &IndexHandler{
		service: service,
		db:      db,
		logger:  log,
	}
}

// Health returns service health including database status.
// GET /health
func (h *IndexHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "ok",
		"service": "proppilot-indices",
	}

	if h.db != nil {
		dbStatus, err := h.db.HealthCheck(r.Context())
		resp["database"] = dbStatus
		if err != nil {
			resp["status"] = "degraded"
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetAllLatest returns the latest value of every index series in a country.
// GET /api/indices/{country}/all/latest
func (h *IndexHandler) GetAllLatest(w http.ResponseWriter, r *http.Request) {
	country, ok := h.country(w, r)
	if !ok {
		return
	}

	values, err := h.service.GetAllLatest(r.Context(), country)
	if err != nil {
		h.serverError(w, err, "Failed to get latest index values")
		return
	}

	respondJSON(w, http.StatusOK, valueResponses(values))
}

// GetLatest returns the latest value for one index series.
// GET /api/indices/{country}/{type}/latest
func (h *IndexHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	country, indexType, ok := h.countryAndType(w, r)
	if !ok {
		return
	}

	value, err := h.service.GetLatest(r.Context(), country, indexType)
	if err != nil {
		h.serverError(w, err, "Failed to get latest index value")
		return
	}
	if value == nil {
		respondError(w, http.StatusNotFound, "No data available for index "+string(indexType)+" in "+country)
		return
	}

	respondJSON(w, http.StatusOK, valueResponse(*value))
}

// GetAtDate returns the value for an exact date.
// GET /api/indices/{country}/{type}/date/{date}
func (h *IndexHandler) GetAtDate(w http.ResponseWriter, r *http.Request) {
	country, indexType, ok := h.countryAndType(w, r)
	if !ok {
		return
	}

	date, err := time.Parse("2006-01-02", mux.Vars(r)["date"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date format (expected YYYY-MM-DD)")
		return
	}

	value, err := h.service.GetAtDate(r.Context(), country, indexType, date)
	if err != nil {
		h.serverError(w, err, "Failed to get index value")
		return
	}
	if value == nil {
		respondError(w, http.StatusNotFound, "No data available for index "+string(indexType)+" on "+date.Format("2006-01-02"))
		return
	}

	respondJSON(w, http.StatusOK, valueResponse(*value))
}

// GetClosest returns the closest value on or before a date.
// GET /api/indices/{country}/{type}/closest?date=YYYY-MM-DD
func (h *IndexHandler) GetClosest(w http.ResponseWriter, r *http.Request) {
	country, indexType, ok := h.countryAndType(w, r)
	if !ok {
		return
	}

	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid or missing 'date' query parameter (expected YYYY-MM-DD)")
		return
	}

	value, err := h.service.GetClosestOnOrBefore(r.Context(), country, indexType, date)
	if err != nil {
		h.serverError(w, err, "Failed to get closest index value")
		return
	}
	if value == nil {
		respondError(w, http.StatusNotFound, "No data available for index "+string(indexType)+" on or before "+date.Format("2006-01-02"))
		return
	}

	respondJSON(w, http.StatusOK, valueResponse(*value))
}

// GetHistory returns values within a date range, newest first.
// GET /api/indices/{country}/{type}/history?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *IndexHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	country, indexType, ok := h.countryAndType(w, r)
	if !ok {
		return
	}

	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid or missing 'from' query parameter (expected YYYY-MM-DD)")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid or missing 'to' query parameter (expected YYYY-MM-DD)")
		return
	}

	values, err := h.service.GetHistory(r.Context(), country, indexType, from, to)
	if err != nil {
		h.serverError(w, err, "Failed to get index history")
		return
	}

	respondJSON(w, http.StatusOK, valueResponses(values))
}

// GetAdjustmentFactor returns the adjustment factor between two dates.
// GET /api/indices/adjustment?country=AR&type=ICL&from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *IndexHandler) GetAdjustmentFactor(w http.ResponseWriter, r *http.Request) {
	country, err := indices.ParseCountryCode(r.URL.Query().Get("country"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	indexType, err := indices.ParseIndexType(r.URL.Query().Get("type"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid or missing 'from' query parameter (expected YYYY-MM-DD)")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid or missing 'to' query parameter (expected YYYY-MM-DD)")
		return
	}

	factor, err := h.service.AdjustmentFactor(r.Context(), country, indexType, from, to)
	if err != nil {
		h.serverError(w, err, "Failed to calculate adjustment factor")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"country":   country,
		"indexType": indexType,
		"fromDate":  from.Format("2006-01-02"),
		"toDate":    to.Format("2006-01-02"),
		"factor":    factor,
	})
}

// GetAnnualChange returns the annual percentage change for one series.
// GET /api/indices/{country}/{type}/annual-change
func (h *IndexHandler) GetAnnualChange(w http.ResponseWriter, r *http.Request) {
	country, indexType, ok := h.countryAndType(w, r)
	if !ok {
		return
	}

	change, err := h.service.AnnualPercentageChange(r.Context(), country, indexType)
	if err != nil {
		h.serverError(w, err, "Failed to calculate annual change")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"country":             country,
		"indexType":           indexType,
		"annualChangePercent": change,
	})
}

// GetAllAnnualChanges returns the annual change of every index series.
// GET /api/indices/{country}/all/annual-changes
func (h *IndexHandler) GetAllAnnualChanges(w http.ResponseWriter, r *http.Request) {
	country, ok := h.country(w, r)
	if !ok {
		return
	}

	results := make([]map[string]interface{}, 0, len(indices.AllIndexTypes))
	for _, indexType := range indices.AllIndexTypes {
		change, err := h.service.AnnualPercentageChange(r.Context(), country, indexType)
		if err != nil {
			h.serverError(w, err, "Failed to calculate annual changes")
			return
		}
		results = append(results, map[string]interface{}{
			"indexType":           indexType,
			"annualChangePercent": change,
		})
	}

	respondJSON(w, http.StatusOK, results)
}

// GetMonthlyChange returns the monthly percentage change for one series.
// GET /api/indices/{country}/{type}/monthly-change
func (h *IndexHandler) GetMonthlyChange(w http.ResponseWriter, r *http.Request) {
	country, indexType, ok := h.countryAndType(w, r)
	if !ok {
		return
	}

	change, err := h.service.MonthlyPercentageChange(r.Context(), country, indexType)
	if err != nil {
		h.serverError(w, err, "Failed to calculate monthly change")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"country":              country,
		"indexType":            indexType,
		"monthlyChangePercent": change,
	})
}

// GetAllMonthlyChanges returns the monthly change of every index series.
// GET /api/indices/{country}/all/monthly-changes
func (h *IndexHandler) GetAllMonthlyChanges(w http.ResponseWriter, r *http.Request) {
	country, ok := h.country(w, r)
	if !ok {
		return
	}

	results := make([]map[string]interface{}, 0, len(indices.AllIndexTypes))
	for _, indexType := range indices.AllIndexTypes {
		change, err := h.service.MonthlyPercentageChange(r.Context(), country, indexType)
		if err != nil {
			h.serverError(w, err, "Failed to calculate monthly changes")
			return
		}
		results = append(results, map[string]interface{}{
			"indexType":            indexType,
			"monthlyChangePercent": change,
		})
	}

	respondJSON(w, http.StatusOK, results)
}

// RefreshAll triggers a refresh of every country's index values.
// POST /api/indices/refresh
func (h *IndexHandler) RefreshAll(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RefreshAll(r.Context()); err != nil {
		h.serverError(w, err, "Failed to refresh indices")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "Refresh completed"})
}

// RefreshCountry triggers a refresh for one country.
// POST /api/indices/refresh/{country}
func (h *IndexHandler) RefreshCountry(w http.ResponseWriter, r *http.Request) {
	country, ok := h.country(w, r)
	if !ok {
		return
	}

	if err := h.service.Refresh(r.Context(), country); err != nil {
		h.serverError(w, err, "Failed to refresh indices")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "Refresh completed for " + country})
}

// Backfill imports all historical index values from every source.
// POST /api/indices/backfill
func (h *IndexHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Backfill(r.Context()); err != nil {
		h.serverError(w, err, "Failed to backfill indices")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "Historical data import completed"})
}

// country validates the {country} path variable, writing a 400 on failure.
func (h *IndexHandler) country(w http.ResponseWriter, r *http.Request) (string, bool) {
	country, err := indices.ParseCountryCode(mux.Vars(r)["country"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return country, true
}

// countryAndType validates the {country} and {type} path variables.
func (h *IndexHandler) countryAndType(w http.ResponseWriter, r *http.Request) (string, indices.IndexType, bool) {
	country, ok := h.country(w, r)
	if !ok {
		return "", "", false
	}
	indexType, err := indices.ParseIndexType(mux.Vars(r)["type"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	return country, indexType, true
}

func (h *IndexHandler) serverError(w http.ResponseWriter, err error, msg string) {
	h.logger.WithError(err).Error(msg)
	respondError(w, http.StatusInternalServerError, msg)
}

// ValueResponse is the wire representation of one index observation.
type ValueResponse struct {
	ID          int64             `json:"id"`
	IndexType   indices.IndexType `json:"indexType"`
	CountryCode string            `json:"countryCode"`
	ValueDate   string            `json:"valueDate"`
	Value       decimal.Decimal   `json:"value"`
	Source      string            `json:"source"`
}

func valueResponse(v indices.IndexValue) ValueResponse {
	return ValueResponse{
		ID:          v.ID,
		IndexType:   v.IndexType,
		CountryCode: v.CountryCode,
		ValueDate:   v.ValueDate.Format("2006-01-02"),
		Value:       v.Value,
		Source:      v.Source,
	}
}

func valueResponses(values []indices.IndexValue) []ValueResponse {
	responses := make([]ValueResponse, 0, len(values))
	for _, v := range values {
		responses = append(responses, valueResponse(v))
	}
	return responses
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
