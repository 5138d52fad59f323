package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"route-pricing/internal/models"
	"route-pricing/internal/services"
	"route-pricing/pkg/logging"
	"route-pricing/pkg/metrics"
)

const pricingEndpoint = "/api/pricing"

// Quoter is the pricing service as seen by the HTTP layer
type Quoter interface {
	Quote(ctx context.Context, req services.QuoteRequest) (*models.Quote, error)
	Freshness(ctx context.Context) map[models.Source]time.Time
	HealthCheck(ctx context.Context) error
}

// PricingHandler handles pricing API endpoints
type PricingHandler struct {
	pricing Quoter
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler(pricing Quoter, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *PricingHandler {
	return &PricingHandler{
		pricing: pricing,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Response is the envelope of every JSON answer
type Response struct {
	Success bool         `json:"success"`
	Data    interface{}  `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
	Message string       `json:"message,omitempty"`
	Details []FieldError `json:"details,omitempty"`
}

// GetPricing handles POST /api/pricing
func (h *PricingHandler) GetPricing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues(pricingEndpoint).Observe(time.Since(startTime).Seconds())
	}()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	req, err := readPricingRequest(ctx, r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	quote, err := h.pricing.Quote(ctx, services.QuoteRequest{
		StartPostalCode: req.StartPostalCode,
		EndPostalCode:   req.EndPostalCode,
		Sources:         req.sources(),
		SkipDistance:    !req.includeDistance(),
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.metrics.RecordAPIRequest(pricingEndpoint, r.Method, statusLabel(http.StatusOK))
	writeJSON(w, Response{Success: true, Data: quote}, http.StatusOK)
}

// handleError maps service errors onto status codes
func (h *PricingHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var (
		reqErr   *RequestError
		valErr   *models.ValidationError
		noData   *services.NoDataError
		notFound *services.RouteNotFoundError
	)

	switch {
	case errors.As(err, &reqErr):
		h.metrics.RecordAPIError("invalid_request", pricingEndpoint)
		writeError(w, r, h.metrics, http.StatusBadRequest, "invalid request", reqErr.Fields)

	case errors.As(err, &valErr):
		h.metrics.RecordAPIError("invalid_request", pricingEndpoint)
		writeError(w, r, h.metrics, http.StatusBadRequest, valErr.Message, []FieldError{{
			Code:    "ERR_POSTALCODE",
			Field:   valErr.Field,
			Message: valErr.Message,
		}})

	case errors.As(err, &notFound):
		h.metrics.RecordAPIError("route_not_found", pricingEndpoint)
		writeError(w, r, h.metrics, http.StatusNotFound, notFound.Error(), nil)

	case errors.As(err, &noData):
		h.logger.Info(ctx, "[API_PRICING] No pricing data for route", logging.Fields{
			"route":     noData.Route.String(),
			"transient": noData.IsTransient(),
		})
		h.metrics.RecordAPIError("no_pricing_data", pricingEndpoint)
		h.metrics.RecordAPIRequest(pricingEndpoint, r.Method, statusLabel(http.StatusNotFound))
		writeJSON(w, Response{
			Success: false,
			Error:   http.StatusText(http.StatusNotFound),
			Message: "no pricing data available for this route",
			Data:    map[string]interface{}{"absent": noData.Absent},
		}, http.StatusNotFound)

	default:
		h.logger.Error(ctx, "[API_PRICING_ERROR] Failed to build quote", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", pricingEndpoint)
		writeError(w, r, h.metrics, http.StatusInternalServerError, "failed to build quote", nil)
	}
}

// HealthCheck handles GET /health
func (h *PricingHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.pricing.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK] Database unhealthy", logging.Fields{"error": err.Error()})
		writeJSON(w, Response{
			Success: false,
			Error:   http.StatusText(http.StatusServiceUnavailable),
			Message: "database unavailable",
		}, http.StatusServiceUnavailable)
		return
	}

	freshness := make(map[models.Source]string)
	for source, latest := range h.pricing.Freshness(ctx) {
		freshness[source] = latest.Format("2006-01-02")
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	writeJSON(w, Response{
		Success: true,
		Data: map[string]interface{}{
			"status":      "healthy",
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"latest_data": freshness,
		},
	}, http.StatusOK)
}

// RegisterRoutes registers all pricing API routes. auth wraps the protected routes.
func (h *PricingHandler) RegisterRoutes(router *mux.Router, auth func(http.Handler) http.Handler) {
	router.Handle(pricingEndpoint, auth(http.HandlerFunc(h.GetPricing))).Methods(http.MethodPost)

	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods(http.MethodGet)
	router.HandleFunc("/api/docs", SwaggerUI).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
}

// writeJSON sends a JSON response
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError sends an error envelope
func writeError(w http.ResponseWriter, r *http.Request, metricsCollector *metrics.Collector, statusCode int, message string, details []FieldError) {
	metricsCollector.RecordAPIRequest(r.URL.Path, r.Method, statusLabel(statusCode))

	writeJSON(w, Response{
		Success: false,
		Error:   http.StatusText(statusCode),
		Message: message,
		Details: details,
	}, statusCode)
}
