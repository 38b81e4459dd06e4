// Package handler provides the HTTP API over the Waverly storefront.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/waverly-store/internal/domain"
	"github.com/prn-tf/waverly-store/internal/service"
	"github.com/prn-tf/waverly-store/internal/session"
	"github.com/prn-tf/waverly-store/internal/storefront"
)

// APIHandler exposes the storefront operations as a JSON API.
type APIHandler struct {
	storefront *storefront.Storefront
	logger     zerolog.Logger
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(sf *storefront.Storefront, logger zerolog.Logger) *APIHandler {
	return &APIHandler{
		storefront: sf,
		logger:     logger.With().Str("handler", "api").Logger(),
	}
}

// RegisterRoutes registers the API routes.
func (h *APIHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)
	r.Get("/auth/session", h.handleSession)
	r.Post("/auth/restore", h.handleRestore)

	r.Get("/users", h.handleListUsers)
	r.Put("/users/{id}", h.handleUpdateProfile)
	r.Get("/users/{id}/orders", h.handleListOrders)
	r.Get("/users/{id}/addresses", h.handleListAddresses)

	r.Post("/orders", h.handlePlaceOrder)
	r.Get("/orders/{id}", h.handleGetOrder)
	r.Patch("/orders/{id}/status", h.handleUpdateOrderStatus)
	r.Delete("/orders/{id}", h.handleDeleteOrder)

	r.Post("/addresses", h.handleAddAddress)
	r.Put("/addresses/{id}", h.handleUpdateAddress)
	r.Delete("/addresses/{id}", h.handleDeleteAddress)

	r.Get("/stats", h.handleStats)
	r.Post("/export", h.handleExport)

	r.Get("/local/language", h.handleGetLanguage)
	r.Put("/local/language", h.handleSetLanguage)
	r.Get("/local/cart", h.handleGetCart)
	r.Put("/local/cart", h.handleSaveCart)
	r.Get("/local/wishlist", h.handleGetWishlist)
	r.Put("/local/wishlist", h.handleSaveWishlist)
}

// =============================================================================
// Auth
// =============================================================================

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

func (h *APIHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity, err := h.storefront.RegisterUser(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, identity)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity, err := h.storefront.SignInUser(r.Context(), req.Email, req.Password)
	if err != nil {
		signInsTotal.WithLabelValues("failure").Inc()
		h.writeDomainError(w, err)
		return
	}
	signInsTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, identity)
}

func (h *APIHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.storefront.SignOut(r.Context()); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	identity, err := h.storefront.CurrentUser()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if identity == nil {
		writeJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": identity})
}

func (h *APIHandler) handleRestore(w http.ResponseWriter, r *http.Request) {
	identity, err := h.storefront.RestoreSession(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if identity == nil {
		writeJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": identity})
}

type updateProfileRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Email *string `json:"email"`
}

func (h *APIHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.storefront.ListUsers(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *APIHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity, err := h.storefront.UpdateProfile(r.Context(), userID, service.UpdateProfileInput{
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

// =============================================================================
// Orders
// =============================================================================

type placeOrderRequest struct {
	OrderNumber string          `json:"orderNumber"`
	OrderDate   string          `json:"orderDate"`
	Status      string          `json:"status"`
	Total       any             `json:"total"`
	Items       json.RawMessage `json:"items"`
}

func (h *APIHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := service.PlaceOrderInput{
		OrderNumber: req.OrderNumber,
		Status:      req.Status,
		Total:       req.Total,
		Items:       req.Items,
	}
	if req.OrderDate != "" {
		orderDate, err := parseTimestamp(req.OrderDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid orderDate")
			return
		}
		input.OrderDate = orderDate
	}

	order, err := h.storefront.AddOrder(r.Context(), input)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	ordersPlacedTotal.Inc()
	writeJSON(w, http.StatusCreated, order)
}

func (h *APIHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	orders, err := h.storefront.GetUserOrders(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *APIHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	order, err := h.storefront.GetOrder(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *APIHandler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.storefront.UpdateOrderStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *APIHandler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.storefront.DeleteOrder(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Addresses
// =============================================================================

func (h *APIHandler) handleAddAddress(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.rawBody(w, r)
	if !ok {
		return
	}

	address, err := h.storefront.AddAddress(r.Context(), fields)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, address)
}

func (h *APIHandler) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	addresses, err := h.storefront.GetUserAddresses(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addresses)
}

func (h *APIHandler) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	fields, ok := h.rawBody(w, r)
	if !ok {
		return
	}

	address, err := h.storefront.UpdateAddress(r.Context(), id, fields)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, address)
}

func (h *APIHandler) handleDeleteAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.storefront.DeleteAddress(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Aggregates
// =============================================================================

func (h *APIHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.storefront.Stats(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *APIHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	result, err := h.storefront.Export(r.Context())
	if err != nil {
		exportsTotal.WithLabelValues("failure").Inc()
		h.writeDomainError(w, err)
		return
	}
	exportsTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// Client-local state
// =============================================================================

type languagePayload struct {
	Language string `json:"language"`
}

func (h *APIHandler) handleGetLanguage(w http.ResponseWriter, r *http.Request) {
	local, err := h.storefront.Local()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	lang, err := local.Language(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, languagePayload{Language: lang})
}

func (h *APIHandler) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	local, err := h.storefront.Local()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	var req languagePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Language == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := local.SetLanguage(r.Context(), req.Language); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	h.getSnapshot(w, r, func(local *session.LocalState, r *http.Request) (json.RawMessage, error) {
		return local.Cart(r.Context())
	})
}

func (h *APIHandler) handleSaveCart(w http.ResponseWriter, r *http.Request) {
	h.saveSnapshot(w, r, func(local *session.LocalState, r *http.Request, snapshot json.RawMessage) error {
		return local.SaveCart(r.Context(), snapshot)
	})
}

func (h *APIHandler) handleGetWishlist(w http.ResponseWriter, r *http.Request) {
	h.getSnapshot(w, r, func(local *session.LocalState, r *http.Request) (json.RawMessage, error) {
		return local.Wishlist(r.Context())
	})
}

func (h *APIHandler) handleSaveWishlist(w http.ResponseWriter, r *http.Request) {
	h.saveSnapshot(w, r, func(local *session.LocalState, r *http.Request, snapshot json.RawMessage) error {
		return local.SaveWishlist(r.Context(), snapshot)
	})
}

func (h *APIHandler) getSnapshot(w http.ResponseWriter, r *http.Request, read func(*session.LocalState, *http.Request) (json.RawMessage, error)) {
	local, err := h.storefront.Local()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	snapshot, err := read(local, r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if snapshot == nil {
		snapshot = json.RawMessage("[]")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(snapshot)
}

func (h *APIHandler) saveSnapshot(w http.ResponseWriter, r *http.Request, save func(*session.LocalState, *http.Request, json.RawMessage) error) {
	local, err := h.storefront.Local()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	snapshot, ok := h.rawBody(w, r)
	if !ok {
		return
	}
	if err := save(local, r, snapshot); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Helpers
// =============================================================================

// parseTimestamp accepts RFC 3339 timestamps, with or without a time
// component.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// pathID parses the {id} route parameter.
func (h *APIHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid identifier")
		return 0, false
	}
	return id, true
}

// rawBody reads the body as a raw JSON value, validating it parses.
func (h *APIHandler) rawBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return raw, true
}

// writeDomainError maps domain and service errors to HTTP statuses.
func (h *APIHandler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUninitialized), errors.Is(err, domain.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConstraintViolation):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrExportInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidPassword),
		errors.Is(err, service.ErrInvalidName),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrEmptyUpdate):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
