package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"prontoBack/internal/models"
	"prontoBack/internal/services"
)

type RequestHandler struct {
	Service *services.LeadService
}

func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var input models.ServiceRequest

	err := json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if userID, ok := r.Context().Value("user_id").(int); ok {
		input.UserID = userID
	}

	req, err := h.Service.CreateRequest(r.Context(), input)
	if err != nil {
		http.Error(w, "Could not create request", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(req)
}

func (h *RequestHandler) GetAvailableRequests(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	requests, err := h.Service.AvailableRequests(r.Context(), category)
	if err != nil {
		http.Error(w, "Could not load requests", http.StatusInternalServerError)
		return
	}
	if requests == nil {
		requests = []models.ServiceRequest{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(requests)
}

// GetRequestByID returns the request with its buyer list and whether the
// caller already purchased contact access.
func (h *RequestHandler) GetRequestByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get(":id"))
	if err != nil {
		http.Error(w, "invalid request id", http.StatusBadRequest)
		return
	}
	professionalID, _ := r.Context().Value("user_id").(int)

	detail, err := h.Service.RequestDetail(r.Context(), id, professionalID)
	if err != nil {
		if errors.Is(err, models.ErrRequestNotFound) {
			http.Error(w, "request not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Could not load request", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detail)
}

// GetQuote prices contact access without buying it.
func (h *RequestHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get(":id"))
	if err != nil {
		http.Error(w, "invalid request id", http.StatusBadRequest)
		return
	}
	lat, lon, err := parseCoordinates(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	quote, err := h.Service.Quote(r.Context(), id, lat, lon)
	if err != nil {
		if errors.Is(err, models.ErrRequestNotFound) {
			http.Error(w, "request not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Could not compute quote", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(quote)
}

func (h *RequestHandler) PurchaseAccess(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get(":id"))
	if err != nil {
		http.Error(w, "invalid request id", http.StatusBadRequest)
		return
	}

	var input struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	professionalID, ok := r.Context().Value("user_id").(int)
	if !ok {
		http.Error(w, "missing user context", http.StatusUnauthorized)
		return
	}

	result, err := h.Service.PurchaseAccess(r.Context(), id, professionalID, input.Latitude, input.Longitude)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRequestNotFound):
			http.Error(w, "request not found", http.StatusNotFound)
		case errors.Is(err, models.ErrRequestUnavailable):
			http.Error(w, "request is no longer available", http.StatusConflict)
		case errors.Is(err, models.ErrAlreadyPurchased):
			http.Error(w, "contact access already purchased", http.StatusConflict)
		case errors.Is(err, models.ErrInsufficientFunds):
			http.Error(w, "insufficient wallet balance", http.StatusPaymentRequired)
		case errors.Is(err, models.ErrWalletNotFound):
			http.Error(w, "wallet not found", http.StatusNotFound)
		default:
			http.Error(w, "Could not complete purchase", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func parseCoordinates(r *http.Request) (float64, float64, error) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		return 0, 0, errors.New("invalid lat")
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		return 0, 0, errors.New("invalid lon")
	}
	return lat, lon, nil
}
