package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/rl1809/auction-ledger/internal/adapter/storage"
	"github.com/rl1809/auction-ledger/internal/core/domain"
	"github.com/rl1809/auction-ledger/internal/core/service"
)

const (
	PrincipalHeader = "X-Principal"

	maxBodyBytes       = 1 << 20
	maxDurationSeconds = uint64(math.MaxInt64 / int64(time.Second))
)

type HTTPHandler struct {
	auctionService *service.AuctionService
}

type CreateAuctionHTTPRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Image           []byte `json:"image"`
	DurationSeconds uint64 `json:"duration_seconds"`
}

type CreateAuctionHTTPResponse struct {
	ID domain.AuctionID `json:"id"`
}

type SubmitBidHTTPRequest struct {
	Price uint64 `json:"price"`
}

type RemainingTimeHTTPResponse struct {
	RemainingNanos   int64   `json:"remaining_ns"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

type ErrorHTTPResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(auctionService *service.AuctionService) *HTTPHandler {
	return &HTTPHandler{auctionService: auctionService}
}

// Routes registers every endpoint. Closing an auction is deliberately absent:
// only the scheduler can end one.
func (h *HTTPHandler) Routes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	const base = "/api/v1/auctions"
	const item = base + "/{id:[0-9]+}"
	router.HandleFunc(base, h.CreateAuction).Methods(http.MethodPost)
	router.HandleFunc(base, h.ListAll).Methods(http.MethodGet)
	router.HandleFunc(base+"/overview", h.ListOverview).Methods(http.MethodGet)
	router.HandleFunc(base+"/active", h.ListActive).Methods(http.MethodGet)
	router.HandleFunc(base+"/ended", h.ListEnded).Methods(http.MethodGet)
	router.HandleFunc(item, h.GetAuction).Methods(http.MethodGet)
	router.HandleFunc(item+"/details", h.GetAuctionDetails).Methods(http.MethodGet)
	router.HandleFunc(item+"/remaining", h.GetRemainingTime).Methods(http.MethodGet)
	router.HandleFunc(item+"/bids", h.GetAllBids).Methods(http.MethodGet)
	router.HandleFunc(item+"/bids", h.SubmitBid).Methods(http.MethodPost)
	router.HandleFunc(item+"/bids/highest", h.GetHighestBid).Methods(http.MethodGet)
}

func (h *HTTPHandler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req CreateAuctionHTTPRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Error: "invalid request body"})
		return
	}
	if req.DurationSeconds > maxDurationSeconds {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Error: "duration too long"})
		return
	}

	item := domain.Item{Title: req.Title, Description: req.Description, Image: req.Image}
	id, err := h.auctionService.CreateAuction(r.Context(), item, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateAuctionHTTPResponse{ID: id})
}

func (h *HTTPHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}
	a, err := h.auctionService.GetAuction(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *HTTPHandler) GetAuctionDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}
	details, err := h.auctionService.GetAuctionDetails(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *HTTPHandler) GetRemainingTime(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}
	remaining, err := h.auctionService.GetRemainingTime(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RemainingTimeHTTPResponse{
		RemainingNanos:   remaining.Nanoseconds(),
		RemainingSeconds: remaining.Seconds(),
	})
}

func (h *HTTPHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, h.auctionService.ListAll)
}

func (h *HTTPHandler) ListOverview(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, h.auctionService.ListOverview)
}

func (h *HTTPHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, h.auctionService.ListActive)
}

func (h *HTTPHandler) ListEnded(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, h.auctionService.ListEnded)
}

func (h *HTTPHandler) SubmitBid(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	var req SubmitBidHTTPRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Error: "invalid request body"})
		return
	}

	principal := domain.Principal(r.Header.Get(PrincipalHeader))
	if err := h.auctionService.SubmitBid(r.Context(), id, req.Price, principal); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "accepted"})
}

func (h *HTTPHandler) GetHighestBid(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}
	bid, err := h.auctionService.GetHighestBid(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if bid == nil {
		writeJSON(w, http.StatusNotFound, ErrorHTTPResponse{Error: "no bids yet"})
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

func (h *HTTPHandler) GetAllBids(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}
	bids, err := h.auctionService.GetAllBids(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	n, err := h.auctionService.CountAuctions(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "auctions": n})
}

func (h *HTTPHandler) writeList(w http.ResponseWriter, r *http.Request, list func(ctx context.Context) ([]domain.AuctionOverview, error)) {
	overviews, err := list(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overviews)
}

func auctionID(w http.ResponseWriter, r *http.Request) (domain.AuctionID, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Error: "invalid auction id"})
		return 0, false
	}
	return domain.AuctionID(id), true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrAuctionNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrAuctionEnded):
		status, message = http.StatusGone, err.Error()
	case errors.Is(err, domain.ErrBidTooLow):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrInvalidDuration):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, storage.ErrRecordTooLarge):
		status, message = http.StatusRequestEntityTooLarge, "auction record too large"
	}

	writeJSON(w, status, ErrorHTTPResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
