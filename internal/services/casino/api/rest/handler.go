// Package rest exposes the casino service over HTTP with JSON payloads.
package rest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	apperrors "github.com/wavefold/catbox/internal/platform/errors"
	"github.com/wavefold/catbox/internal/platform/id"
	"github.com/wavefold/catbox/internal/services/casino/app"
	"github.com/wavefold/catbox/internal/services/casino/domain/box"
	"github.com/wavefold/catbox/internal/services/casino/domain/event"
)

// Handler serves the casino HTTP API.
type Handler struct {
	service *app.Service
}

// NewHandler creates a handler over the application service.
func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

// Router builds the route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logMiddleware)

	r.HandleFunc("/v1/boxes", h.handleCreateBox).Methods(http.MethodPost)
	r.HandleFunc("/v1/boxes/{account}", h.handleGetBox).Methods(http.MethodGet)
	r.HandleFunc("/v1/boxes/{account}/resolve", h.handleResolveBox).Methods(http.MethodPost)
	r.HandleFunc("/v1/boxes/{account}/release", h.handleReleaseExpired).Methods(http.MethodPost)
	r.HandleFunc("/v1/pool", h.handleGetPool).Methods(http.MethodGet)
	r.HandleFunc("/v1/events", h.handleListEvents).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)

	return r
}

type createBoxRequest struct {
	Account string `json:"account"`
	Deposit uint64 `json:"deposit"`
}

type boxResponse struct {
	Account              string    `json:"account"`
	Deposit              uint64    `json:"deposit"`
	CreatedAt            time.Time `json:"created_at"`
	State                string    `json:"state"`
	TimeRemainingSeconds int64     `json:"time_remaining_seconds"`
}

type resolveResponse struct {
	Account  string `json:"account"`
	HasPrize bool   `json:"has_prize"`
	Payout   uint64 `json:"payout"`
}

type releaseResponse struct {
	Caller string `json:"caller"`
	Target string `json:"target"`
	Amount uint64 `json:"amount"`
}

type poolResponse struct {
	Jackpot      uint64 `json:"jackpot"`
	Held         uint64 `json:"held"`
	PlayerCount  uint64 `json:"player_count"`
	LastResolver string `json:"last_resolver,omitempty"`
}

type eventResponse struct {
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Account   string          `json:"account"`
	Payload   json.RawMessage `json:"payload"`
}

type errorResponse struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (h *Handler) handleCreateBox(w http.ResponseWriter, r *http.Request) {
	var req createBoxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    string(apperrors.CodeUnknown),
			Message: "invalid request body",
		})
		return
	}

	info, err := h.service.Create(r.Context(), box.Account(req.Account), req.Deposit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, boxInfoResponse(info, box.StateSuperposed))
}

func (h *Handler) handleGetBox(w http.ResponseWriter, r *http.Request) {
	account := box.Account(mux.Vars(r)["account"])

	info, err := h.service.BoxInfo(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := h.service.BoxState(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, boxInfoResponse(info, state))
}

func (h *Handler) handleResolveBox(w http.ResponseWriter, r *http.Request) {
	account := box.Account(mux.Vars(r)["account"])

	res, err := h.service.Resolve(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{
		Account:  string(res.Account),
		HasPrize: res.HasPrize,
		Payout:   res.Payout,
	})
}

func (h *Handler) handleReleaseExpired(w http.ResponseWriter, r *http.Request) {
	caller := box.Account(mux.Vars(r)["account"])

	rel, err := h.service.SettleExpired(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, releaseResponse{
		Caller: string(rel.Caller),
		Target: string(rel.Target),
		Amount: rel.Amount,
	})
}

func (h *Handler) handleGetPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.service.Pool(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poolResponse{
		Jackpot:      pool.Jackpot,
		Held:         pool.Held,
		PlayerCount:  pool.PlayerCount,
		LastResolver: string(pool.LastResolver),
	})
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Code:    string(apperrors.CodeUnknown),
				Message: "limit must be a non-negative integer",
			})
			return
		}
		limit = parsed
	}

	events, err := h.service.Events(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, evt := range events {
		out = append(out, toEventResponse(evt))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func boxInfoResponse(info box.Info, state box.State) boxResponse {
	return boxResponse{
		Account:              string(info.Account),
		Deposit:              info.Deposit,
		CreatedAt:            info.CreatedAt,
		State:                state.String(),
		TimeRemainingSeconds: int64(info.TimeRemaining / time.Second),
	}
}

func toEventResponse(evt event.Event) eventResponse {
	return eventResponse{
		Seq:       evt.Seq,
		Timestamp: evt.Timestamp,
		Type:      string(evt.Type),
		Account:   string(evt.Account),
		Payload:   json.RawMessage(evt.PayloadJSON),
	}
}

// httpStatus maps domain error codes to HTTP statuses.
func httpStatus(code apperrors.Code) int {
	switch code {
	case apperrors.CodeBoxEmptyAccount, apperrors.CodeBoxDepositTooSmall:
		return http.StatusBadRequest
	case apperrors.CodeBoxAlreadyExists:
		return http.StatusConflict
	case apperrors.CodeBoxNotAlive, apperrors.CodeBoxExpired, apperrors.CodeBoxNotExpired, apperrors.CodeLedgerNoPlayers:
		return http.StatusConflict
	case apperrors.CodePoolInsufficientFunds:
		return http.StatusTooManyRequests
	case apperrors.CodeBankTransferFailed:
		return http.StatusServiceUnavailable
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{
		Code:    string(apperrors.CodeUnknown),
		Message: "internal error",
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		resp.Code = string(appErr.Code)
		resp.Message = appErr.Message
		resp.Metadata = appErr.Metadata
	}
	writeJSON(w, httpStatus(apperrors.Code(resp.Code)), resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[CASINO] encode response: %v", err)
	}
}

// logMiddleware tags every request with an ID and logs its latency.
func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			if generated, err := id.NewID(); err == nil {
				requestID = generated
			}
		}
		w.Header().Set("X-Request-Id", requestID)
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[CASINO] %s %s %s id=%s", r.Method, r.URL.Path, time.Since(start), requestID)
	})
}
