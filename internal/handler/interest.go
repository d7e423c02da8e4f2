package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aroosi/aroosi-api/internal/handler/dto"
	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/service"
)

// InterestAPI is the interest and match surface used by InterestHandler.
type InterestAPI interface {
	Send(ctx context.Context, fromID, toID string) (*service.SendResult, error)
	Respond(ctx context.Context, userID, interestID string, status model.InterestStatus) (*service.SendResult, error)
	Withdraw(ctx context.Context, userID, interestID string) (*model.Interest, error)
	ListSent(ctx context.Context, userID string, limit int) ([]model.InterestWithProfile, error)
	ListReceived(ctx context.Context, userID string, status model.InterestStatus, limit int) ([]model.InterestWithProfile, error)
	ListMatches(ctx context.Context, userID string) ([]model.MatchWithProfile, error)
	Unmatch(ctx context.Context, userID, matchID string) (*model.Match, error)
}

// InterestHandler handles interests and the matches they produce.
type InterestHandler struct {
	svc    InterestAPI
	logger *slog.Logger
}

// NewInterestHandler creates a new InterestHandler.
func NewInterestHandler(svc InterestAPI, logger *slog.Logger) *InterestHandler {
	return &InterestHandler{svc: svc, logger: logger}
}

// Send handles POST /api/v1/interests.
func (h *InterestHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req dto.TargetRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	result, err := h.svc.Send(r.Context(), userID, req.ToUserID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, toInterestResult(result))
}

// Respond handles POST /api/v1/interests/{id}/respond.
func (h *InterestHandler) Respond(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req dto.RespondInterestRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	result, err := h.svc.Respond(r.Context(), userID, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, toInterestResult(result))
}

// Withdraw handles DELETE /api/v1/interests/{id}.
func (h *InterestHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	interest, err := h.svc.Withdraw(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, interest)
}

// Sent handles GET /api/v1/interests/sent.
func (h *InterestHandler) Sent(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	items, err := h.svc.ListSent(r.Context(), userID, queryInt(r, "limit", 0))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.NewList(items))
}

// Received handles GET /api/v1/interests/received?status=.
func (h *InterestHandler) Received(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	status := model.InterestStatus(r.URL.Query().Get("status"))
	items, err := h.svc.ListReceived(r.Context(), userID, status, queryInt(r, "limit", 0))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.NewList(items))
}

// Matches handles GET /api/v1/matches.
func (h *InterestHandler) Matches(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	matches, err := h.svc.ListMatches(r.Context(), userID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.NewList(matches))
}

// Unmatch handles DELETE /api/v1/matches/{id}.
func (h *InterestHandler) Unmatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	match, err := h.svc.Unmatch(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, match)
}

func toInterestResult(res *service.SendResult) *dto.InterestResultResponse {
	if res == nil {
		return nil
	}
	return &dto.InterestResultResponse{
		Interest: res.Interest,
		Match:    res.Match,
		Matched:  res.Match != nil,
	}
}
