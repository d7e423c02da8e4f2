package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aroosi/aroosi-api/internal/handler/dto"
	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/service"
)

// ProfileAPI is the profile surface used by ProfileHandler.
type ProfileAPI interface {
	Create(ctx context.Context, userID string, in service.ProfileInput) (*model.Profile, error)
	Get(ctx context.Context, userID string) (*model.Profile, error)
	Update(ctx context.Context, userID string, in service.ProfileUpdate) (*model.Profile, error)
	View(ctx context.Context, viewerID, targetID string) (*model.Profile, error)
	Search(ctx context.Context, viewerID string, in service.SearchInput) (*service.SearchResult, error)
	Viewers(ctx context.Context, userID string, limit int) ([]model.ProfileViewer, error)
	Boost(ctx context.Context, userID string) (*service.BoostResult, error)
}

// AccountDeleter removes the caller's account.
type AccountDeleter interface {
	DeleteAccount(ctx context.Context, userID string) error
}

// ProfileHandler handles the caller's profile, other profiles and search.
type ProfileHandler struct {
	svc      ProfileAPI
	accounts AccountDeleter
	logger   *slog.Logger
	now      func() time.Time
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(svc ProfileAPI, accounts AccountDeleter, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{svc: svc, accounts: accounts, logger: logger, now: time.Now}
}

// Create handles POST /api/v1/profile.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req dto.ProfileRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	p, err := h.svc.Create(r.Context(), userID, service.ProfileInput{
		FullName:          req.FullName,
		Gender:            req.Gender,
		PreferredGender:   req.PreferredGender,
		DateOfBirth:       req.DateOfBirth.Time,
		City:              req.City,
		Country:           req.Country,
		Religion:          req.Religion,
		MotherTongue:      req.MotherTongue,
		Languages:         req.Languages,
		Education:         req.Education,
		Occupation:        req.Occupation,
		HeightCm:          req.HeightCm,
		MaritalStatus:     req.MaritalStatus,
		AboutMe:           req.AboutMe,
		PhoneNumber:       req.PhoneNumber,
		Images:            req.Images,
		PartnerAgeMin:     req.PartnerAgeMin,
		PartnerAgeMax:     req.PartnerAgeMax,
		HideFromFreeUsers: req.HideFromFreeUsers,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, dto.ToProfileResponse(p, h.now()))
}

// Get handles GET /api/v1/profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.ToProfileResponse(p, h.now()))
}

// Update handles PATCH /api/v1/profile.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req dto.ProfileUpdateRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	in := service.ProfileUpdate{
		FullName:          req.FullName,
		Gender:            req.Gender,
		PreferredGender:   req.PreferredGender,
		City:              req.City,
		Country:           req.Country,
		Religion:          req.Religion,
		MotherTongue:      req.MotherTongue,
		Languages:         req.Languages,
		Education:         req.Education,
		Occupation:        req.Occupation,
		HeightCm:          service.OptionalInt(req.HeightCm),
		MaritalStatus:     req.MaritalStatus,
		AboutMe:           req.AboutMe,
		PhoneNumber:       req.PhoneNumber,
		Images:            req.Images,
		PartnerAgeMin:     service.OptionalInt(req.PartnerAgeMin),
		PartnerAgeMax:     service.OptionalInt(req.PartnerAgeMax),
		HideFromFreeUsers: req.HideFromFreeUsers,
	}
	if req.DateOfBirth != nil {
		in.DateOfBirth = &req.DateOfBirth.Time
	}

	p, err := h.svc.Update(r.Context(), userID, in)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.ToProfileResponse(p, h.now()))
}

// Delete handles DELETE /api/v1/profile. It removes the whole account.
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	if err := h.accounts.DeleteAccount(r.Context(), userID); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// View handles GET /api/v1/profiles/{id}.
func (h *ProfileHandler) View(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.View(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.ToProfileResponse(p, h.now()))
}

// Search handles GET /api/v1/profiles/search.
func (h *ProfileHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	result, err := h.svc.Search(r.Context(), userID, service.SearchInput{
		Gender:        model.Gender(strings.ToLower(q.Get("gender"))),
		AgeMin:        queryInt(r, "ageMin", 0),
		AgeMax:        queryInt(r, "ageMax", 0),
		City:          strings.TrimSpace(q.Get("city")),
		Country:       strings.TrimSpace(q.Get("country")),
		Religion:      strings.TrimSpace(q.Get("religion")),
		MotherTongue:  strings.TrimSpace(q.Get("motherTongue")),
		MaritalStatus: model.MaritalStatus(q.Get("maritalStatus")),
		Cursor:        q.Get("cursor"),
		Limit:         queryInt(r, "limit", 0),
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.NewPage(result.Profiles, result.NextCursor, result.HasMore))
}

// Viewers handles GET /api/v1/profile/viewers.
func (h *ProfileHandler) Viewers(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	viewers, err := h.svc.Viewers(r.Context(), userID, queryInt(r, "limit", 0))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.NewList(viewers))
}

// Boost handles POST /api/v1/profile/boost.
func (h *ProfileHandler) Boost(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.Boost(r.Context(), userID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.BoostResponse{
		BoostedUntil:    result.BoostedUntil,
		RemainingBoosts: result.RemainingBoosts,
		Unlimited:       result.Unlimited,
	})
}
