package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aroosi/aroosi-api/internal/auth"
	"github.com/aroosi/aroosi-api/internal/handler/dto"
	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/service"
)

// adminQueryTimeout bounds the dashboard queries, which scan large tables.
const adminQueryTimeout = 5 * time.Second

// AdminAPI is the moderation surface used by AdminHandler.
type AdminAPI interface {
	Stats(ctx context.Context) (*model.AdminStats, error)
	ListProfiles(ctx context.Context, in service.AdminListInput) (*service.AdminListOutput, error)
	SetBan(ctx context.Context, adminID, userID string, banned bool, reason string) (*model.User, error)
	SetPlan(ctx context.Context, adminID, userID string, plan model.Plan, expiresAt *time.Time) (*model.User, error)
	ListReports(ctx context.Context, status model.ReportStatus, cursor string, limit int) (*service.ReportListOutput, error)
	UpdateReport(ctx context.Context, adminID, reportID string, status model.ReportStatus) (*model.Report, error)
}

// AdminHandler provides admin-only endpoints for moderation and plan management.
type AdminHandler struct {
	svc     AdminAPI
	logger  *slog.Logger
	version string
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(svc AdminAPI, logger *slog.Logger, version string) *AdminHandler {
	return &AdminHandler{svc: svc, logger: logger, version: version}
}

// StatsResponse wraps the dashboard numbers with service metadata.
type StatsResponse struct {
	*model.AdminStats
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Stats handles GET /api/v1/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	stats, err := h.svc.Stats(ctx)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, StatsResponse{
		AdminStats: stats,
		Timestamp:  time.Now().UTC(),
		Version:    h.version,
	})
}

// Profiles handles GET /api/v1/admin/profiles?q=&banned=&cursor=&limit=.
func (h *AdminHandler) Profiles(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	q := r.URL.Query()
	out, err := h.svc.ListProfiles(ctx, service.AdminListInput{
		Query:  strings.TrimSpace(q.Get("q")),
		Banned: queryBool(r, "banned"),
		Cursor: q.Get("cursor"),
		Limit:  queryInt(r, "limit", 0),
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.NewPage(out.Users, out.NextCursor, out.HasMore))
}

// SetBan handles PUT /api/v1/admin/users/{id}/ban.
func (h *AdminHandler) SetBan(w http.ResponseWriter, r *http.Request) {
	adminID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req dto.SetBanRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	userID := chi.URLParam(r, "id")
	user, err := h.svc.SetBan(r.Context(), adminID, userID, req.Banned, req.Reason)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.audit(r, "user_ban_changed", slog.String("user_id", userID), slog.Bool("banned", req.Banned),
		slog.String("reason", truncateForLog(req.Reason, 100)))
	writeData(w, http.StatusOK, user)
}

// SetPlan handles PUT /api/v1/admin/users/{id}/plan.
func (h *AdminHandler) SetPlan(w http.ResponseWriter, r *http.Request) {
	adminID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req dto.SetPlanRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	userID := chi.URLParam(r, "id")
	user, err := h.svc.SetPlan(r.Context(), adminID, userID, req.Plan, req.ExpiresAt)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.audit(r, "user_plan_changed", slog.String("user_id", userID), slog.String("plan", string(req.Plan)))
	writeData(w, http.StatusOK, user)
}

// Reports handles GET /api/v1/admin/reports?status=.
func (h *AdminHandler) Reports(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	q := r.URL.Query()
	out, err := h.svc.ListReports(ctx, model.ReportStatus(q.Get("status")), q.Get("cursor"), queryInt(r, "limit", 0))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.NewPage(out.Reports, out.NextCursor, out.HasMore))
}

// UpdateReport handles PUT /api/v1/admin/reports/{id}.
func (h *AdminHandler) UpdateReport(w http.ResponseWriter, r *http.Request) {
	adminID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req dto.UpdateReportRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	reportID := chi.URLParam(r, "id")
	report, err := h.svc.UpdateReport(r.Context(), adminID, reportID, req.Status)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.audit(r, "report_updated", slog.String("report_id", reportID), slog.String("status", string(req.Status)))
	writeData(w, http.StatusOK, report)
}

// audit logs an admin mutation with the acting admin attached.
func (h *AdminHandler) audit(r *http.Request, event string, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("admin_id", auth.UserIDFromContext(r.Context())))
	h.logger.LogAttrs(r.Context(), slog.LevelInfo, event, attrs...)
}

// truncateForLog truncates a string for logging purposes.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
