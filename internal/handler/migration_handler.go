// Package handler はマイグレーション状況を参照するHTTPハンドラを提供する。
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"mongo-migrations/internal/domain"
	"mongo-migrations/internal/usecase"
	"mongo-migrations/pkg/httputil"
)

// MigrationHandler はマイグレーション状況のHTTPハンドラ。参照のみ。
type MigrationHandler struct {
	service *usecase.StatusService
}

// NewMigrationHandler は新しいMigrationHandlerを生成する。
func NewMigrationHandler(service *usecase.StatusService) *MigrationHandler {
	return &MigrationHandler{service: service}
}

// MigrationResponse はマイグレーション1件のレスポンス形式。
type MigrationResponse struct {
	Version      string `json:"version"`
	Description  string `json:"description"`
	Experimental bool   `json:"experimental"`
	Known        bool   `json:"known"`
	Status       string `json:"status"`
	StartedOn    string `json:"started_on,omitempty"`
	CompletedOn  string `json:"completed_on,omitempty"`
}

// MigrationListResponse はマイグレーション一覧のレスポンス形式。
type MigrationListResponse struct {
	Migrations []MigrationResponse `json:"migrations"`
}

// VersionResponse はデータベースバージョンのレスポンス形式。
type VersionResponse struct {
	Version  string `json:"version"`
	UpToDate bool   `json:"up_to_date"`
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toResponse(e domain.StatusEntry) MigrationResponse {
	return MigrationResponse{
		Version:      e.Version.String(),
		Description:  e.Description,
		Experimental: e.Experimental,
		Known:        e.Known,
		Status:       string(e.Status),
		StartedOn:    formatTime(e.StartedOn),
		CompletedOn:  formatTime(e.CompletedOn),
	}
}

// ListMigrations は既知のマイグレーションと台帳を突き合わせた一覧を返す。
func (h *MigrationHandler) ListMigrations(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Status(r.Context())
	if err != nil {
		h.handleError(w, r, "list_migrations", err)
		return
	}

	resp := MigrationListResponse{Migrations: make([]MigrationResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Migrations = append(resp.Migrations, toResponse(e))
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// ListPending は未適用のマイグレーションを返す。
func (h *MigrationHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.GetUnapplied(r.Context())
	if err != nil {
		h.handleError(w, r, "list_pending", err)
		return
	}

	resp := MigrationListResponse{Migrations: make([]MigrationResponse, 0, len(pending))}
	for _, m := range pending {
		meta := m.Metadata()
		resp.Migrations = append(resp.Migrations, MigrationResponse{
			Version:      meta.Version.String(),
			Description:  meta.Description,
			Experimental: meta.Experimental,
			Known:        true,
			Status:       string(domain.MigrationStatusPending),
		})
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// GetVersion はデータベースの現在のバージョンを返す。
func (h *MigrationHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	version, err := h.service.GetVersion(r.Context())
	if err != nil {
		h.handleError(w, r, "get_version", err)
		return
	}
	upToDate, err := h.service.IsUpToDate(r.Context())
	if err != nil {
		h.handleError(w, r, "get_version", err)
		return
	}
	httputil.JSON(w, http.StatusOK, VersionResponse{Version: version.String(), UpToDate: upToDate})
}

// Healthz はプロセスの生存を返す。
func (h *MigrationHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz は未適用のマイグレーションがない場合に200を返す。
func (h *MigrationHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	err := h.service.CheckUpToDate(r.Context())
	var notUpToDate *domain.NotUpToDateError
	switch {
	case err == nil:
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	case errors.As(err, &notUpToDate):
		httputil.VersionError(w, http.StatusServiceUnavailable, "NOT_UP_TO_DATE",
			"database contains unapplied migrations", notUpToDate.FirstUnapplied.String())
	default:
		h.handleError(w, r, "readyz", err)
	}
}

func (h *MigrationHandler) handleError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	slog.ErrorContext(r.Context(), "failed to read migration status",
		"operation", operation,
		"error", err,
	)
	switch {
	case errors.Is(err, domain.ErrDiscoveryFailed):
		httputil.Error(w, http.StatusInternalServerError, "DISCOVERY_FAILED", "cannot load migrations")
	default:
		httputil.Error(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "cannot read migration ledger")
	}
}
