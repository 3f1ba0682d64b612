package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/river-level-etl/internal/domain"
	"github.com/couchcryptid/river-level-etl/internal/pipeline"
)

// LevelService is the read and refresh surface the API serves.
type LevelService interface {
	ReadinessChecker
	View(w domain.Window) []domain.Point
	Status() domain.Status
	Settings() pipeline.Settings
	Metadata(ctx context.Context) (domain.CacheMetadata, bool)
	Refresh(ctx context.Context) (pipeline.RefreshResult, error)
}

type api struct {
	svc    LevelService
	logger *slog.Logger
}

type pointsResponse struct {
	Window    string         `json:"window"`
	Threshold float64        `json:"threshold"`
	Count     int            `json:"count"`
	Points    []domain.Point `json:"points"`
}

// window resolves the ?window= query parameter, falling back to the configured default.
func (a *api) window(r *http.Request) (domain.Window, error) {
	if q := r.URL.Query().Get("window"); q != "" {
		return domain.ParseWindow(q)
	}
	return a.svc.Settings().Window, nil
}

func (a *api) handlePoints(w http.ResponseWriter, r *http.Request) {
	win, err := a.window(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	points := a.svc.View(win)
	if points == nil {
		points = []domain.Point{}
	}
	writeJSON(w, http.StatusOK, pointsResponse{
		Window:    win.String(),
		Threshold: a.svc.Settings().SafeLevel,
		Count:     len(points),
		Points:    points,
	})
}

func (a *api) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Status())
}

func (a *api) handleExport(w http.ResponseWriter, r *http.Request) {
	win, err := a.window(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	body, err := domain.EncodeCSV(a.svc.View(win))
	if err != nil {
		a.logger.Error("export encode failed", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="river-levels-%s.csv"`, win.String()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (a *api) handleCache(w http.ResponseWriter, r *http.Request) {
	meta, ok := a.svc.Metadata(r.Context())
	if !ok {
		writeError(w, http.StatusNotFound, "no cache persisted")
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (a *api) handleRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := a.svc.Refresh(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, pipeline.ErrRefreshInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrFetch):
		a.logger.Warn("manual refresh fetch failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		a.logger.Error("manual refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
