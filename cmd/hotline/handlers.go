package main

import (
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/models"
	"github.com/myrjola/hotline/internal/repositories"
	"log/slog"
	"net/http"
	"time"
)

// healthy responds with a JSON object indicating that the server and its database are healthy.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	if err := app.db.ReadOnly.PingContext(r.Context()); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "database ping failed", errors.SlogError(err))
		app.writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

type sessionResponse struct {
	ID        string               `json:"id"`
	HeartID   string               `json:"heart_id"`
	Status    models.SessionStatus `json:"status"`
	EndReason models.EndReason     `json:"end_reason,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	StartedAt *time.Time           `json:"started_at,omitempty"`
	EndedAt   *time.Time           `json:"ended_at,omitempty"`
}

// sessionStatus lets the conversation driver poll the lifecycle status of a session.
func (app *application) sessionStatus(w http.ResponseWriter, r *http.Request) {
	row, err := app.sessions.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, repositories.ErrNotFound) {
		app.notFound(w, r)
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	resp := sessionResponse{
		ID:        row.ID,
		HeartID:   row.HeartID,
		Status:    row.Status,
		EndReason: row.EndReason,
		CreatedAt: row.CreatedAt,
		StartedAt: nil,
		EndedAt:   nil,
	}
	if row.StartedAt.Valid {
		resp.StartedAt = &row.StartedAt.Time
	}
	if row.EndedAt.Valid {
		resp.EndedAt = &row.EndedAt.Time
	}
	app.writeJSON(w, r, http.StatusOK, resp)
}

// sessionScore responds with the score of a scored session and 404 until one exists.
func (app *application) sessionScore(w http.ResponseWriter, r *http.Request) {
	score, err := app.scores.GetBySessionID(r.Context(), r.PathValue("id"))
	if errors.Is(err, repositories.ErrNotFound) {
		app.notFound(w, r)
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, score)
}
