package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
	"github.com/nbenliogludev/go-browser-run-engine/internal/bus"
)

const maxListLimit = 200

func (a *API) handleRunCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type            automation.RunType `json:"type"`
		Payload         json.RawMessage    `json:"payload"`
		BrowserConfigID uuid.UUID          `json:"browserConfigId"`
		Tenant          string             `json:"tenant"`
		UserID          string             `json:"userId"`
		Priority        int                `json:"priority"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.BrowserConfigID == uuid.Nil && (req.Tenant == "" || req.UserID == "") {
		respondError(w, http.StatusBadRequest, errors.New("browserConfigId or tenant and userId are required"))
		return
	}
	if _, err := automation.ParsePayload(req.Type, req.Payload); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Payload) == 0 || string(req.Payload) == "null" {
		req.Payload = json.RawMessage("{}")
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var (
		cfg *automation.BrowserConfig
		err error
	)
	if req.BrowserConfigID != uuid.Nil {
		cfg, err = a.opts.Configs.FindByID(ctx, req.BrowserConfigID)
	} else {
		cfg, err = a.opts.Configs.FindByUserID(ctx, req.Tenant, req.UserID)
	}
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	if !cfg.Usable() {
		respondError(w, http.StatusConflict, fmt.Errorf("browser config %s has session %s", cfg.ID, cfg.SessionStatus))
		return
	}

	run := automation.NewRunRecord(cfg, req.Type, req.Payload, automation.TriggeredManual)
	run.Priority = req.Priority
	if err := a.opts.Runs.Create(ctx, run); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	if a.opts.Publisher != nil {
		msg := bus.RunScheduled{
			RunID:           run.ID,
			BrowserConfigID: run.BrowserConfigID,
			Tenant:          run.Tenant,
			UserID:          run.UserID,
			Type:            string(run.Type),
		}
		// the worker sweep picks up runs whose message never went out
		if err := a.opts.Publisher.Publish(ctx, bus.SubjectScheduled, msg); err != nil {
			a.log.Error().Err(err).Str("run_id", run.ID.String()).Msg("publish scheduled run")
		}
	}

	respondJSON(w, http.StatusCreated, map[string]any{"run": run})
}

func (a *API) handleRunGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("run id: %w", err))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	run, err := a.opts.Runs.FindByID(ctx, id)
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"run": run})
}

func (a *API) handleRunList(w http.ResponseWriter, r *http.Request) {
	tenant := strings.TrimSpace(chi.URLParam(r, "tenant"))
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = min(n, maxListLimit)
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	runs, err := a.opts.Runs.ListByUser(ctx, tenant, userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []*automation.RunRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func statusFor(err error) int {
	if errors.Is(err, automation.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
