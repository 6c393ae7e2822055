package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
	"github.com/nbenliogludev/go-browser-run-engine/internal/browser"
)

// configView is a BrowserConfig without its cookie jar.
type configView struct {
	ID            uuid.UUID                `json:"id"`
	Tenant        string                   `json:"tenant"`
	UserID        string                   `json:"userId"`
	UserAgent     string                   `json:"userAgent"`
	SessionStatus automation.SessionStatus `json:"sessionStatus"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt"`
}

func toConfigView(c *automation.BrowserConfig) configView {
	return configView{
		ID:            c.ID,
		Tenant:        c.Tenant,
		UserID:        c.UserID,
		UserAgent:     c.UserAgent,
		SessionStatus: c.SessionStatus,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// cookieJar accepts the jar either as a JSON array or as a string holding one.
func cookieJar(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(raw), nil
}

// handleConfigPut stores a freshly captured session for a user. The session
// is marked VALID again, which re-enables runs after an invalidation.
func (a *API) handleConfigPut(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tenant    string          `json:"tenant"`
		UserID    string          `json:"userId"`
		Cookies   json.RawMessage `json:"cookies"`
		UserAgent string          `json:"userAgent"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	req.Tenant = strings.TrimSpace(req.Tenant)
	req.UserID = strings.TrimSpace(req.UserID)
	if req.Tenant == "" {
		respondError(w, http.StatusBadRequest, errors.New("tenant is required"))
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, errors.New("userId is required"))
		return
	}

	jar, err := cookieJar(req.Cookies)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("cookies: %w", err))
		return
	}
	cookies, err := browser.ParseCookies(jar)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if len(cookies) == 0 {
		respondError(w, http.StatusBadRequest, errors.New("cookies are required"))
		return
	}
	if a.opts.Sealer != nil {
		if jar, err = a.opts.Sealer.Seal(jar); err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	cfg := &automation.BrowserConfig{
		Tenant:        req.Tenant,
		UserID:        req.UserID,
		Cookies:       jar,
		UserAgent:     strings.TrimSpace(req.UserAgent),
		SessionStatus: automation.SessionValid,
	}
	if err := a.opts.Configs.Upsert(ctx, cfg); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	a.log.Info().
		Str("tenant", cfg.Tenant).
		Str("user_id", cfg.UserID).
		Int("cookies", len(cookies)).
		Msg("browser config stored")

	respondJSON(w, http.StatusOK, map[string]any{"browserConfig": toConfigView(cfg)})
}
