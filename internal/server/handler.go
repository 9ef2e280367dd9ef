package server

import (
	"html/template"
	"io"
	"log/slog"
	"net/http"

	"powgate/internal/blacklist"
	"powgate/internal/circuitid"
	"powgate/internal/config"
	"powgate/internal/pow"
	"powgate/internal/session"
	"powgate/internal/system"
)

const circuitIDHeader = "X-Circuit-Id"

// maxSolutionBodyBytes bounds how much of a POST body the challenge
// endpoint will read, well above any legitimate solution wire format.
const maxSolutionBodyBytes = 4096

type handler struct {
	cfg       *config.Config
	logger    *slog.Logger
	cpuGauge  *system.Gauge
	blacklist *blacklist.Blacklist
	sessions  session.Cache
	tmpl      *template.Template
}

// serveChallengePage issues a fresh challenge and renders the interactive
// solver page.
func (h *handler) serveChallengePage(w http.ResponseWriter, r *http.Request) {
	challenge, err := pow.NewChallenge(h.logger, &h.cfg.Pow, h.cpuGauge.Load())
	if err != nil {
		h.logger.Error("failed to issue challenge", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := challengePage{
		SubmitPath:     h.cfg.Routes.Challenge,
		Challenge:      challenge.ChallengeString(),
		DifficultyBits: challenge.DifficultyBits,
		ExpiresAt:      challenge.ExpiresAt,
		IntegrityTag:   challenge.IntegrityB64,
	}
	if err := h.tmpl.Execute(w, page); err != nil {
		h.logger.Error("failed to render challenge page", "error", err)
	}
}

// verifyChallenge validates a submitted solution and, on success, admits
// the requesting circuit into the session cache.
func (h *handler) verifyChallenge(w http.ResponseWriter, r *http.Request) {
	circuitIDStr := r.Header.Get(circuitIDHeader)
	circuitID, err := circuitid.Decode(circuitIDStr)
	if err != nil {
		h.logger.Error("missing or malformed circuit id", "error", err)
		http.Error(w, "missing circuit identity", http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSolutionBodyBytes))
	if err != nil {
		h.logger.Debug("failed to read solution body", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	solution, solErr := pow.ParseSolution(body)
	if solErr != nil {
		h.logRejection(solErr, circuitID)
		http.Error(w, http.StatusText(solErr.StatusCode()), solErr.StatusCode())
		return
	}

	if !h.blacklist.TryInsert(solution.Challenge) {
		solErr := pow.NewBlacklistedError()
		h.logRejection(solErr, circuitID)
		http.Error(w, http.StatusText(solErr.StatusCode()), solErr.StatusCode())
		return
	}

	now, err := pow.NowUnix()
	if err != nil {
		h.logger.Error("system clock is before the Unix epoch", "error", err)
		now = 0
	}
	if solErr := solution.VerifyIntegrityAndWork(now); solErr != nil {
		h.logRejection(solErr, circuitID)
		http.Error(w, http.StatusText(solErr.StatusCode()), solErr.StatusCode())
		return
	}

	h.sessions.Set(r.Context(), circuitID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// checkSession is the Nginx auth_request target: 204 when the circuit
// already holds an admitted session, 401 otherwise. A missing or
// unparseable circuit id is a server-side misconfiguration (Nginx failed
// to set the header), not a client auth failure, so it reports 500.
func (h *handler) checkSession(w http.ResponseWriter, r *http.Request) {
	circuitID, err := circuitid.Decode(r.Header.Get(circuitIDHeader))
	if err != nil {
		h.logger.Error("missing or malformed circuit id", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if h.sessions.Contains(r.Context(), circuitID) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusUnauthorized)
}

func (h *handler) logRejection(err *pow.SolutionError, circuitID uint32) {
	if err.IsClientInduced() {
		h.logger.Debug("rejected solution", "reason", err.Error(), "circuit_id", circuitID)
		return
	}
	h.logger.Error("rejected solution", "reason", err.Error(), "circuit_id", circuitID)
}
