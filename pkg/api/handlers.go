package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	srHttp "github.com/carverauto/vmready/pkg/http"
	"github.com/carverauto/vmready/pkg/idle"
	"github.com/carverauto/vmready/pkg/models"
	"github.com/carverauto/vmready/pkg/orchestrator"
	"github.com/carverauto/vmready/pkg/poller"
	"github.com/carverauto/vmready/pkg/version"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 16

var (
	errMissingSnapshot = errors.New("snapshot is required")
	errUnknownOp       = fmt.Errorf("op must be one of %v", orchestrator.Ops())
)

// RevertRequest is the body of POST /api/vms/{name}/revert.
type RevertRequest struct {
	Snapshot string `json:"snapshot"`
}

// VMView is a VM's state plus whether the hypervisor reports it running.
// Running is omitted when the hypervisor could not be asked.
type VMView struct {
	models.VMState
	Running *bool `json:"running,omitempty"`
}

// ExpectedTimeResponse reports the average duration of recent operations.
type ExpectedTimeResponse struct {
	Name    string  `json:"name"`
	Op      string  `json:"op"`
	Seconds float64 `json:"seconds"`
	Known   bool    `json:"known"`
}

// HealthResponse summarises the background services.
type HealthResponse struct {
	Status    string         `json:"status"`
	Version   string         `json:"version"`
	VMs       int            `json:"vms"`
	Scheduler *poller.Status `json:"scheduler,omitempty"`
	Watchdog  *idle.Status   `json:"watchdog,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: version.GetFullVersion(),
		VMs:     len(s.registry.List()),
	}

	if s.sched != nil {
		st := s.sched.Status()
		resp.Scheduler = &st
	}

	if s.watchdog != nil {
		st := s.watchdog.Status()
		resp.Watchdog = &st
	}

	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) listVMs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.registry.List())
}

func (s *Server) getVM(w http.ResponseWriter, r *http.Request) {
	st, err := s.registry.Get(mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view := VMView{VMState: st}

	if on, err := s.orch.Running(r.Context(), st.Name); err == nil {
		view.Running = &on
	} else {
		s.logger.Debug().Err(err).Str("vm", st.Name).Msg("Running state unavailable")
	}

	s.writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) getSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.orch.Snapshots(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if snaps == nil {
		snaps = []string{}
	}

	s.writeJSON(w, r, http.StatusOK, snaps)
}

func (s *Server) revertVM(w http.ResponseWriter, r *http.Request) {
	var req RevertRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		s.writeErrorStatus(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	if req.Snapshot == "" {
		s.writeErrorStatus(w, r, http.StatusBadRequest, errMissingSnapshot)
		return
	}

	// The flow outlives the request.
	st, err := s.orch.Revert(context.WithoutCancel(r.Context()), mux.Vars(r)["name"], req.Snapshot)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusAccepted, st)
}

func (s *Server) connectVM(w http.ResponseWriter, r *http.Request) {
	st, err := s.orch.Connect(context.WithoutCancel(r.Context()), mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if st.Phase == models.PhaseReady {
		s.writeJSON(w, r, http.StatusOK, st)
		return
	}

	s.writeJSON(w, r, http.StatusAccepted, st)
}

func (s *Server) resetVM(w http.ResponseWriter, r *http.Request) {
	st, err := s.orch.Reset(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, st)
}

func (s *Server) getConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.orch.Connection(mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, conn)
}

func (s *Server) getExpectedTime(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	op := r.URL.Query().Get("op")
	switch op {
	case "":
		op = orchestrator.OpRevert
	default:
		if !slices.Contains(orchestrator.Ops(), op) {
			s.writeErrorStatus(w, r, http.StatusBadRequest, errUnknownOp)
			return
		}
	}

	if _, err := s.registry.Get(name); err != nil {
		s.writeError(w, r, err)
		return
	}

	avg, ok := s.orch.ExpectedDuration(name, op)

	s.writeJSON(w, r, http.StatusOK, ExpectedTimeResponse{
		Name:    name,
		Op:      op,
		Seconds: avg.Seconds(),
		Known:   ok,
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidVM), errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrInvalidSnapshot):
		return http.StatusNotFound
	case errors.Is(err, models.ErrBusy), errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorStatus(w, r, statusFor(err), err)
}

func (s *Server) writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}

	s.writeJSON(w, r, status, ErrorResponse{
		Error:     err.Error(),
		RequestID: srHttp.RequestIDFromContext(r.Context()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Error encoding response")
	}
}
