/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package api serves the vmready HTTP API.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	srHttp "github.com/carverauto/vmready/pkg/http"
	"github.com/carverauto/vmready/pkg/logger"
	"github.com/gorilla/mux"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// Deps are the services the API exposes. Watchdog may be nil.
type Deps struct {
	Registry     VMStore
	Orchestrator Orchestrator
	Scheduler    SchedulerStatus
	Watchdog     WatchdogStatus
	Logger       logger.Logger
}

// Server is a lifecycle.Service.
type Server struct {
	config   Config
	router   *mux.Router
	handler  http.Handler
	registry VMStore
	orch     Orchestrator
	sched    SchedulerStatus
	watchdog WatchdogStatus
	logger   logger.Logger

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

// NewServer expects cfg to be validated.
func NewServer(cfg *Config, deps Deps) *Server {
	s := &Server{
		config:   *cfg,
		router:   mux.NewRouter(),
		registry: deps.Registry,
		orch:     deps.Orchestrator,
		sched:    deps.Scheduler,
		watchdog: deps.Watchdog,
		logger:   deps.Logger,
	}

	s.setupRoutes()

	// Outside the router so unmatched routes are tagged too.
	s.handler = srHttp.CommonMiddleware(s.router, s.config.CORS, s.logger)

	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) setupRoutes() {
	s.router.Use(srHttp.APIKeyMiddlewareWithOptions(srHttp.APIKeyOptions{
		APIKey:       s.config.APIKey,
		ExcludePaths: []string{"/api/health"},
		Logger:       s.logger,
	}))

	r := s.router.PathPrefix("/api").Subrouter()

	r.HandleFunc("/health", s.getHealth).Methods(http.MethodGet)
	r.HandleFunc("/vms", s.listVMs).Methods(http.MethodGet)
	r.HandleFunc("/vms/{name}", s.getVM).Methods(http.MethodGet)
	r.HandleFunc("/vms/{name}/snapshots", s.getSnapshots).Methods(http.MethodGet)
	r.HandleFunc("/vms/{name}/revert", s.revertVM).Methods(http.MethodPost)
	r.HandleFunc("/vms/{name}/connect", s.connectVM).Methods(http.MethodPost)
	r.HandleFunc("/vms/{name}/reset", s.resetVM).Methods(http.MethodPost)
	r.HandleFunc("/vms/{name}/connection", s.getConnection).Methods(http.MethodGet)
	r.HandleFunc("/vms/{name}/expected_time", s.getExpectedTime).Methods(http.MethodGet)
}

// Start implements the lifecycle.Service interface. It blocks until Stop.
func (s *Server) Start(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.srv = srv
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting HTTP API")

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Stop implements the lifecycle.Service interface.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	return srv.Shutdown(ctx)
}

// Addr is the bound listen address once Start is running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln == nil {
		return ""
	}

	return s.ln.Addr().String()
}
