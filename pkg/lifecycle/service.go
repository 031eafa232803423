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

// Package lifecycle runs long-lived services until a signal arrives.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/vmready/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// Service is anything with a blocking Start and a Stop that unblocks it.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type startResult struct {
	index int
	err   error
}

// Run starts every service and blocks until ctx ends, a signal arrives, or a
// service fails. Services are stopped in reverse order.
func Run(ctx context.Context, log logger.Logger, services ...Service) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	results := make(chan startResult, len(services))

	for i, svc := range services {
		go func() {
			results <- startResult{index: i, err: svc.Start(ctx)}
		}()
	}

	var runErr error

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown requested")
	case res := <-results:
		if res.err != nil && !errors.Is(res.err, context.Canceled) {
			runErr = fmt.Errorf("service %d failed: %w", res.index, res.err)
			log.Error().Err(res.err).Int("service", res.index).Msg("Service exited with error")
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()

	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Stop(stopCtx); err != nil {
			log.Error().Err(err).Int("service", i).Msg("Failed to stop service")
		}
	}

	return runErr
}
