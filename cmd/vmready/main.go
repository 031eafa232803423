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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/carverauto/vmready/pkg/config"
	"github.com/carverauto/vmready/pkg/lifecycle"
	"github.com/carverauto/vmready/pkg/logger"
	"github.com/carverauto/vmready/pkg/version"
)

const serviceName = "vmready"

var errFailedToLoadConfig = errors.New("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func defaultConfigPath() string {
	if runtime.GOOS == "windows" {
		return `C:\ProgramData\vmready\vmready.json`
	}

	return "/etc/vmready/vmready.json"
}

func run() error {
	configPath := flag.String("config", defaultConfigPath(), "Path to vmready config file")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetFullVersion())
		return nil
	}

	ctx := context.Background()

	// Step 1: Load configuration
	var cfg Config

	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	// Step 2: Create logger from loaded config
	root, err := lifecycle.CreateLogger(ctx, cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		if err := lifecycle.ShutdownLogger(); err != nil {
			log.Printf("Failed to shut down logger: %v", err)
		}
	}()

	mainLog := root.Named("main")

	if redacted, err := config.Redact(&cfg); err == nil {
		mainLog.Info().Interface("config", redacted).Str("version", version.GetFullVersion()).Msg("Loaded configuration")
	}

	// Step 3: Telemetry. Spans are always recorded; export needs an endpoint.
	initTelemetry(ctx, &cfg, mainLog)

	// Step 4: Wire the services
	a, err := newApp(&cfg, root)
	if err != nil {
		return err
	}

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		a.close(closeCtx)
	}()

	return lifecycle.Run(ctx, mainLog, a.services()...)
}

func initTelemetry(ctx context.Context, cfg *Config, log logger.Logger) {
	otelCfg := &cfg.Logging.OTel

	if _, err := logger.InitializeMetrics(ctx, logger.MetricsConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.GetVersion(),
		OTel:           otelCfg,
	}); err != nil && !errors.Is(err, logger.ErrOTelMetricsDisabled) {
		log.Warn().Err(err).Msg("Metrics export disabled")
	}

	if _, err := logger.InitializeTracing(ctx, logger.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.GetVersion(),
		OTel:           otelCfg,
	}); err != nil {
		log.Warn().Err(err).Msg("Tracing disabled")
	}
}
