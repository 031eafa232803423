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

// Package logger provides JSON structured logging using zerolog, with an
// optional OTLP tee for logs, metrics and traces.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level      string     `json:"level"`
	Debug      bool       `json:"debug"`
	Output     string     `json:"output"`
	TimeFormat string     `json:"time_format"`
	OTel       OTelConfig `json:"otel"`
}

// Impl is the zerolog backed Logger handed to components.
type Impl struct {
	logger zerolog.Logger
}

// New builds a Logger from config. When OTel is enabled the output is teed to
// the OTLP log exporter.
func New(ctx context.Context, config *Config) (*Impl, error) {
	if config == nil {
		config = DefaultConfig()
	}

	var output io.Writer = os.Stdout
	if config.Output == "stderr" {
		output = os.Stderr
	}

	level, err := parseLevel(config)
	if err != nil {
		return nil, err
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	if config.OTel.Enabled && config.OTel.Endpoint != "" {
		otelWriter, err := NewOTELWriter(ctx, config.OTel)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OTel log writer: %w", err)
		}

		output = NewMultiWriter(output, otelWriter)
	}

	return &Impl{
		logger: zerolog.New(output).Level(level).With().Timestamp().Logger(),
	}, nil
}

func parseLevel(config *Config) (zerolog.Level, error) {
	if config.Debug {
		return zerolog.DebugLevel, nil
	}

	if config.Level == "" {
		return zerolog.InfoLevel, nil
	}

	return zerolog.ParseLevel(config.Level)
}

// Named returns a copy of the logger tagged with the component name.
func (l *Impl) Named(component string) *Impl {
	return &Impl{logger: l.logger.With().Str("component", component).Logger()}
}

func (l *Impl) Trace() *zerolog.Event { return l.logger.Trace() }
func (l *Impl) Debug() *zerolog.Event { return l.logger.Debug() }
func (l *Impl) Info() *zerolog.Event  { return l.logger.Info() }
func (l *Impl) Warn() *zerolog.Event  { return l.logger.Warn() }
func (l *Impl) Error() *zerolog.Event { return l.logger.Error() }
func (l *Impl) Fatal() *zerolog.Event { return l.logger.Fatal() }
func (l *Impl) Panic() *zerolog.Event { return l.logger.Panic() }
func (l *Impl) With() zerolog.Context { return l.logger.With() }

func (l *Impl) WithComponent(component string) zerolog.Logger {
	return l.logger.With().Str("component", component).Logger()
}

func (l *Impl) WithFields(fields map[string]interface{}) zerolog.Logger {
	return l.logger.With().Fields(fields).Logger()
}

func (l *Impl) SetLevel(level zerolog.Level) {
	l.logger = l.logger.Level(level)
}

func (l *Impl) SetDebug(debug bool) {
	if debug {
		l.SetLevel(zerolog.DebugLevel)
	} else {
		l.SetLevel(zerolog.InfoLevel)
	}
}

// Shutdown flushes the OTel pipelines, if any were started.
func Shutdown() error {
	return ShutdownOTEL()
}
