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

// Package scan checks guest reachability from the host: ICMP echo and TCP
// connect. Neither runs anything inside the guest.
package scan

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/carverauto/vmready/pkg/logger"
)

const defaultTCPTimeout = 2 * time.Second

// TCPChecker dials a port and closes the connection immediately.
type TCPChecker struct {
	logger logger.Logger
}

func NewTCPChecker(log logger.Logger) *TCPChecker {
	return &TCPChecker{logger: log}
}

// TCPConnect reports whether a TCP handshake with ip:port completes within
// timeout. Every failure, including a canceled ctx, is reported as false.
func (c *TCPChecker) TCPConnect(ctx context.Context, ip string, port int, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = defaultTCPTimeout
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	var dialer net.Dialer

	conn, err := dialer.DialContext(probeCtx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		c.logger.Debug().
			Str("ip", ip).
			Int("port", port).
			Dur("elapsed", time.Since(start)).
			Err(err).
			Msg("TCP connect failed")

		return false
	}

	if err := conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("failed to close connection")
	}

	return true
}
