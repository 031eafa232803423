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

package scan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/carverauto/vmready/pkg/logger"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

const (
	defaultPingTimeout = time.Second
	protocolICMP       = 1
	echoPayload        = "vmready"
)

var (
	errNotIPv4     = errors.New("not an IPv4 address")
	errNoEchoReply = errors.New("no echo reply")
)

// listenPacketFunc opens an ICMP socket. Swapped in tests.
type listenPacketFunc func(network, address string) (*icmp.PacketConn, error)

// pingCommandFunc runs the OS ping tool for one echo.
type pingCommandFunc func(ctx context.Context, ip string, timeout time.Duration) ([]byte, error)

// ICMPPinger sends a single echo request per call. It tries an unprivileged
// datagram socket, then a raw socket, then the OS ping command.
type ICMPPinger struct {
	logger  logger.Logger
	listen  listenPacketFunc
	command pingCommandFunc
	seq     atomic.Uint32
}

func NewICMPPinger(log logger.Logger) *ICMPPinger {
	return &ICMPPinger{
		logger:  log,
		listen:  icmp.ListenPacket,
		command: runPingCommand,
	}
}

// Ping reports whether ip answered an ICMP echo within timeout.
func (p *ICMPPinger) Ping(ctx context.Context, ip string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := net.ParseIP(ip).To4()
	if target == nil {
		p.logger.Debug().Str("ip", ip).Err(errNotIPv4).Msg("Ping skipped")
		return false
	}

	var sockErr error

	for _, network := range []string{"udp4", "ip4:icmp"} {
		err := p.echo(ctx, network, target)
		if err == nil {
			return true
		}

		sockErr = err

		// A socket that opened but got no answer is a real miss.
		if errors.Is(err, errNoEchoReply) {
			return false
		}
	}

	p.logger.Debug().Err(sockErr).Str("ip", ip).Msg("ICMP sockets unavailable, using ping command")

	out, err := p.command(ctx, ip, timeout)
	if err != nil {
		return false
	}

	return pingOutputHasReply(string(out))
}

func (p *ICMPPinger) echo(ctx context.Context, network string, target net.IP) error {
	conn, err := p.listen(network, "0.0.0.0")
	if err != nil {
		return fmt.Errorf("listen %s: %w", network, err)
	}
	defer conn.Close()

	id := os.Getpid() & 0xffff
	seq := int(p.seq.Add(1) & 0xffff)

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  seq,
			Data: []byte(echoPayload),
		},
	}

	wb, err := msg.Marshal(nil)
	if err != nil {
		return err
	}

	var dst net.Addr = &net.IPAddr{IP: target}
	if network == "udp4" {
		dst = &net.UDPAddr{IP: target}
	}

	if _, err := conn.WriteTo(wb, dst); err != nil {
		return fmt.Errorf("write %s: %w", network, err)
	}

	deadline, _ := ctx.Deadline()
	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}

	rb := make([]byte, 1500)

	for {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			return errNoEchoReply
		}

		if !sameHost(peer, target) {
			continue
		}

		reply, err := icmp.ParseMessage(protocolICMP, rb[:n])
		if err != nil {
			continue
		}

		// Datagram sockets get their ID rewritten by the kernel.
		if isOurEchoReply(reply, id, seq, network != "udp4") {
			return nil
		}
	}
}

// isOurEchoReply reports whether msg answers the echo with the given seq,
// and with the given id when matchID is set. Raw sockets see every reply
// on the host, including other processes' pings.
func isOurEchoReply(msg *icmp.Message, id, seq int, matchID bool) bool {
	if msg.Type != ipv4.ICMPTypeEchoReply {
		return false
	}

	body, ok := msg.Body.(*icmp.Echo)
	if !ok || body.Seq != seq {
		return false
	}

	return !matchID || body.ID == id
}

func sameHost(peer net.Addr, target net.IP) bool {
	switch a := peer.(type) {
	case *net.IPAddr:
		return a.IP.Equal(target)
	case *net.UDPAddr:
		return a.IP.Equal(target)
	default:
		return false
	}
}

func runPingCommand(ctx context.Context, ip string, timeout time.Duration) ([]byte, error) {
	ms := strconv.FormatInt(timeout.Milliseconds(), 10)

	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "ping", "-n", "1", "-w", ms, ip).Output()
	}

	secs := strconv.Itoa(max(1, int(timeout.Round(time.Second)/time.Second)))

	return exec.CommandContext(ctx, "ping", "-c", "1", "-W", secs, ip).Output()
}

// pingOutputHasReply looks for the TTL field every ping implementation prints
// on a successful reply. Windows also prints "Destination host unreachable"
// with exit code 0, which carries no TTL.
func pingOutputHasReply(out string) bool {
	return strings.Contains(strings.ToLower(out), "ttl=")
}
