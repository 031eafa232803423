package scan

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/carverauto/vmready/pkg/logger"
	"github.com/stretchr/testify/assert"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

var errNoRawSockets = errors.New("operation not permitted")

func TestTCPConnectOpenPort(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}

			_ = conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port

	assert.True(t, NewTCPChecker(logger.NewTestLogger()).TCPConnect(context.Background(), "127.0.0.1", port, time.Second))
}

func TestTCPConnectClosedPort(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}

	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	assert.False(t, NewTCPChecker(logger.NewTestLogger()).TCPConnect(context.Background(), "127.0.0.1", port, 500*time.Millisecond))
}

func TestTCPConnectCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, NewTCPChecker(logger.NewTestLogger()).TCPConnect(ctx, "127.0.0.1", 1, time.Second))
}

func newFallbackPinger(out string, cmdErr error) (*ICMPPinger, *int) {
	calls := 0

	p := NewICMPPinger(logger.NewTestLogger())
	p.listen = func(string, string) (*icmp.PacketConn, error) {
		return nil, errNoRawSockets
	}
	p.command = func(context.Context, string, time.Duration) ([]byte, error) {
		calls++
		return []byte(out), cmdErr
	}

	return p, &calls
}

func TestPingFallsBackToCommand(t *testing.T) {
	t.Parallel()

	p, calls := newFallbackPinger("Reply from 192.168.0.12: bytes=32 time<1ms TTL=128\r\n", nil)

	assert.True(t, p.Ping(context.Background(), "192.168.0.12", 100*time.Millisecond))
	assert.Equal(t, 1, *calls)
}

func TestPingCommandWithoutReply(t *testing.T) {
	t.Parallel()

	p, _ := newFallbackPinger("Reply from 192.168.0.1: Destination host unreachable.\r\n", nil)
	assert.False(t, p.Ping(context.Background(), "192.168.0.12", 100*time.Millisecond))

	p, _ = newFallbackPinger("", errNoRawSockets)
	assert.False(t, p.Ping(context.Background(), "192.168.0.12", 100*time.Millisecond))
}

func TestPingRejectsNonIPv4(t *testing.T) {
	t.Parallel()

	p, calls := newFallbackPinger("TTL=64", nil)

	assert.False(t, p.Ping(context.Background(), "", time.Second))
	assert.False(t, p.Ping(context.Background(), "fe80::1", time.Second))
	assert.Equal(t, 0, *calls)
}

func TestPingOutputHasReply(t *testing.T) {
	t.Parallel()

	assert.True(t, pingOutputHasReply("64 bytes from 10.0.0.5: icmp_seq=1 ttl=64 time=0.3 ms"))
	assert.False(t, pingOutputHasReply("Request timed out."))
}

func TestIsOurEchoReply(t *testing.T) {
	t.Parallel()

	reply := func(typ icmp.Type, id, seq int) *icmp.Message {
		return &icmp.Message{Type: typ, Body: &icmp.Echo{ID: id, Seq: seq}}
	}

	assert.True(t, isOurEchoReply(reply(ipv4.ICMPTypeEchoReply, 7, 3), 7, 3, true))
	assert.False(t, isOurEchoReply(reply(ipv4.ICMPTypeEchoReply, 8, 3), 7, 3, true), "another process's ping")
	assert.False(t, isOurEchoReply(reply(ipv4.ICMPTypeEchoReply, 7, 2), 7, 3, true), "stale sequence")
	assert.False(t, isOurEchoReply(reply(ipv4.ICMPTypeEcho, 7, 3), 7, 3, true))
	assert.True(t, isOurEchoReply(reply(ipv4.ICMPTypeEchoReply, 4242, 3), 7, 3, false), "datagram socket id rewritten")
	assert.False(t, isOurEchoReply(reply(ipv4.ICMPTypeEchoReply, 4242, 2), 7, 3, false))
	assert.False(t, isOurEchoReply(&icmp.Message{Type: ipv4.ICMPTypeEchoReply, Body: &icmp.DefaultMessageBody{}}, 7, 3, true))
}
