package tcpserver

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/isis-master/internal/config"
	"github.com/taoyao-code/isis-master/internal/protocol/isis"
	"github.com/taoyao-code/isis-master/internal/protocol/slip"
	"github.com/taoyao-code/isis-master/internal/transport"
)

func startBridge(t *testing.T, cfg cfgpkg.BridgeConfig) *Server {
	t.Helper()
	cfg.Addr = "127.0.0.1:0"
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = time.Second
	}
	s := New(cfg, nil)
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func dial(t *testing.T, s *Server) net.Conn {
	t.Helper()
	c, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestServer_BroadcastToAllBridges(t *testing.T) {
	s := startBridge(t, cfgpkg.BridgeConfig{MaxConnections: 4})
	a, b := dial(t, s), dial(t, s)
	require.Eventually(t, func() bool { return s.Conns() == 2 }, time.Second, 5*time.Millisecond)

	frame := slip.Encode(isis.MustSerialize(isis.FillRGB(isis.AddressAllCall, isis.Once, 0xC0, 0xDB, 1)))
	require.NoError(t, s.Send(context.Background(), frame))

	for _, c := range []net.Conn{a, b} {
		_ = c.SetReadDeadline(time.Now().Add(time.Second))
		got := make([]byte, len(frame))
		_, err := io.ReadFull(c, got)
		require.NoError(t, err)
		assert.Equal(t, frame, got)
	}
}

func TestServer_SendWithoutBridges(t *testing.T) {
	s := startBridge(t, cfgpkg.BridgeConfig{})
	assert.NoError(t, s.Send(context.Background(), []byte{slip.FEND, 0x00, slip.FEND}))
}

type packetSink struct {
	mu   sync.Mutex
	pkts []isis.Packet
}

func (p *packetSink) add(pkt isis.Packet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pkts = append(p.pkts, pkt)
	return nil
}

func (p *packetSink) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pkts)
}

func TestServer_InboundPerConnectionDecoder(t *testing.T) {
	sink := &packetSink{}
	s := New(cfgpkg.BridgeConfig{Addr: "127.0.0.1:0", MaxConnections: 4}, nil)
	s.SetReceiverFactory(func() transport.Receiver {
		ad := isis.NewAdapter()
		ad.SetFallback(sink.add)
		return ad
	})
	var recvBytes int
	var mu sync.Mutex
	s.SetMetricsCallbacks(nil, func(n int) { mu.Lock(); recvBytes += n; mu.Unlock() }, nil)
	require.NoError(t, s.Start())
	defer s.Shutdown(context.Background())

	a, b := dial(t, s), dial(t, s)
	frame := slip.Encode(isis.MustSerialize(isis.ResetClock(7)))
	// 两个连接交错发送半帧，解码器不得串流
	_, _ = a.Write(frame[:2])
	_, _ = b.Write(frame[:3])
	_, _ = a.Write(frame[2:])
	_, _ = b.Write(frame[3:])

	require.Eventually(t, func() bool { return sink.len() == 2 }, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, 2*len(frame), recvBytes)
	mu.Unlock()
}

func TestServer_AdmissionLimit(t *testing.T) {
	s := New(cfgpkg.BridgeConfig{Addr: "127.0.0.1:0"}, nil)
	s.admission = NewAdmission(1, 0, 0, 50*time.Millisecond)
	require.NoError(t, s.Start())
	defer s.Shutdown(context.Background())
	dial(t, s)
	require.Eventually(t, func() bool { return s.Conns() == 1 }, time.Second, 5*time.Millisecond)

	c := dial(t, s)
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := c.Read(make([]byte, 1))
	assert.Error(t, err, "second bridge should be closed by the server")
	assert.Equal(t, int64(1), s.Stats().RejectedTotal)
}

func TestServer_ShutdownClosesBridges(t *testing.T) {
	s := New(cfgpkg.BridgeConfig{Addr: "127.0.0.1:0"}, nil)
	var conns []int
	var mu sync.Mutex
	s.SetMetricsCallbacks(nil, nil, func(n int) { mu.Lock(); conns = append(conns, n); mu.Unlock() })
	require.NoError(t, s.Start())
	c := dial(t, s)
	require.Eventually(t, func() bool { return s.Conns() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	_ = c.SetReadDeadline(time.Now().Add(time.Second))
	_, err := c.Read(make([]byte, 1))
	assert.Error(t, err)
	mu.Lock()
	assert.Equal(t, []int{1, 0}, conns)
	mu.Unlock()
}
