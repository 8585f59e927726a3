package app

import (
	"context"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/isis-master/internal/config"
	"github.com/taoyao-code/isis-master/internal/metrics"
	"github.com/taoyao-code/isis-master/internal/protocol/isis"
	"github.com/taoyao-code/isis-master/internal/tcpserver"
	"github.com/taoyao-code/isis-master/internal/transport"
)

// Link 出站链路：串口（限速 + 熔断）与 TCP 桥接的组合
type Link struct {
	Transport transport.Transport
	Serial    *transport.Serial
	Breaker   *transport.Breaker
	Bridge    *tcpserver.Server
}

// Ready 至少有一条真实链路
func (l *Link) Ready() bool { return l.Serial != nil || l.Bridge != nil }

// NewInboundAdapter 入站方向：从站回传的包只做统计与调试日志
func NewInboundAdapter(appm *metrics.AppMetrics, log *zap.Logger) *isis.Adapter {
	a := isis.NewAdapter()
	a.SetFallback(func(p isis.Packet) error {
		appm.InboundPackets.WithLabelValues(p.Cmd().String()).Inc()
		log.Debug("inbound packet", zap.Stringer("cmd", p.Cmd()), zap.Stringer("target", isis.ResolvePacket(p)))
		return nil
	})
	a.OnError(func(raw []byte, err error) {
		appm.InboundDropped.Inc()
		log.Debug("inbound frame dropped", zap.Binary("raw", raw), zap.Error(err))
	})
	return a
}

// OpenLink 按配置打开串口与桥接；都未配置时退化为只记日志的空链路
func OpenLink(cfg cfgpkg.Config, appm *metrics.AppMetrics, log *zap.Logger) (*Link, error) {
	link := &Link{}
	var outs transport.Multi

	if cfg.Serial.Device != "" {
		s, err := transport.DialSerial(transport.SerialConfig{
			Device:      cfg.Serial.Device,
			Baud:        cfg.Serial.Baud,
			ReadTimeout: cfg.Serial.ReadTimeout,
		}, log)
		if err != nil {
			log.Error("serial open failed", zap.String("device", cfg.Serial.Device), zap.Error(err))
			return nil, err
		}
		link.Serial = s
		b := transport.NewBreaker(transport.NewPaced(s, cfg.Serial.BytesPerSec, 0), cfg.Serial.FailureLimit, cfg.Serial.OpenTimeout)
		b.SetStateChangeCallback(func(from, to transport.BreakerState) {
			log.Warn("serial link state changed", zap.Stringer("from", from), zap.Stringer("to", to))
		})
		link.Breaker = b
		outs = append(outs, b)
		log.Info("serial link opened", zap.String("device", cfg.Serial.Device), zap.Int("baud", cfg.Serial.Baud))
	}

	if cfg.Bridge.Enable {
		srv := tcpserver.New(cfg.Bridge, log)
		srv.SetReceiverFactory(func() transport.Receiver { return NewInboundAdapter(appm, log) })
		srv.SetMetricsCallbacks(
			func() { appm.BridgeAccepted.Inc() },
			func(n int) { appm.BridgeBytesRecv.Add(float64(n)) },
			func(n int) { appm.BridgeConns.Set(float64(n)) },
		)
		if err := srv.Start(); err != nil {
			link.Close(context.Background())
			return nil, err
		}
		link.Bridge = srv
		outs = append(outs, srv)
		log.Info("bridge listener started", zap.Stringer("addr", srv.Addr()))
	}

	switch len(outs) {
	case 0:
		log.Warn("no serial device or bridge configured, frames are only logged")
		link.Transport = transport.Func(func(ctx context.Context, framed []byte) error {
			log.Debug("frame", zap.Binary("framed", framed))
			return nil
		})
	case 1:
		link.Transport = outs[0]
	default:
		link.Transport = outs
	}
	return link, nil
}

// Listen 读取串口入站帧直到 ctx 取消
func (l *Link) Listen(ctx context.Context, appm *metrics.AppMetrics, log *zap.Logger) {
	if l.Serial == nil {
		return
	}
	if err := l.Serial.Listen(ctx, NewInboundAdapter(appm, log)); err != nil && ctx.Err() == nil {
		log.Error("serial listen stopped", zap.Error(err))
	}
}

// Close 关闭全部链路
func (l *Link) Close(ctx context.Context) {
	if l.Bridge != nil {
		_ = l.Bridge.Shutdown(ctx)
	}
	if l.Serial != nil {
		_ = l.Serial.Close()
	}
}
