package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taoyao-code/isis-master/internal/player"
	"github.com/taoyao-code/isis-master/internal/protocol/isis"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

var playerStates = []player.State{player.StateIdle, player.StateRunning, player.StateWaiting, player.StateDone}

// AppMetrics 主控业务指标
type AppMetrics struct {
	PacketsSent     *prometheus.CounterVec // labels: cmd
	BytesSent       prometheus.Counter
	BadRecords      prometheus.Counter
	PlayerState     *prometheus.GaugeVec   // labels: state，当前状态为 1
	PlaybacksTotal  *prometheus.CounterVec // labels: result=ok|error
	BridgeAccepted  prometheus.Counter
	BridgeBytesRecv prometheus.Counter
	BridgeConns     prometheus.Gauge
	InboundPackets  *prometheus.CounterVec // labels: cmd
	InboundDropped  prometheus.Counter
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "isis_packets_sent_total",
			Help: "Packets emitted by the player, by command.",
		}, []string{"cmd"}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "isis_bytes_sent_total",
			Help: "Framed bytes handed to the transport.",
		}),
		BadRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "isis_bad_records_total",
			Help: "Canned records skipped as malformed.",
		}),
		PlayerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "isis_player_state",
			Help: "Player state (1 for the current state).",
		}, []string{"state"}),
		PlaybacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "isis_playbacks_total",
			Help: "Finished playbacks by result.",
		}, []string{"result"}),
		BridgeAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "isis_bridge_accept_total",
			Help: "Total accepted bridge connections.",
		}),
		BridgeBytesRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "isis_bridge_bytes_received_total",
			Help: "Total bytes received from bridges.",
		}),
		BridgeConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "isis_bridge_connections",
			Help: "Current bridge connections.",
		}),
		InboundPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "isis_inbound_packets_total",
			Help: "Packets decoded on the receive path, by command.",
		}, []string{"cmd"}),
		InboundDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "isis_inbound_dropped_total",
			Help: "Inbound frames or packets rejected by the codec or interpreter.",
		}),
	}
	reg.MustRegister(m.PacketsSent, m.BytesSent, m.BadRecords, m.PlayerState, m.PlaybacksTotal,
		m.BridgeAccepted, m.BridgeBytesRecv, m.BridgeConns, m.InboundPackets, m.InboundDropped)
	m.SetPlayerState(player.StateIdle)
	return m
}

// ObserveSent 播放器发包回调
func (m *AppMetrics) ObserveSent(cmd isis.Command, n int) {
	m.PacketsSent.WithLabelValues(cmd.String()).Inc()
	m.BytesSent.Add(float64(n))
}

// ObserveBadRecord 坏记录回调
func (m *AppMetrics) ObserveBadRecord() { m.BadRecords.Inc() }

// SetPlayerState 状态回调
func (m *AppMetrics) SetPlayerState(s player.State) {
	for _, st := range playerStates {
		v := 0.0
		if st == s {
			v = 1
		}
		m.PlayerState.WithLabelValues(st.String()).Set(v)
	}
}

// ObservePlayback 一次播放结束
func (m *AppMetrics) ObservePlayback(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.PlaybacksTotal.WithLabelValues(result).Inc()
}

// Attach 将播放器回调接到指标
func (m *AppMetrics) Attach(p *player.Player) {
	p.SetMetricsCallbacks(m.ObserveSent, m.ObserveBadRecord, m.SetPlayerState)
}
