package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/isis-master/internal/player"
	"github.com/taoyao-code/isis-master/internal/show"
	"github.com/taoyao-code/isis-master/internal/transport"
)

func fixed(name string, s Status) Checker {
	return CheckerFunc{CheckName: name, Fn: func(context.Context) CheckResult {
		return CheckResult{Status: s, Message: "mock", Latency: time.Millisecond}
	}}
}

func TestAggregator_Overall(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name     string
		checkers []Checker
		want     Status
		ready    bool
	}{
		{"全部健康", []Checker{fixed("serial", StatusHealthy), fixed("player", StatusHealthy)}, StatusHealthy, true},
		{"部分降级", []Checker{fixed("serial", StatusHealthy), fixed("redis", StatusDegraded)}, StatusDegraded, true},
		{"任一不健康", []Checker{fixed("redis", StatusDegraded), fixed("serial", StatusUnhealthy)}, StatusUnhealthy, false},
		{"无检查器", nil, StatusHealthy, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			agg := NewAggregator(tc.checkers...)
			assert.Equal(t, tc.want, agg.OverallStatus(ctx))
			assert.Equal(t, tc.ready, agg.Ready(ctx))
		})
	}
}

func TestAggregator_ReportAndAdd(t *testing.T) {
	agg := NewAggregator()
	agg.AddChecker(fixed("player", StatusHealthy))
	agg.AddChecker(fixed("bridge", StatusDegraded))
	r := agg.Report(context.Background())
	assert.Equal(t, StatusDegraded, r.Status)
	assert.Len(t, r.Checks, 2)
	assert.False(t, r.Timestamp.IsZero())
}

func TestHTTPRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHTTPRoutes(r, NewAggregator(fixed("serial", StatusUnhealthy)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var report HealthReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, StatusUnhealthy, report.Checks["serial"].Status)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLinkChecker(t *testing.T) {
	b := transport.NewBreaker(transport.Func(func(context.Context, []byte) error { return errors.New("EIO") }), 1, time.Hour)
	c := NewLinkChecker(b)
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)
	_ = b.Send(context.Background(), nil)
	res := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "open", res.Details["state"])
}

func TestPlayerChecker(t *testing.T) {
	st := show.Status{Program: "p", Player: player.Status{State: player.StateRunning, Emitted: 3, SendErrors: 1}}
	c := NewPlayerChecker(func() show.Status { return st })
	res := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Equal(t, "running", res.Message)

	st.Player.SendErrors = 5
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)
}

func TestReadiness(t *testing.T) {
	r := New()
	assert.False(t, r.Ready())
	r.SetLinkReady(true)
	r.SetStoreReady(true)
	assert.True(t, r.Ready())
}

func TestPoolUsage(t *testing.T) {
	cases := []struct {
		acquired, max int32
		want          Status
	}{
		{0, 0, StatusHealthy},
		{3, 10, StatusHealthy},
		{10, 11, StatusDegraded},
		{10, 10, StatusUnhealthy},
	}
	for _, c := range cases {
		got, _ := poolUsage(c.acquired, c.max)
		assert.Equal(t, c.want, got, "%d/%d", c.acquired, c.max)
	}
}

func TestStoreChecker(t *testing.T) {
	dir := t.TempDir()
	store := show.DirStore{Dir: dir}
	require.NoError(t, store.Save(context.Background(), "demo", []byte{0xC0}))

	res := NewStoreChecker(store).Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Equal(t, 1, res.Details["programs"])

	bad := show.DirStore{Dir: dir + "/demo.PKT"}
	assert.Equal(t, StatusUnhealthy, NewStoreChecker(bad).Check(context.Background()).Status)
}
