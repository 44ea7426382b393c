package agent

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/and161185/csm-transport/internal/config"
	"github.com/and161185/csm-transport/internal/csm"
	"github.com/and161185/csm-transport/internal/server"
	"github.com/and161185/csm-transport/storage/inmemory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T, addr string) *config.AgentConfig {
	t.Helper()
	dir := t.TempDir()
	return &config.AgentConfig{
		ServerAddr:             addr,
		SendInterval:           1,
		ClientTimeout:          2,
		RateLimit:              2,
		Logger:                 zap.NewNop().Sugar(),
		CsmEnabled:             true,
		BatchSize:              5,
		QueueDir:               dir,
		MetricsDir:             filepath.Join(dir, "metrics"),
		CsmQueueFilename:       "csm",
		CsmQueueMaxBytes:       48 * 1024,
		RemoteLogQueueFilename: "logs",
		RemoteLogQueueMaxBytes: 64 * 1024,
		RemoteLogLevel:         "warn",
		ProfileID:              235,
	}
}

func newCollector(t *testing.T) (*inmemory.MemStorage, string) {
	t.Helper()
	st := inmemory.NewMemStorage()
	ts := httptest.NewServer(server.NewServer(st, &config.ServerConfig{}).Router())
	t.Cleanup(ts.Close)
	return st, ts.URL
}

func TestAgent_SendsCompletedCalls(t *testing.T) {
	st, url := newCollector(t)
	a, err := New(testConfig(t, url))
	require.NoError(t, err)
	defer a.Close()

	req := csm.CallRequest{RequestGroupID: "g", Slots: []csm.Slot{{ImpressionID: "a"}, {ImpressionID: "b"}}}
	a.Listener().OnCallStarted(req)
	a.Listener().OnCallFinished(req, []string{"b"})
	a.Listener().OnBidConsumed("b", false)

	a.Flush(2 * time.Second)

	rows := st.Feedbacks()
	require.Len(t, rows, 2)
	ids := []string{rows[0].ImpressionID, rows[1].ImpressionID}
	require.ElementsMatch(t, []string{"a", "b"}, ids)
	require.Equal(t, 235, rows[0].ProfileID)
}

func TestAgent_KeepsRecordsWhileCollectorIsDown(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.ClientTimeout = 1
	a, err := New(cfg)
	require.NoError(t, err)

	sim := a.Simulator()
	for i := 0; i < 20; i++ {
		sim.SimulateCall()
	}
	queued := a.metricQueue.Size()
	require.Greater(t, queued, 0)
	require.NoError(t, a.Close())

	st, url := newCollector(t)
	cfg.ServerAddr = url
	a, err = New(cfg)
	require.NoError(t, err)
	defer a.Close()
	require.Equal(t, queued, a.metricQueue.Size(), "queued metrics survive a restart")

	a.Flush(2 * time.Second)
	require.Len(t, st.Feedbacks(), queued)
	require.Equal(t, 0, a.metricQueue.Size())
}

func TestAgent_ShipsWarnings(t *testing.T) {
	st, url := newCollector(t)
	a, err := New(testConfig(t, url))
	require.NoError(t, err)
	defer a.Close()

	a.logger.Info("stays local")
	a.logger.Warn("shipped")
	a.Flush(2 * time.Second)

	logs := st.Logs()
	require.Len(t, logs, 1)
	require.Equal(t, "shipped", logs[0].Message)
	require.Equal(t, "csm-agent", logs[0].BundleID)
}

func TestAgent_Run(t *testing.T) {
	st, url := newCollector(t)
	cfg := testConfig(t, url)
	a, err := New(cfg)
	require.NoError(t, err)

	// calls made before start-up are pushed by it, finished or not
	impressions := 0
	for i := 0; i < 5; i++ {
		impressions += len(a.Simulator().SimulateCall().Slots)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return len(st.Feedbacks()) == impressions }, 3*time.Second, 20*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	files, err := filepath.Glob(filepath.Join(cfg.MetricsDir, "*.csm"))
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestNew_BadRemoteLogLevel(t *testing.T) {
	cfg := testConfig(t, "http://localhost")
	cfg.RemoteLogLevel = "loud"
	_, err := New(cfg)
	require.Error(t, err)
}
