package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/and161185/csm-transport/model"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "collector.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteStore_SaveMetrics(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	req := model.NewMetricRequest([]model.Metric{
		model.NewMetricBuilder("a").SetZoneID(1).SetCdbCallStartTimestamp(5).SetElapsedTimestamp(9).Build(),
		model.NewMetricBuilder("b").SetRequestGroupID("g").Build(),
	}, "1.0", 235)
	require.NoError(t, st.SaveMetrics(ctx, req))
	require.NoError(t, st.SaveMetrics(ctx, model.MetricRequest{}))

	ids, err := st.ImpressionIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.Feedbacks)
}

func TestSQLiteStore_SaveLogs(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	logs := []model.RemoteLogRecords{{
		Context: model.RemoteLogContext{Version: "1", SessionID: "s", ExceptionType: "*errors.errorString"},
		Logs:    []model.RemoteLogRecord{{Level: model.LogLevelError, Messages: []string{"a", "b", "c"}}},
	}}
	require.NoError(t, st.SaveLogs(ctx, logs))

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.LogMessages)
	require.Zero(t, stats.Feedbacks)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collector.db")
	ctx := context.Background()

	st, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	req := model.NewMetricRequest([]model.Metric{model.NewMetricBuilder("a").Build()}, "1", 1)
	require.NoError(t, st.SaveMetrics(ctx, req))
	require.NoError(t, st.Close())

	st, err = NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Ping(ctx))
	ids, err := st.ImpressionIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, ids)
}

func TestSQLiteStore_BadPath(t *testing.T) {
	_, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "x.db"))
	require.Error(t, err)
}
