package testutil

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandlerKeepsDerivedAttrs(t *testing.T) {
	logger, handler := NewTestLogger(t)
	logger.With(slog.String("component", "pipeline")).Info("step_complete", slog.String("step", "taiex"))
	logger.Warn("source_schema_mismatch")

	records := handler.Find("step_complete")
	require.Len(t, records, 1)
	assert.Equal(t, "pipeline", records[0].Attrs["component"])
	assert.Equal(t, "taiex", records[0].Attrs["step"])
	assert.Equal(t, 1, handler.Count(slog.LevelWarn))
	assert.True(t, handler.ContainsMessage("schema"))
}

func TestStatsSeriesIsNewestFirst(t *testing.T) {
	rows := StatsSeries([]string{"2024-01-02", "2024-01-03"}, []float64{31.5, 31.52})
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01-03", rows[0].Date)
	assert.Equal(t, 31.52, *rows[0].UsdTwd)
}

func TestRecordingNotifier(t *testing.T) {
	n := &RecordingNotifier{}
	require.NoError(t, n.Notify(context.Background(), "a"))
	n.Fail = true
	assert.ErrorIs(t, n.Notify(context.Background(), "b"), ErrDelivery)
	assert.Equal(t, []string{"a", "b"}, n.Messages())
}
