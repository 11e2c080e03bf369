package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/CZERTAINLY/cronwatch/internal/log"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var ret []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		ret = append(ret, m)
	}
	return ret
}

func TestContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, false)

	ctx := log.RunAttrs(t.Context(), "backup", 42, "run-1")
	logger.InfoContext(ctx, "started", "exit_code", 0)
	logger.With("sink", "mail").InfoContext(ctx, "sent")
	logger.DebugContext(ctx, "hidden")

	records := decode(t, &buf)
	require.Len(t, records, 2)
	for _, r := range records {
		run, ok := r["cronwatch"].(map[string]any)
		require.True(t, ok, r)
		require.Equal(t, "backup", run["tag"])
		require.Equal(t, float64(42), run["pid"])
		require.Equal(t, "run-1", run["run_id"])
	}
	require.Equal(t, "mail", records[1]["sink"])
}

func TestContextAttrs_NoAliasing(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, true)

	base := log.ContextAttrs(context.Background(), slog.String("a", "1"))
	one := log.ContextAttrs(base, slog.String("b", "2"))
	two := log.ContextAttrs(base, slog.String("c", "3"))

	logger.DebugContext(one, "one")
	logger.DebugContext(two, "two")

	records := decode(t, &buf)
	require.Len(t, records, 2)
	require.Equal(t, "2", records[0]["b"])
	require.NotContains(t, records[0], "c")
	require.Equal(t, "3", records[1]["c"])
	require.NotContains(t, records[1], "b")
}
