package service_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/CZERTAINLY/cronwatch/internal/model"
	"github.com/CZERTAINLY/cronwatch/internal/service"
	"github.com/stretchr/testify/require"
)

func TestLogFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "backup.log")

	require.NoError(t, service.LogFile{}.Append(t.Context(), path, "first run\n[EOF]\n"))
	require.NoError(t, service.LogFile{}.Append(t.Context(), path, "second run\n[EOF]\n"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "first run\n[EOF]\nsecond run\n[EOF]\n", string(b))
}

func TestLogFile_Fail(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "missing", "backup.log")

	err := service.LogFile{}.Append(t.Context(), path, "report")
	require.Error(t, err)
	var derr *model.DeliveryError
	require.ErrorAs(t, err, &derr)
	require.Equal(t, "logfile", derr.Sink)
	require.Equal(t, path, derr.Target)
	require.ErrorIs(t, err, os.ErrNotExist)
}
