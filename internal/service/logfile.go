package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/CZERTAINLY/cronwatch/internal/model"
)

const sinkLogfile = "logfile"

// LogFile appends reports to a file, creating it when missing
type LogFile struct{}

func (LogFile) Append(ctx context.Context, path string, text string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return deliveryError(path, err)
	}
	_, err = io.WriteString(f, text)
	if err = errors.Join(err, f.Close()); err != nil {
		return deliveryError(path, err)
	}
	slog.DebugContext(ctx, "report logged", "path", path, "size", len(text))
	return nil
}

func deliveryError(path string, err error) error {
	return &model.DeliveryError{Sink: sinkLogfile, Target: path, ExitCode: -1, Err: err}
}
