package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"

	"github.com/CZERTAINLY/cronwatch/internal/classify"
	"github.com/CZERTAINLY/cronwatch/internal/log"
	"github.com/CZERTAINLY/cronwatch/internal/model"
	"github.com/CZERTAINLY/cronwatch/internal/report"
	"github.com/google/uuid"
)

// Watcher runs a command, checks its output and delivers the report
type Watcher struct {
	Runner *Runner
	Mailer model.Mailer
	Log    model.Appender
	User   string
	Host   string
}

// Outcome describes a finished watch
type Outcome struct {
	RunID    string
	ExitCode int
	TimedOut bool
	Result   classify.Result
	Report   report.Report
	// Logfile is the path the report was appended to
	Logfile string
	Mailed  bool
}

// NewWatcher returns a Watcher delivering through sendmail and the local
// file system
func NewWatcher() *Watcher {
	host := hostname()
	return &Watcher{
		Runner: NewRunner(),
		Mailer: Sendmail{Host: host},
		Log:    LogFile{},
		User:   currentUser(),
		Host:   host,
	}
}

// Watch runs args[0] with args[1:] according to rules. Errors before the
// report is built abort the run. Delivery errors are joined and returned
// together with a complete Outcome.
func (w *Watcher) Watch(ctx context.Context, args []string, rules *model.RuleSet) (Outcome, error) {
	if len(args) == 0 {
		return Outcome{}, model.ErrMissingExecutable
	}

	out := Outcome{RunID: uuid.NewString()}
	ctx = log.RunAttrs(ctx, rules.Tag, os.Getpid(), out.RunID)

	res, err := w.Runner.Run(ctx, Command{
		Path:    args[0],
		Args:    args[1:],
		Timeout: rules.Timeout,
	})
	if err != nil {
		return out, err
	}
	defer func() {
		if err := res.Close(); err != nil {
			slog.WarnContext(ctx, "removing captured output", "error", err)
		}
	}()
	out.ExitCode = res.ExitCode
	out.TimedOut = res.TimedOut

	out.Result, err = classify.Classify(res.Output, res.ExitCode, rules)
	if err != nil {
		return out, fmt.Errorf("classifying output of %s: %w", args[0], err)
	}

	started, finished := res.Started.Local(), res.Stopped.Local()
	out.Report = report.Build(report.Run{
		Command:  args,
		Started:  started.Format(report.TimeLayout),
		Finished: finished.Format(report.TimeLayout),
		ExitCode: res.ExitCode,
	}, out.Result, rules)

	slog.InfoContext(ctx, "command finished",
		"path", args[0],
		"exit_code", res.ExitCode,
		"timed_out", res.TimedOut,
		"duration", finished.Sub(started).String(),
		"lines", out.Result.LineCount,
		"findings", len(out.Result.Findings),
	)
	for _, f := range out.Result.Findings {
		slog.DebugContext(ctx, "finding", "kind", f.Kind.String(), "message", f.Message())
	}

	var errs []error
	if path := rules.LogfilePath(finished); path != "" {
		if err := w.Log.Append(ctx, path, out.Report.Log); err != nil {
			errs = append(errs, err)
		} else {
			out.Logfile = path
		}
	}

	if (!out.Result.OK() || rules.EmailSuccess) && len(rules.EmailTo) > 0 {
		from := rules.EmailFrom
		if from == "" {
			from = w.User + "@" + w.Host
		}
		err := w.Mailer.Send(ctx, rules.Sendmail, model.Mail{
			From:    from,
			To:      rules.EmailTo,
			Subject: report.Subject(w.User, w.Host, args),
			Body:    out.Report.Email,
			Date:    finished,
		})
		if err != nil {
			errs = append(errs, err)
		} else {
			out.Mailed = true
		}
	}

	return out, errors.Join(errs...)
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, env := range []string{"LOGNAME", "USER"} {
		if name := os.Getenv(env); name != "" {
			return name
		}
	}
	return "unknown"
}

func hostname() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "localhost"
	}
	return host
}
