package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingExecutable = errors.New("missing command line argument: executable")
	ErrPreambleConflict  = errors.New("preamble and preamble_file are mutually exclusive")
	ErrNotADirectory     = errors.New("not a directory")
)

// Kind classifies fatal errors of a cronwatch run
type Kind int

const (
	KindConfig Kind = iota + 1
	KindRun
	KindDelivery
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindRun:
		return "run"
	case KindDelivery:
		return "delivery"
	default:
		return "unknown"
	}
}

// KindOf returns the kind of the first cronwatch error found in err's tree, or 0.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return 0
}

// ConfigError is a problem with the configuration, detected before any
// process is started. Section and Setting are empty when the error is not
// tied to a particular place in the file.
type ConfigError struct {
	Path    string
	Section string
	Setting string
	Err     error
	// Details are set for schema violations
	Details []CueErrorDetail
}

func (e *ConfigError) Kind() Kind { return KindConfig }

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	switch {
	case e.Section != "" && e.Setting != "":
		fmt.Fprintf(&b, ": %s.%s", e.Section, e.Setting)
	case e.Section != "":
		fmt.Fprintf(&b, ": %s", e.Section)
	}
	if len(e.Details) > 0 {
		fmt.Fprintf(&b, ": %s", e.Details[0].Message)
	} else {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// RunError means the watched executable could not be started.
type RunError struct {
	Path string
	Err  error
}

func (e *RunError) Kind() Kind { return KindRun }

func (e *RunError) Error() string {
	return fmt.Sprintf("could not run %s: %v", e.Path, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// DeliveryError is a failure to hand the report to a sink (mail or log file).
// ExitCode is -1 when the sink never produced one.
type DeliveryError struct {
	Sink     string
	Target   string
	ExitCode int
	Output   string
	Err      error
}

func (e *DeliveryError) Kind() Kind { return KindDelivery }

func (e *DeliveryError) Error() string {
	msg := fmt.Sprintf("%s delivery to %s failed: %v", e.Sink, e.Target, e.Err)
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + strings.Join(strings.Fields(out), " ")
	}
	return msg
}

func (e *DeliveryError) Unwrap() error { return e.Err }
