package model

import (
	"fmt"
	"strings"
)

type FindingKind int

const (
	ExitCodeInvalid FindingKind = iota + 1
	RequiredMissing
	WhitelistViolation
	BlacklistHit
)

func (k FindingKind) String() string {
	switch k {
	case ExitCodeInvalid:
		return "exit_code_invalid"
	case RequiredMissing:
		return "required_missing"
	case WhitelistViolation:
		return "whitelist_violation"
	case BlacklistHit:
		return "blacklist_hit"
	default:
		return "unknown"
	}
}

// Finding is a single anomaly detected in a run. ExitCode is set for
// ExitCodeInvalid, Pattern for RequiredMissing and BlacklistHit.
type Finding struct {
	Kind     FindingKind
	ExitCode int
	Pattern  string
}

func (f Finding) Message() string {
	switch f.Kind {
	case ExitCodeInvalid:
		return fmt.Sprintf("Exit code (%d) is not a valid exit code", f.ExitCode)
	case RequiredMissing:
		return fmt.Sprintf("Required output missing (%s)", f.Pattern)
	case WhitelistViolation:
		return fmt.Sprintf("Output not matched by whitelist (denoted by %q in output)", strings.TrimSpace(MarkerWhitelistMiss.Prefix()))
	case BlacklistHit:
		return fmt.Sprintf("Output matched by blacklist (%s) (denoted by %q in output)", f.Pattern, strings.TrimSpace(MarkerBlacklistHit.Prefix()))
	default:
		return "unknown finding"
	}
}

func (f Finding) String() string {
	return f.Message()
}

// Marker tags a line of captured output
type Marker int

const (
	MarkerNormal Marker = iota
	MarkerWhitelistMiss
	MarkerBlacklistHit
)

// Prefix is the two-character column printed in front of a line in reports.
func (m Marker) Prefix() string {
	switch m {
	case MarkerWhitelistMiss:
		return "* "
	case MarkerBlacklistHit:
		return "! "
	default:
		return "  "
	}
}

// AnnotatedLine is one line of output. Text keeps the line terminator
// as it was read, so the last line of an output may have none.
type AnnotatedLine struct {
	Text   string
	Marker Marker
}
