package model

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

type CueErrorDetail struct {
	Path    string // backup.exit_codes.0
	Code    string // missing_required | unknown_field | type_mismatch | conflict | invalid_value ...
	Message string // Human text
	Pos     CueErrorPosition
	Raw     string // original message
}

func (c CueErrorDetail) Attr(name string) slog.Attr {
	return slog.GroupAttrs(
		name,
		slog.String("code", c.Code),
		slog.String("path", c.Path),
		slog.String("message", c.Message),
		slog.String("file", c.Pos.Filename),
		slog.Int("line", c.Pos.Line),
		slog.Int("column", c.Pos.Column),
	)
}

// Section returns the job tag the detail points to
func (c CueErrorDetail) Section() string {
	section, _, _ := strings.Cut(c.Path, ".")
	return section
}

// Setting returns the name of the setting inside the section, if any
func (c CueErrorDetail) Setting() string {
	_, rest, _ := strings.Cut(c.Path, ".")
	setting, _, _ := strings.Cut(rest, ".")
	return setting
}

type CueErrorPosition struct {
	Filename string
	Line     int
	Column   int
}

var (
	reIncomplete  = regexp.MustCompile(`(?i)incomplete value`)
	reNotAllowed  = regexp.MustCompile(`(?i)not allowed|unknown field`)
	reConflict    = regexp.MustCompile(`(?i)conflicting values|cannot unify|incompatible`)
	reBound       = regexp.MustCompile(`(?i)invalid value .* \(out of bound`)
	reExpectedGot = regexp.MustCompile(`(?i)expected .* got .*`)
)

// CueErrDetails turns a CUE validation error into one detail per position.
// Errors of other origins produce no details.
func CueErrDetails(err error) []CueErrorDetail {
	if err == nil {
		return nil
	}

	seen := make(map[CueErrorPosition]struct{})

	var out []CueErrorDetail
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		raw := fmt.Sprintf(format, args...)
		path := normalizePath(e.Path())
		code, msg := classify(raw, settingName(path))

		pos := position(e)
		if _, ok := seen[pos]; ok && pos.Filename != "" {
			continue
		}

		out = append(out, CueErrorDetail{
			Path:    path,
			Code:    code,
			Message: msg,
			Pos:     pos,
			Raw:     e.Error(),
		})
		seen[pos] = struct{}{}
	}
	return out
}

func cueConfigError(err error) *ConfigError {
	cfgErr := &ConfigError{Err: err, Details: CueErrDetails(err)}
	if len(cfgErr.Details) > 0 {
		cfgErr.Section = cfgErr.Details[0].Section()
		cfgErr.Setting = cfgErr.Details[0].Setting()
	}
	return cfgErr
}

func position(err cueerrors.Error) CueErrorPosition {
	for _, r := range cueerrors.Positions(err) {
		if r.Filename() == "" {
			continue
		}
		pos := CueErrorPosition{
			Filename: r.Filename(),
			Line:     r.Line(),
			Column:   r.Column(),
		}
		return pos
	}
	var zero CueErrorPosition
	return zero
}

func normalizePath(p []string) string {
	if len(p) == 0 {
		return ""
	}
	// Remove leading definition (#Config)
	if strings.HasPrefix(p[0], "#") {
		p = p[1:]
	}
	return strings.Join(p, ".")
}

func classify(raw, name string) (code, msg string) {
	switch {
	case reNotAllowed.MatchString(raw):
		return "unknown_field", fmt.Sprintf("unknown setting %s", name)
	case reIncomplete.MatchString(raw):
		return "missing_required", fmt.Sprintf("setting %s is required", name)
	case reBound.MatchString(raw):
		return "invalid_value", fmt.Sprintf("setting %s is out of bounds", name)
	case reConflict.MatchString(raw):
		return "type_mismatch", fmt.Sprintf("setting %s has wrong type", name)
	case reExpectedGot.MatchString(raw):
		return "type_mismatch", fmt.Sprintf("setting %s has wrong type/value", name)
	default:
		return "validation_error", raw
	}
}

func settingName(path string) string {
	if setting := (CueErrorDetail{Path: path}).Setting(); setting != "" {
		return setting
	}
	return path
}
