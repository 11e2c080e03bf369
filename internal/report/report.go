// Package report renders the human readable text of a run.
package report

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/CZERTAINLY/cronwatch/internal/classify"
	"github.com/CZERTAINLY/cronwatch/internal/model"
)

const (
	StatusSuccess = "executed successfully"
	StatusErrors  = "executed with errors"

	TrailerEOF       = "[EOF]"
	TrailerTruncated = "[Output truncated]"
	NoOutput         = "  No output"
)

// TimeLayout is used for Started and Finished times
const TimeLayout = "Mon Jan _2 15:04:05 2006"

// Run describes the finished process. Started and Finished are already
// formatted.
type Run struct {
	Command  []string
	Started  string
	Finished string
	ExitCode int
}

// Report holds both variants of a report. Email is capped to
// RuleSet.EmailMaxSize bytes of output, Log is never truncated.
type Report struct {
	Email     string
	Log       string
	Truncated bool
}

// Subject returns the mail subject for command run as user on host
func Subject(user, host string, command []string) string {
	return fmt.Sprintf("cronwatch <%s@%s> %s", user, host, strings.Join(command, " "))
}

// Build renders both report variants. They share the same header and differ
// only in the output section.
func Build(run Run, res classify.Result, rules *model.RuleSet) Report {
	var hdr strings.Builder
	header(&hdr, run, res, rules)

	limit := int64(model.UnlimitedSize)
	if rules != nil {
		limit = int64(rules.EmailMaxSize)
	}

	var email, log strings.Builder
	email.WriteString(hdr.String())
	truncated := output(&email, res, limit)
	log.WriteString(hdr.String())
	output(&log, res, model.UnlimitedSize)

	return Report{
		Email:     email.String(),
		Log:       log.String(),
		Truncated: truncated,
	}
}

func header(b *strings.Builder, run Run, res classify.Result, rules *model.RuleSet) {
	if res.OK() {
		b.WriteString(StatusSuccess)
	} else {
		b.WriteString(StatusErrors)
	}
	b.WriteByte('\n')
	b.WriteString(strings.Join(run.Command, " "))
	b.WriteString("\n\n")

	fmt.Fprintf(b, "Started execution at: %s\n", run.Started)
	fmt.Fprintf(b, "Finished execution at: %s\n", run.Finished)
	fmt.Fprintf(b, "Exit code: %d\n\n", run.ExitCode)

	if rules != nil && rules.Preamble != "" {
		b.WriteString(rules.Preamble)
		if !strings.HasSuffix(rules.Preamble, "\n") {
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	if len(res.Findings) > 0 {
		b.WriteString("Errors:\n")
		for _, f := range res.Findings {
			fmt.Fprintf(b, "  * %s\n", f.Message())
		}
		b.WriteByte('\n')
	}
}

// output writes the annotated lines. limit caps the raw output bytes, markers
// are not counted; a negative limit means unlimited. Returns true if the
// output was truncated.
func output(b *strings.Builder, res classify.Result, limit int64) bool {
	if len(res.Lines) == 0 {
		b.WriteString(NoOutput)
		b.WriteByte('\n')
		return false
	}

	truncated := limit >= 0 && res.Size > limit
	b.WriteString("Output:\n")

	var written int64
	endsWithNewline := true
	for _, line := range res.Lines {
		text := line.Text
		if truncated {
			left := limit - written
			if left <= 0 {
				break
			}
			if int64(len(text)) > left {
				text = cut(text, int(left))
				if text == "" {
					break
				}
			}
		}
		b.WriteString(line.Marker.Prefix())
		b.WriteString(text)
		written += int64(len(text))
		endsWithNewline = strings.HasSuffix(text, "\n")
	}

	if !endsWithNewline {
		b.WriteByte('\n')
	}
	if truncated {
		b.WriteString(TrailerTruncated)
	} else {
		b.WriteString(TrailerEOF)
	}
	b.WriteByte('\n')
	return truncated
}

// cut returns at most n bytes of s without splitting a rune
func cut(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
