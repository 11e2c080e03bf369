// Package classify checks the captured output of a run against a rule set.
//
// The output is consumed in a single pass. For every line, in stream order:
//
//   - required patterns which matched are marked as found
//   - if a whitelist is configured and no whitelist pattern matched, the line
//     is marked with MarkerWhitelistMiss
//   - if a blacklist pattern matched, the pattern is marked as hit and the
//     line is marked with MarkerBlacklistHit, which takes precedence
//
// Findings are then reported in a fixed order: invalid exit code, missing
// required patterns, the whitelist violation and blacklist hits. Patterns are
// sorted lexicographically within their group, so the same output and rule
// set always produce the same result.
package classify

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/CZERTAINLY/cronwatch/internal/match"
	"github.com/CZERTAINLY/cronwatch/internal/model"
)

// Result of a classification
type Result struct {
	Findings []model.Finding
	Lines    []model.AnnotatedLine
	// LineCount is the number of lines, including last one without newline
	LineCount int
	// Size is the number of bytes read
	Size int64
	// TrailingNewline is false when the last line was not terminated
	TrailingNewline bool
}

// OK returns true if no anomaly was found
func (r Result) OK() bool {
	return len(r.Findings) == 0
}

type state struct {
	requiredFound  map[string]bool
	blacklistFound map[string]bool
	whitelistOk    bool
}

// Classify reads r until EOF and checks every line and the exit code against
// rules. It fails only when r does.
func Classify(r io.Reader, exitCode int, rules *model.RuleSet) (Result, error) {
	blacklist := rules.EffectiveBlacklist()
	st := state{
		requiredFound:  make(map[string]bool, rules.Required.Len()),
		blacklistFound: make(map[string]bool, blacklist.Len()),
		whitelistOk:    true,
	}
	for _, id := range rules.Required.IDs() {
		st.requiredFound[id] = false
	}
	for _, id := range blacklist.IDs() {
		st.blacklistFound[id] = false
	}

	res := Result{TrailingNewline: true}
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			res.Lines = append(res.Lines, st.line(line, rules, blacklist))
			res.LineCount++
			res.Size += int64(len(line))
			res.TrailingNewline = strings.HasSuffix(line, "\n")
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("reading output: %w", err)
		}
	}

	res.Findings = st.findings(exitCode, rules)
	return res, nil
}

func (st *state) line(line string, rules *model.RuleSet, blacklist *match.Set) model.AnnotatedLine {
	marker := model.MarkerNormal

	_, ids := rules.Required.Match(line)
	for _, id := range ids {
		st.requiredFound[id] = true
	}

	if rules.Whitelist != nil {
		if ok, _ := rules.Whitelist.Match(line); !ok {
			st.whitelistOk = false
			marker = model.MarkerWhitelistMiss
		}
	}

	if ok, ids := blacklist.Match(line); ok {
		for _, id := range ids {
			st.blacklistFound[id] = true
		}
		marker = model.MarkerBlacklistHit
	}

	return model.AnnotatedLine{Text: line, Marker: marker}
}

func (st *state) findings(exitCode int, rules *model.RuleSet) []model.Finding {
	var ret []model.Finding
	if !rules.ValidExitCode(exitCode) {
		ret = append(ret, model.Finding{Kind: model.ExitCodeInvalid, ExitCode: exitCode})
	}

	for _, id := range sortedKeys(st.requiredFound, false) {
		ret = append(ret, model.Finding{Kind: model.RequiredMissing, Pattern: id})
	}

	if rules.Whitelist != nil && !st.whitelistOk {
		ret = append(ret, model.Finding{Kind: model.WhitelistViolation})
	}

	for _, id := range sortedKeys(st.blacklistFound, true) {
		ret = append(ret, model.Finding{Kind: model.BlacklistHit, Pattern: id})
	}
	return ret
}

// sortedKeys returns sorted ids whose value equals want
func sortedKeys(m map[string]bool, want bool) []string {
	var ids []string
	for id, v := range m {
		if v == want {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
