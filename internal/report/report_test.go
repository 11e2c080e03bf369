package report_test

import (
	"strings"
	"testing"

	"github.com/CZERTAINLY/cronwatch/internal/classify"
	"github.com/CZERTAINLY/cronwatch/internal/match"
	"github.com/CZERTAINLY/cronwatch/internal/model"
	"github.com/CZERTAINLY/cronwatch/internal/report"
	"github.com/stretchr/testify/require"
)

var run = report.Run{
	Command:  []string{"/usr/local/bin/backup", "--full"},
	Started:  "Mon Mar  7 01:02:03 2010",
	Finished: "Mon Mar  7 01:04:03 2010",
	ExitCode: 0,
}

func classified(t *testing.T, out string, exitCode int, rules *model.RuleSet) classify.Result {
	t.Helper()
	res, err := classify.Classify(strings.NewReader(out), exitCode, rules)
	require.NoError(t, err)
	return res
}

func TestBuild(t *testing.T) {
	t.Parallel()

	rules := &model.RuleSet{
		ExitCodes:    []int{0},
		Blacklist:    match.MustCompile("black"),
		Whitelist:    match.MustCompile("^ok"),
		EmailMaxSize: model.UnlimitedSize,
		Preamble:     "Call the backup team.",
	}
	res := classified(t, "ok\nblack\nweird\nok", 0, rules)

	rep := report.Build(run, res, rules)
	const expected = `executed with errors
/usr/local/bin/backup --full

Started execution at: Mon Mar  7 01:02:03 2010
Finished execution at: Mon Mar  7 01:04:03 2010
Exit code: 0

Call the backup team.

Errors:
  * Output not matched by whitelist (denoted by "*" in output)
  * Output matched by blacklist (black) (denoted by "!" in output)

Output:
  ok
! black
* weird
  ok
[EOF]
`
	require.Equal(t, expected, rep.Email)
	require.Equal(t, expected, rep.Log)
	require.False(t, rep.Truncated)
}

func TestBuild_Success(t *testing.T) {
	t.Parallel()

	rules := &model.RuleSet{
		ExitCodes:    []int{0},
		Required:     match.MustCompile("done"),
		EmailMaxSize: model.DefaultEmailMaxSize,
	}
	res := classified(t, "done\n", 0, rules)

	rep := report.Build(run, res, rules)
	require.True(t, strings.HasPrefix(rep.Email, report.StatusSuccess+"\n"))
	require.NotContains(t, rep.Email, "Errors:")
	require.True(t, strings.HasSuffix(rep.Email, "Output:\n  done\n[EOF]\n"))
}

func TestBuild_NoOutput(t *testing.T) {
	t.Parallel()

	rules := &model.RuleSet{ExitCodes: []int{1, 2}, EmailMaxSize: 0}
	res := classified(t, "", 3, rules)

	rep := report.Build(report.Run{Command: []string{"job"}, Started: "a", Finished: "b", ExitCode: 3}, res, rules)
	const expected = `executed with errors
job

Started execution at: a
Finished execution at: b
Exit code: 3

Errors:
  * Exit code (3) is not a valid exit code

  No output
`
	require.Equal(t, expected, rep.Email)
	require.Equal(t, expected, rep.Log)
	require.False(t, rep.Truncated)
}

func TestBuild_Truncation(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario  string
		output    string
		maxsize   int
		email     string
		truncated bool
	}{
		{
			scenario: "unlimited",
			output:   "line1\nline2\n",
			maxsize:  model.UnlimitedSize,
			email:    "Output:\n  line1\n  line2\n[EOF]\n",
		},
		{
			scenario: "exact fit",
			output:   "line1\nline2\n",
			maxsize:  12,
			email:    "Output:\n  line1\n  line2\n[EOF]\n",
		},
		{
			scenario:  "cut in the middle of a line",
			output:    "line1\nline2\n",
			maxsize:   8,
			email:     "Output:\n  line1\n  li\n[Output truncated]\n",
			truncated: true,
		},
		{
			scenario:  "cut at line end",
			output:    "line1\nline2\n",
			maxsize:   6,
			email:     "Output:\n  line1\n[Output truncated]\n",
			truncated: true,
		},
		{
			scenario:  "zero",
			output:    "line1\n",
			maxsize:   0,
			email:     "Output:\n[Output truncated]\n",
			truncated: true,
		},
		{
			scenario:  "rune boundary",
			output:    "hé\n",
			maxsize:   2,
			email:     "Output:\n  h\n[Output truncated]\n",
			truncated: true,
		},
		{
			scenario: "missing last newline",
			output:   "line1",
			maxsize:  model.UnlimitedSize,
			email:    "Output:\n  line1\n[EOF]\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			rules := &model.RuleSet{ExitCodes: []int{0}, EmailMaxSize: tc.maxsize}
			res := classified(t, tc.output, 0, rules)

			rep := report.Build(run, res, rules)
			require.Equal(t, tc.truncated, rep.Truncated)
			require.True(t, strings.HasSuffix(rep.Email, "\n\n"+tc.email), rep.Email)
			require.True(t, strings.HasSuffix(rep.Log, "[EOF]\n"), rep.Log)
		})
	}
}

func TestSubject(t *testing.T) {
	require.Equal(t,
		"cronwatch <root@db1> /usr/local/bin/backup --full",
		report.Subject("root", "db1", run.Command),
	)
}
