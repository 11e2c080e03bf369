package model

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/CZERTAINLY/cronwatch/internal/match"
)

// RuleSet is the fully resolved configuration of one job tag. It must not be
// modified after Resolve returns it.
type RuleSet struct {
	Tag string

	// Required patterns must all match at least one line. Nil when not
	// configured.
	Required *match.Set
	// Whitelist, when not nil, must match every line.
	Whitelist *match.Set
	// Blacklist patterns must not match any line. Nil when not configured.
	Blacklist *match.Set
	// ForceBlacklist makes any output an anomaly for jobs without rules.
	ForceBlacklist bool

	ExitCodes []int
	Timeout   time.Duration

	EmailTo      []string
	EmailFrom    string
	EmailMaxSize int
	EmailSuccess bool
	Sendmail     []string

	Preamble string
	// Logfile is nil when runs are not logged
	Logfile *strftime.Strftime
}

var matchEverything = match.MustCompile(match.MatchEverything)

// EffectiveBlacklist returns the configured blacklist. When neither required,
// whitelist nor blacklist patterns are configured and ForceBlacklist is set,
// it returns a set matching every line.
func (r *RuleSet) EffectiveBlacklist() *match.Set {
	if r.ForceBlacklist && r.Required == nil && r.Whitelist == nil && r.Blacklist == nil {
		return matchEverything
	}
	return r.Blacklist
}

func (r *RuleSet) ValidExitCode(code int) bool {
	return slices.Contains(r.ExitCodes, code)
}

// LogfilePath evaluates the logfile template at t, it returns an empty string
// when no logfile is configured.
func (r *RuleSet) LogfilePath(t time.Time) string {
	if r.Logfile == nil {
		return ""
	}
	return r.Logfile.FormatString(t)
}

// Resolve builds the RuleSet of tag from cfg, which may be nil. Settings are
// layered over the built-in defaults: _default_ section first, then tag.
func Resolve(cfg *Config, tag string) (*RuleSet, error) {
	eff, origin := cfg.effective(tag)
	var path string
	if cfg != nil {
		path = cfg.Path
	}
	cfgErr := func(setting string, err error) error {
		section := origin[setting]
		if section == "" {
			section = "defaults"
		}
		return &ConfigError{Path: path, Section: section, Setting: setting, Err: err}
	}

	r := &RuleSet{
		Tag:            tag,
		ForceBlacklist: deref(eff.ForceBlacklist),
		ExitCodes:      slices.Clone(deref(eff.ExitCodes)),
		EmailTo:        splitAddresses(deref(eff.EmailTo)),
		EmailFrom:      deref(eff.EmailFrom),
		EmailMaxSize:   deref(eff.EmailMaxSize),
		EmailSuccess:   deref(eff.EmailSuccess),
	}

	var err error
	if r.Required, err = compile(eff.Required); err != nil {
		return nil, cfgErr("required", err)
	}
	if r.Whitelist, err = compile(eff.Whitelist); err != nil {
		return nil, cfgErr("whitelist", err)
	}
	if r.Blacklist, err = compile(eff.Blacklist); err != nil {
		return nil, cfgErr("blacklist", err)
	}

	if eff.Timeout != nil {
		if r.Timeout, err = parseTimeout(*eff.Timeout); err != nil {
			return nil, cfgErr("timeout", err)
		}
	}

	if r.Sendmail, err = SendmailArgs(deref(eff.EmailSendmail)); err != nil {
		return nil, cfgErr("email_sendmail", err)
	}

	if eff.Logfile != nil {
		if r.Logfile, err = strftime.New(*eff.Logfile); err != nil {
			return nil, cfgErr("logfile", err)
		}
		if err := logDir(r.LogfilePath(time.Now())); err != nil {
			return nil, cfgErr("logfile", err)
		}
	}

	switch {
	case eff.Preamble != nil && eff.PreambleFile != nil:
		return nil, cfgErr("preamble_file", ErrPreambleConflict)
	case eff.Preamble != nil:
		r.Preamble = *eff.Preamble
	case eff.PreambleFile != nil:
		b, err := os.ReadFile(*eff.PreambleFile)
		if err != nil {
			return nil, cfgErr("preamble_file", fmt.Errorf("reading preamble: %w", err))
		}
		r.Preamble = string(b)
	}

	return r, nil
}

func compile(exprs *[]string) (*match.Set, error) {
	if exprs == nil {
		return nil, nil
	}
	return match.Compile(*exprs)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// logDir checks the directory of path exists, the file itself is created on
// the first append
func logDir(path string) error {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("log directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("log directory %s: %w", dir, ErrNotADirectory)
	}
	return nil
}
