package model

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"
	"github.com/google/shlex"
	"github.com/lestrrat-go/strftime"

	"github.com/CZERTAINLY/cronwatch/internal/match"

	_ "embed"
)

const (
	// DefaultSection is merged under the section of every job tag
	DefaultSection = "_default_"

	DefaultEmailTo      = "root"
	DefaultEmailMaxSize = 4096
	DefaultSendmail     = "/usr/lib/sendmail -oi -t"
	UnlimitedSize       = -1
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
}

// Config is a parsed configuration file: one Section per job tag.
type Config struct {
	Path     string
	Sections map[string]Section
}

// Section holds the settings of one job tag as written in the file. Nil
// means "not set here", so sections can be layered.
type Section struct {
	Required       *[]string `json:"required,omitempty" yaml:"required,omitempty"`
	Whitelist      *[]string `json:"whitelist,omitempty" yaml:"whitelist,omitempty"`
	Blacklist      *[]string `json:"blacklist,omitempty" yaml:"blacklist,omitempty"`
	ForceBlacklist *bool     `json:"force_blacklist,omitempty" yaml:"force_blacklist,omitempty"`
	ExitCodes      *[]int    `json:"exit_codes,omitempty" yaml:"exit_codes,omitempty"`
	Timeout        *string   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	EmailTo        *string   `json:"email_to,omitempty" yaml:"email_to,omitempty"`
	EmailFrom      *string   `json:"email_from,omitempty" yaml:"email_from,omitempty"`
	EmailMaxSize   *int      `json:"email_maxsize,omitempty" yaml:"email_maxsize,omitempty"`
	EmailSuccess   *bool     `json:"email_success,omitempty" yaml:"email_success,omitempty"`
	EmailSendmail  *string   `json:"email_sendmail,omitempty" yaml:"email_sendmail,omitempty"`
	Preamble       *string   `json:"preamble,omitempty" yaml:"preamble,omitempty"`
	PreambleFile   *string   `json:"preamble_file,omitempty" yaml:"preamble_file,omitempty"`
	Logfile        *string   `json:"logfile,omitempty" yaml:"logfile,omitempty"`
}

// DefaultSettings are the built-in values every configuration starts from.
func DefaultSettings() Section {
	return Section{
		ForceBlacklist: ptr(true),
		ExitCodes:      ptr([]int{0}),
		EmailTo:        ptr(DefaultEmailTo),
		EmailMaxSize:   ptr(DefaultEmailMaxSize),
		EmailSuccess:   ptr(false),
		EmailSendmail:  ptr(DefaultSendmail),
	}
}

// LoadConfig validates YAML from r against CUE schema, decodes it and checks
// the values the schema cannot: regular expressions, durations, time
// templates and the sendmail command line.
func LoadConfig(r io.Reader) (*Config, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	cfg := &Config{Sections: map[string]Section{}}
	if len(bytes.TrimSpace(src)) == 0 {
		return cfg, nil
	}

	yamlFile, err := yaml.Extract("config.yaml", src)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),
		cue.Concrete(true),
	); err != nil {
		return nil, cueConfigError(err)
	}

	if err := unified.Decode(&cfg.Sections); err != nil {
		return nil, &ConfigError{Err: err}
	}
	if cfg.Sections == nil {
		cfg.Sections = map[string]Section{}
	}

	for _, name := range slices.Sorted(maps.Keys(cfg.Sections)) {
		if err := cfg.Sections[name].validate(); err != nil {
			err.Section = name
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfigFile reads the configuration file at path
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	defer func() {
		_ = f.Close()
	}()
	cfg, err := LoadConfig(f)
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.Path = path
		}
		return nil, err
	}
	cfg.Path = path
	return cfg, nil
}

// Effective layers the built-in defaults, the _default_ section and the
// section of tag, in that order.
func (c *Config) Effective(tag string) Section {
	eff, _ := c.effective(tag)
	return eff
}

// effective also returns the section each setting was taken from
func (c *Config) effective(tag string) (Section, map[string]string) {
	eff := DefaultSettings()
	origin := map[string]string{}
	if c == nil {
		return eff, origin
	}
	if sec, ok := c.Sections[DefaultSection]; ok {
		eff.overlay(sec, DefaultSection, origin)
	}
	if tag != DefaultSection {
		if sec, ok := c.Sections[tag]; ok {
			eff.overlay(sec, tag, origin)
		}
	}
	return eff, origin
}

func (s *Section) overlay(src Section, name string, origin map[string]string) {
	set(&s.Required, src.Required, "required", name, origin)
	set(&s.Whitelist, src.Whitelist, "whitelist", name, origin)
	set(&s.Blacklist, src.Blacklist, "blacklist", name, origin)
	set(&s.ForceBlacklist, src.ForceBlacklist, "force_blacklist", name, origin)
	set(&s.ExitCodes, src.ExitCodes, "exit_codes", name, origin)
	set(&s.Timeout, src.Timeout, "timeout", name, origin)
	set(&s.EmailTo, src.EmailTo, "email_to", name, origin)
	set(&s.EmailFrom, src.EmailFrom, "email_from", name, origin)
	set(&s.EmailMaxSize, src.EmailMaxSize, "email_maxsize", name, origin)
	set(&s.EmailSuccess, src.EmailSuccess, "email_success", name, origin)
	set(&s.EmailSendmail, src.EmailSendmail, "email_sendmail", name, origin)
	set(&s.Logfile, src.Logfile, "logfile", name, origin)
	// preamble and preamble_file replace each other
	if src.Preamble != nil || src.PreambleFile != nil {
		s.Preamble, s.PreambleFile = src.Preamble, src.PreambleFile
		origin["preamble"], origin["preamble_file"] = name, name
	}
}

func set[T any](dst **T, src *T, key, name string, origin map[string]string) {
	if src == nil {
		return
	}
	*dst = src
	origin[key] = name
}

func (s Section) validate() *ConfigError {
	for _, p := range []struct {
		setting string
		exprs   *[]string
	}{
		{"required", s.Required},
		{"whitelist", s.Whitelist},
		{"blacklist", s.Blacklist},
	} {
		if p.exprs == nil {
			continue
		}
		if _, err := match.Compile(*p.exprs); err != nil {
			return &ConfigError{Setting: p.setting, Err: err}
		}
	}
	if s.Timeout != nil {
		if _, err := parseTimeout(*s.Timeout); err != nil {
			return &ConfigError{Setting: "timeout", Err: err}
		}
	}
	if s.Logfile != nil {
		if _, err := strftime.New(*s.Logfile); err != nil {
			return &ConfigError{Setting: "logfile", Err: err}
		}
	}
	if s.EmailSendmail != nil {
		if _, err := SendmailArgs(*s.EmailSendmail); err != nil {
			return &ConfigError{Setting: "email_sendmail", Err: err}
		}
	}
	if s.Preamble != nil && s.PreambleFile != nil {
		return &ConfigError{Setting: "preamble_file", Err: ErrPreambleConflict}
	}
	return nil
}

func parseTimeout(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative timeout %s", s)
	}
	return d, nil
}

// SendmailArgs splits a shell quoted sendmail command line
func SendmailArgs(cmdline string) ([]string, error) {
	args, err := shlex.Split(cmdline)
	if err != nil {
		return nil, fmt.Errorf("parsing sendmail command %q: %w", cmdline, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty sendmail command")
	}
	return args, nil
}

func splitAddresses(s string) []string {
	var ret []string
	for _, addr := range strings.Split(s, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			ret = append(ret, addr)
		}
	}
	return ret
}

func ptr[T any](v T) *T {
	return &v
}
