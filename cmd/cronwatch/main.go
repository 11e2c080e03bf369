package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/CZERTAINLY/cronwatch/internal/log"
	"github.com/CZERTAINLY/cronwatch/internal/model"
	"github.com/CZERTAINLY/cronwatch/internal/service"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

const systemConfigPath = "/etc/cronwatch.yaml"

var (
	userConfigPath string // /default/config/path/cronwatch on given OS
	configPath     string // actual config file used (if loaded)
	config         *model.Config

	flagConfigFilePath string        // value of --config flag
	flagTag            string        // value of --tag flag
	flagTimeout        time.Duration // value of --timeout flag
	flagVerbose        bool          // value of --verbose flag
	flagDumpConfig     bool          // value of --dump-config flag
)

func init() {
	if d, err := os.UserConfigDir(); err == nil {
		userConfigPath = filepath.Join(d, "cronwatch")
	}
}

func main() {
	flags := rootCmd.Flags()
	flags.StringVarP(&flagConfigFilePath, "config", "c", "", "config file to load - default is "+systemConfigPath+" or cronwatch.yaml in "+userConfigPath)
	flags.StringVarP(&flagTag, "tag", "t", "", "override the default tag, which is the base name of the executable")
	flags.DurationVar(&flagTimeout, "timeout", 0, "terminate the executable after given duration, overrides the config file")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")
	flags.BoolVar(&flagDumpConfig, "dump-config", false, "print the effective configuration of the tag and exit")
	// flags after the executable belong to it
	flags.SetInterspersed(false)

	// never print messages
	rootCmd.SilenceErrors = true

	rootCmd.Version = version()
	rootCmd.SetVersionTemplate("{{.Version}}")

	if err := rootCmd.Execute(); err != nil {
		attrs := []any{"err", err}
		if kind := model.KindOf(err); kind != 0 {
			attrs = append(attrs, "kind", kind.String())
		}
		slog.Error("cronwatch failed", attrs...)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "cronwatch [flags] executable [args...]",
	Short:             "Run a cron job, check its output and mail or log a report",
	SilenceUsage:      true,
	Args:              executableArgs,
	PersistentPreRunE: initCronwatch,
	RunE:              doWatch,
}

func executableArgs(_ *cobra.Command, args []string) error {
	if len(args) == 0 && !(flagDumpConfig && flagTag != "") {
		return model.ErrMissingExecutable
	}
	return nil
}

func doWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	tag := flagTag
	if tag == "" {
		tag = filepath.Base(args[0])
	}

	rules, err := model.Resolve(config, tag)
	if err != nil {
		return err
	}
	sec := config.Effective(tag)
	if flagTimeout > 0 {
		rules.Timeout = flagTimeout
		timeout := flagTimeout.String()
		sec.Timeout = &timeout
	}

	if flagDumpConfig {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		defer func() {
			_ = enc.Close()
		}()
		return enc.Encode(map[string]model.Section{tag: sec})
	}

	slog.DebugContext(ctx, "cronwatch run", "configPath", configPath, "tag", tag)
	_, err = service.NewWatcher().Watch(ctx, args, rules)
	return err
}

func initCronwatch(cmd *cobra.Command, _ []string) error {
	slog.SetDefault(log.New(os.Stderr, flagVerbose))

	if envConfig, ok := os.LookupEnv("CRONWATCHCONFIG"); ok && envConfig != "" {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		candidates := []string{systemConfigPath}
		if userConfigPath != "" {
			candidates = append(candidates, filepath.Join(userConfigPath, "cronwatch.yaml"))
		}
		for _, path := range candidates {
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	if configPath == "" {
		slog.Debug("no config file found, using defaults")
		return nil
	}

	var err error
	config, err = model.LoadConfigFile(configPath)
	if err != nil {
		var cfgErr *model.ConfigError
		if errors.As(err, &cfgErr) {
			for _, d := range cfgErr.Details {
				slog.Error("invalid configuration", d.Attr("detail"))
			}
		}
		return err
	}
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "cronwatch: version info not available\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "cronwatch: %s\n", info.Main.Version)
	fmt.Fprintf(&b, "go:        %s\n", info.GoVersion)
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			fmt.Fprintf(&b, "commit:    %s\n", s.Value)
		case "vcs.time":
			fmt.Fprintf(&b, "date:      %s\n", s.Value)
		case "vcs.modified":
			fmt.Fprintf(&b, "dirty:     %s\n", s.Value)
		}
	}
	return b.String()
}
