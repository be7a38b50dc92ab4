package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CZERTAINLY/piperepro/internal/harness"
	"github.com/CZERTAINLY/piperepro/internal/log"
	"github.com/CZERTAINLY/piperepro/internal/model"
	"github.com/CZERTAINLY/piperepro/internal/proc"
	"github.com/CZERTAINLY/piperepro/internal/redirect"
)

const configEnv = "PIPEREPROCONFIG"

type app struct {
	configPath string // actual config file used (if loaded)
	config     model.Config
	logCloser  io.Closer

	flagConfigFilePath string          // value of --config flag
	flagVerbose        bool            // value of --verbose flag
	flagWith           redirect.Policy // value of --with flag
}

func newRootCmd() *cobra.Command {
	a := &app{config: model.DefaultConfig()}

	rootCmd := &cobra.Command{
		Use:   "piperepro [--with MODE] -- COMMAND [ARGS...]",
		Short: "Runs a command with piped IO and reproduces the full pipe buffer hang",
		Long: `Runs COMMAND with both stdout and stderr redirected according to MODE:

  default        child shares the streams of piperepro
  null           child output is discarded
  piped          child output goes to pipes nobody reads: a child writing more
                 than the pipe buffer hangs forever
  piped-process  child output goes to pipes relayed line by line, which avoids the hang`,
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
		PersistentPostRun: a.close,
		RunE:              a.run,
	}
	// everything after the command is passed verbatim
	rootCmd.Flags().SetInterspersed(false)

	rootCmd.PersistentFlags().StringVar(&a.flagConfigFilePath, "config", "", "Config file to load - default is piperepro.yaml in current directory or in "+userConfigPath())
	rootCmd.PersistentFlags().BoolVar(&a.flagVerbose, "verbose", false, "verbose logging")
	rootCmd.Flags().VarP(&a.flagWith, "with", "w", "operating mode ("+strings.Join(redirect.Names(), "|")+")")

	rootCmd.AddCommand(newVersionCmd(a))
	return rootCmd
}

func (a *app) run(cmd *cobra.Command, args []string) error {
	spec, err := proc.NewSpec(args)
	if err != nil {
		return fmt.Errorf("parsing command: %w", err)
	}

	policy := a.flagWith
	if !cmd.Flags().Changed("with") {
		policy, err = a.config.Policy()
		if err != nil {
			return err
		}
	}

	ctx := log.ContextAttrs(cmd.Context(), slog.Group("piperepro",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	))

	res, err := harness.Execute(ctx, spec, policy, proc.Streams{
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Summary())
	return err
}

func (a *app) init(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv(configEnv); ok {
		a.configPath = envConfig
	} else if a.flagConfigFilePath != "" {
		a.configPath = a.flagConfigFilePath
	} else {
		for _, d := range []string{userConfigPath(), "."} {
			path := filepath.Join(d, "piperepro.yaml")
			if exists(path) {
				a.configPath = path
				break
			}
		}
	}

	if a.configPath != "" {
		f, err := os.Open(a.configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		a.config, err = model.LoadConfig(f)
		if err != nil {
			return fmt.Errorf("parsing config %s: %w", a.configPath, err)
		}
	}

	// --verbose has a precedence over config file
	if a.flagVerbose {
		a.config.Verbose = true
	}

	w, err := a.logWriter(cmd)
	if err != nil {
		return err
	}
	slog.SetDefault(log.New(w, a.config.Verbose))

	slog.Debug("piperepro run", "configPath", a.configPath)
	slog.Debug("piperepro run", "config", a.config)
	return nil
}

func (a *app) logWriter(cmd *cobra.Command) (io.Writer, error) {
	switch dest := a.config.LogDestination(); dest {
	case model.LogStderr:
		return cmd.ErrOrStderr(), nil
	case model.LogStdout:
		return cmd.OutOrStdout(), nil
	case model.LogDiscard:
		return io.Discard, nil
	default:
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		a.logCloser = f
		return f, nil
	}
}

func (a *app) close(_ *cobra.Command, _ []string) {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
		a.logCloser = nil
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "version provide version of a piperepro",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			info, ok := debug.ReadBuildInfo()
			if !ok {
				fmt.Fprintln(out, "piperepro: version info not available")
				return
			}

			if a.configPath != "" {
				fmt.Fprintf(out, "config:    %s\n", a.configPath)
			}
			fmt.Fprintf(out, "piperepro: %s\n", info.Main.Version)
			fmt.Fprintf(out, "go:        %s\n", info.GoVersion)
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					fmt.Fprintf(out, "commit:    %s\n", s.Value)
				case "vcs.time":
					fmt.Fprintf(out, "date:      %s\n", s.Value)
				case "vcs.modified":
					fmt.Fprintf(out, "dirty:     %s\n", s.Value)
				}
			}
		},
	}
}

// userConfigPath is the default config directory on given OS
func userConfigPath() string {
	d, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(d, "piperepro")
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
