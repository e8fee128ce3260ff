package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/terrylica/ralph-universal/internal/archive"
	"github.com/terrylica/ralph-universal/internal/config"
	"github.com/terrylica/ralph-universal/internal/guidance"
	"github.com/terrylica/ralph-universal/internal/logbook"
	"github.com/terrylica/ralph-universal/internal/logging"
	"github.com/terrylica/ralph-universal/internal/loopstate"
)

// app carries the settings shared by every subcommand.
type app struct {
	v      *viper.Viper
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// environment is everything a command needs for one project. It is built per
// invocation; nothing survives between processes except the files.
type environment struct {
	paths    config.Paths
	log      *logging.Logger
	store    *config.FileStore
	markers  *loopstate.Markers
	journal  *logbook.Logbook
	machine  *loopstate.Machine
	registry *guidance.Registry
}

func (e *environment) Close() error {
	return e.log.Close()
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "ru",
		Short:         "Run and guard a bounded autonomous agent loop",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.String("project-dir", "", "project root holding .claude/ (default: current directory)")
	flags.String("home", "", "home directory for the global defaults file")
	flags.String("log-level", "", "console log level (debug, info, warn, error)")
	_ = a.v.BindPFlag("project-dir", flags.Lookup("project-dir"))
	_ = a.v.BindPFlag("home", flags.Lookup("home"))
	_ = a.v.BindPFlag("log-level", flags.Lookup("log-level"))
	_ = a.v.BindEnv("project-dir", "RU_PROJECT_DIR", "CLAUDE_PROJECT_DIR")
	_ = a.v.BindEnv("home", "RU_HOME")
	_ = a.v.BindEnv("log-level", "RU_LOG_LEVEL")

	root.AddCommand(
		newStartCmd(a),
		newStopCmd(a),
		newStatusCmd(a),
		newGuidanceCmd(a, guidance.Forbidden),
		newGuidanceCmd(a, guidance.Encouraged),
		newKillCmd(a),
		newHookCmd(a),
	)
	return root
}

// open resolves the project and wires the stores. defaultLevel applies when
// no level was configured.
func (a *app) open(defaultLevel string) (*environment, error) {
	projectDir := a.v.GetString("project-dir")
	if projectDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		projectDir = cwd
	}
	home := a.v.GetString("home")
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}
	paths := config.NewPaths(projectDir, home)

	level := a.v.GetString("log-level")
	if level == "" {
		level = defaultLevel
	}
	log, err := logging.New(paths.ProjectDir, logging.Options{Level: level, Console: a.stderr})
	if err != nil {
		return nil, err
	}
	journal, err := logbook.New(paths.JournalFile())
	if err != nil {
		log.Close()
		return nil, err
	}

	store := config.NewFileStore(paths, log.Logger)
	markers := loopstate.NewMarkers(paths)
	machine := loopstate.New(store, markers, loopstate.NewFileRuntime(paths),
		loopstate.WithFinalizer(archive.NewWriter(paths)),
		loopstate.WithJournal(journal),
		loopstate.WithLogger(log.Logger),
	)
	return &environment{
		paths:    paths,
		log:      log,
		store:    store,
		markers:  markers,
		journal:  journal,
		machine:  machine,
		registry: guidance.New(store),
	}, nil
}
