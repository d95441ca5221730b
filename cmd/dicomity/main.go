package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/CodeChoreography/dicomity/internal/adapters/tui"
	"github.com/CodeChoreography/dicomity/internal/config"
	"github.com/CodeChoreography/dicomity/internal/logging"
	"github.com/CodeChoreography/dicomity/internal/wiring"
)

func main() {
	configFlag := flag.String("config", "", "config file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: dicomity [-config file] <path>...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*configFlag, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, roots []string) error {
	cfg, err := config.Load(config.New(), configPath)
	if err != nil {
		return err
	}
	// Log lines would tear the alternate screen; keep only errors.
	if cfg.Log.Level == "info" || cfg.Log.Level == "debug" {
		cfg.Log.Level = "error"
	}
	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	rt, err := wiring.New(cfg, logger)
	if err != nil {
		return err
	}
	if err := rt.Open(); err != nil {
		return err
	}

	app := tui.NewApp(rt.Session, roots)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, runErr := p.Run()
	if err := rt.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
