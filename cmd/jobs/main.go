package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"example.com/shareactivities/internal/config"
	"example.com/shareactivities/internal/logging"
)

var CLI struct {
	Version  kong.VersionFlag
	LogLevel string `help:"Override LOG_LEVEL." placeholder:"LEVEL"`
	Store    string `help:"Override STORE_BACKEND (postgres or memory)."`

	Serve     ServeCmd     `cmd:"" help:"Run the daily scheduler until interrupted." default:"1"`
	Run       RunCmd       `cmd:"" help:"Run one sweep now and print its report."`
	DLQReplay DLQReplayCmd `cmd:"" name:"dlq-replay" help:"Requeue failed outbox events from the dead-letter table."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("jobs"),
		kong.Description("Recurrence and expiration sweeps for shared household activities"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": "v0.1.0"},
	)

	cfg := config.Load()
	if CLI.LogLevel != "" {
		cfg.LogLevel = CLI.LogLevel
	}
	if CLI.Store != "" {
		cfg.StoreBackend = CLI.Store
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	appCtx := &Context{
		Config: cfg,
		Logger: logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile, Prefix: "jobs"}),
	}
	if err := ctx.Run(appCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
