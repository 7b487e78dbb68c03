package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/emmett/utter/internal/app"
	"github.com/emmett/utter/internal/config"
	"github.com/emmett/utter/internal/observe"
	"github.com/emmett/utter/internal/server/mcp"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file (default: ~/.utterrc or /etc/utter/config.yaml)")
	modelName   = flag.String("model", "", "Transcribe utterances with a downloaded model")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("utter-mcp v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if *modelName != "" {
		cfg.Transcribe.Model = *modelName
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	// stdout carries the protocol
	logger := observe.NewLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	printClientConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := app.NewSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	server := mcp.NewServer(mcp.Config{
		ServerName:    "utter-mcp",
		ServerVersion: Version,
	}, session, app.NewDeviceManager(), logger)

	logger.Info("MCP server ready, listening on stdin/stdout")
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func printClientConfig() {
	execPath, err := os.Executable()
	if err != nil {
		execPath = "utter-mcp"
	}

	args := []string{}
	if *configFile != "" {
		args = append(args, "--config", *configFile)
	}
	if *modelName != "" {
		args = append(args, "--model", *modelName)
	}

	type serverEntry struct {
		Command string   `json:"command"`
		Args    []string `json:"args"`
	}
	clientConfig := map[string]map[string]serverEntry{
		"mcpServers": {"utter": {Command: execPath, Args: args}},
	}
	if data, err := json.MarshalIndent(clientConfig, "", "  "); err == nil {
		fmt.Fprintf(os.Stderr, "MCP Client Configuration:\n%s\n\n", data)
	}
}
