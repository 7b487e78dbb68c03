package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/emmett/utter/internal/app"
	"github.com/emmett/utter/internal/config"
	"github.com/emmett/utter/internal/models"
	"github.com/emmett/utter/internal/observe"
	"github.com/emmett/utter/internal/output"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	configFile       = flag.String("config", "", "Path to configuration file (default: ~/.utterrc or /etc/utter/config.yaml)")
	audioDevice      = flag.String("device", "", "Audio input device name (use --list-devices to see available devices)")
	listDevices      = flag.Bool("list-devices", false, "List all available audio input devices")
	interruptKey     = flag.String("interrupt-key", "", "Global hotkey that stops the current utterance, e.g. ctrl+shift+space")
	continuous       = flag.Bool("continuous", false, "Keep recording utterances until Ctrl+C")
	silentTimeout    = flag.Int("silent-timeout", 0, "Seconds of silence that end an utterance")
	recordingTimeout = flag.Int("recording-timeout", 0, "Maximum utterance length in seconds")
	outputDir        = flag.String("output", "", "Directory for recorded utterances")
	outputFormat     = flag.String("format", "", "Output format: console, json, text")
	modelName        = flag.String("model", "", "Transcribe utterances with a downloaded model")
	listModels       = flag.Bool("list-models", false, "List models available for download")
	downloadModel    = flag.String("download-model", "", "Download a model by name")
	showVersion      = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("utter v%s\n", Version)
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
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx := context.Background()

	switch {
	case *listDevices:
		if err := app.NewDeviceManager().ListDevices(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	case *listModels:
		printModels(models.NewStore(cfg.Transcribe.ModelsDir))
		return
	case *downloadModel != "":
		if err := download(ctx, models.NewStore(cfg.Transcribe.ModelsDir), *downloadModel); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags lets explicitly set flags win over file and environment values
func applyFlags(cfg *config.Config) {
	flagsSet := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		flagsSet[f.Name] = true
	})

	if flagsSet["device"] {
		cfg.Audio.Device = *audioDevice
	}
	if flagsSet["silent-timeout"] {
		cfg.Listen.SilentTimeout = *silentTimeout
	}
	if flagsSet["recording-timeout"] {
		cfg.Listen.RecordingTimeout = *recordingTimeout
	}
	if flagsSet["output"] {
		cfg.Output.Dir = *outputDir
	}
	if flagsSet["format"] {
		cfg.Output.Format = *outputFormat
	}
	if flagsSet["model"] {
		cfg.Transcribe.Model = *modelName
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := observe.NewLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	if cfg.Audio.Device != "" {
		dev, err := app.NewDeviceManager().SelectDevice(cfg.Audio.Device)
		if err != nil {
			return err
		}
		cfg.Audio.Device = dev.ID
	}

	session, err := app.NewSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	formatter, err := output.NewFormatter(cfg.Output.Format, os.Stdout)
	if err != nil {
		return err
	}

	rc := app.RunnerConfig{
		Session:    session,
		Formatter:  formatter,
		Hotkey:     *interruptKey,
		Continuous: *continuous,
		Logger:     logger,
	}
	if console, ok := formatter.(*output.ConsoleOutput); ok {
		rc.Console = console
	}

	runner := app.NewRunner(rc)
	return runner.Run(ctx)
}

func printModels(store *models.Store) {
	fmt.Println("Available models for download:")
	fmt.Println()

	for i, m := range models.Catalog {
		status := "Not downloaded"
		if ok, _ := store.IsDownloaded(m.Name); ok {
			status = "Downloaded"
		}
		fmt.Printf("%d. %s\n", i+1, m.Name)
		fmt.Printf("   Language: %s\n", m.Language)
		fmt.Printf("   Size:     %s\n", m.Size)
		fmt.Printf("   Info:     %s\n", m.Description)
		fmt.Printf("   Status:   %s\n", status)
		fmt.Println()
	}

	fmt.Println("To download a model, use:")
	fmt.Println("  utter --download-model <model-name>")
}

func download(ctx context.Context, store *models.Store, name string) error {
	m, err := models.Find(name)
	if err != nil {
		return err
	}

	if path, err := store.Path(name); err == nil {
		fmt.Printf("Model '%s' is already downloaded.\n", name)
		fmt.Printf("Location: %s\n", path)
		return nil
	} else if !errors.Is(err, models.ErrNotDownloaded) {
		return err
	}

	fmt.Printf("Downloading model: %s (%s)\n", m.Name, m.Size)
	err = store.Download(ctx, m, func(downloaded, total int64) {
		if total > 0 {
			fmt.Printf("\rProgress: %.1f%% (%d/%d bytes)", float64(downloaded)/float64(total)*100, downloaded, total)
		}
	})
	fmt.Println()
	if err != nil {
		return fmt.Errorf("error downloading model: %w", err)
	}

	fmt.Printf("Model '%s' downloaded to %s\n", name, store.Dir())
	fmt.Printf("Use it with: utter --model %s\n", name)
	return nil
}
