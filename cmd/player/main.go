package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/faiface/beep"
	"github.com/jscyril/playsync/internal/audio"
	"github.com/jscyril/playsync/internal/config"
	"github.com/jscyril/playsync/internal/library"
	"github.com/jscyril/playsync/internal/log"
	"github.com/jscyril/playsync/internal/playback"
	"github.com/jscyril/playsync/internal/ui"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	volume     float64
	logLevel   string
	logFile    string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "player <file>",
		Short:         "Play an audio file in the terminal",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", config.GetConfigPath(), "config file path")
	flags.Float64Var(&opts.volume, "volume", 0, "initial volume 0.0 to 1.0, overrides default_volume")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&opts.logFile, "log-file", "", "write logs to this file")

	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, opts *options, path string) error {
	fs := afero.NewOsFs()

	// Load configuration
	cfg, err := config.LoadOrCreate(fs, opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("volume") {
		cfg.DefaultVolume = opts.volume
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFile != "" {
		cfg.Log.File = opts.logFile
	}

	closer, err := log.Setup(logrus.StandardLogger(), fs, cfg.Log)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closer.Close()

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	output := audio.NewSpeakerOutput(beep.SampleRate(cfg.OutputSampleRate), 0)
	if err := output.Init(); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	engine := audio.NewEngine(output, audio.WithTickInterval(cfg.TickInterval))
	defer engine.Close()
	engine.Start(ctx)

	// The engine is owned here; the synchronizer only follows the reference
	ref := playback.NewEngineRef()
	synchronizer := playback.New(ref)
	followDone := make(chan struct{})
	go func() {
		synchronizer.Follow(ctx)
		close(followDone)
	}()
	defer func() {
		ref.Clear()
		stop()
		<-followDone
	}()

	// Attach before loading so the metadata event reaches the mirror
	ref.Set(engine)
	synchronizer.Attach()

	if err := engine.Open(path); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	track, err := library.NewMetadataReader(fs).Read(path)
	if err != nil {
		logrus.WithError(err).Warn("read metadata")
	}

	if err := synchronizer.SetVolume(cfg.DefaultVolume); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}

	logrus.WithField("source", path).Info("starting player")

	// Run UI
	if err := ui.Run(synchronizer, track, cfg); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}

	return nil
}
