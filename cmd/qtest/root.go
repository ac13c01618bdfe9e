package main

import (
	"os"

	"deedles.dev/strq/internal/config"
	"deedles.dev/strq/internal/console"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "qtest [script...]",
	Short: "Exercise a string queue with a command script",
	Long: `qtest reads queue commands from each script in turn, or from standard
input when no script is given, and checks every result against the
expected queue contents and storage accounting.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Flags(), configFile)
		if err != nil {
			return err
		}

		logger, err := setupLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		undo := zap.ReplaceGlobals(logger)
		defer undo()

		c := console.New(logger.Named("console"), cmd.OutOrStdout(), console.Options{
			Verbose:    cfg.Verbose,
			ErrorLimit: cfg.ErrorLimit,
			Malloc:     cfg.Malloc,
			Length:     cfg.Length,
			TimeLimit:  cfg.TimeLimit,
			Seed:       cfg.Seed,
		})
		return run(c, cmd, args)
	},
}

func run(c *console.Console, cmd *cobra.Command, scripts []string) error {
	var err error
	if len(scripts) == 0 {
		err = c.Run(cmd.InOrStdin())
	}
	for _, script := range scripts {
		if c.Done() {
			break
		}
		err = c.Source(script)
		if err != nil {
			break
		}
	}
	if err != nil && !errors.Is(err, console.ErrLimit) {
		zap.L().Error("run stopped", zap.Error(err))
	}

	closeErr := c.Close()
	if n := c.Errors(); n > 0 {
		return errors.Errorf("%v errors reported", n)
	}
	if err != nil {
		return err
	}
	return closeErr
}

// Execute runs the root command and exits with a non-zero status on
// failure.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		zap.L().Error("qtest failed", zap.Error(err))
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "configuration file")
	config.RegisterFlags(rootCmd.Flags())
}

func setupLogger(level string) (*zap.Logger, error) {
	loggerCfg := &zap.Config{
		Level:    zap.NewAtomicLevelAt(zapcore.InfoLevel),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "severity",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.RFC3339TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	atomicLogLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "parse log level %q", level)
	}
	loggerCfg.Level = atomicLogLevel

	return loggerCfg.Build(zap.AddStacktrace(zap.DPanicLevel))
}
