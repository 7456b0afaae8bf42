package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/axisai/axismem/engine"
	"github.com/axisai/axismem/export"
	"github.com/axisai/axismem/internal/profile"
	"github.com/axisai/axismem/lineage"
)

var rootCmd = &cobra.Command{
	Use:   "axismem",
	Short: "Persistent semantic memory daemon",
	Long:  "axismem stores embedded memory items, serves composite-scored retrieval, and records answer lineage.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eng, logger, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer eng.Close()

		eng.Start(ctx)
		logger.Info("axismem started",
			slog.String("mode", eng.Profile.Mode),
			slog.String("driver", eng.Profile.Driver),
			slog.Int("dimension", eng.Profile.Dimension))

		<-ctx.Done()
		logger.Info("axismem shutting down")
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write all memory items and lineage traces to a JSON snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, logger, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer eng.Close()

		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		snap, err := export.Export(ctx, eng.Store, eng.Profile.Dimension, f)
		if err != nil {
			return err
		}
		logger.Info("snapshot written",
			slog.String("file", args[0]),
			slog.Int("items", len(snap.Items)),
			slog.Int("traces", len(snap.Traces)))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Restore memory items and lineage traces from a JSON snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, logger, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer eng.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		result, err := export.Import(ctx, eng.Store, eng.Profile.Dimension, f)
		if err != nil {
			return err
		}
		logger.Info("snapshot restored",
			slog.Int("items", result.Items),
			slog.Int("traces", result.Traces))
		return nil
	},
}

var decayOnceCmd = &cobra.Command{
	Use:   "decay-once",
	Short: "Run a single decay and eviction pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, logger, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer eng.Close()

		result, err := eng.DecayOnce(ctx)
		if err != nil {
			return err
		}
		logger.Info("decay pass finished",
			slog.Int("examined", result.Examined),
			slog.Int("decayed", result.Decayed),
			slog.Int("evicted", result.Evicted),
			slog.Int("conflicts", result.Conflicts),
			slog.Bool("rebuilt", result.Rebuilt))
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Re-validate persisted lineage traces",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, logger, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer eng.Close()

		report, err := lineage.Audit(ctx, eng.Store, logger)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func bootstrap(ctx context.Context) (*engine.Engine, *slog.Logger, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	p, err := profile.GetProfile()
	if err != nil {
		return nil, nil, err
	}
	eng, err := engine.New(ctx, p, logger)
	if err != nil {
		return nil, nil, err
	}
	return eng, logger, nil
}

func logLevel() slog.Level {
	if viper.GetBool("verbose") {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.SetEnvPrefix("axismem")
	viper.AutomaticEnv()

	rootCmd.AddCommand(exportCmd, importCmd, decayOnceCmd, auditCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
