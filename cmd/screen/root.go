package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Skufu/cardioscreen/internal/bootstrap"
	"github.com/Skufu/cardioscreen/internal/config"
	"github.com/Skufu/cardioscreen/internal/logging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "screen",
		Short: "Heart disease risk screening",
		Long: `screen runs a patient record through the configured risk model and prints the verdict.

The default neural variant needs its ONNX export (modelo_RedesNeurais_Otimizado.onnx)
and the onnxruntime library, neither of which ships in models/. To run from a checkout,
use --variant committee, or keep the neural pipeline with the shipped logistic stand-in:

  CLASSIFIER_ARTIFACT=deploy/logistic.json screen predict`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("variant", "", "Model variant: neural or committee (overrides MODEL_VARIANT)")
	root.PersistentFlags().String("artifacts", "", "Artifact directory (overrides ARTIFACT_DIR)")
	root.PersistentFlags().Bool("verbose", false, "Log loader activity to stderr")

	root.AddCommand(newPredictCmd())
	root.AddCommand(newColumnsCmd())
	root.AddCommand(versionCmd)
	return root
}

// openApp applies the persistent flags over the environment, then loads the
// model artifacts the same way the server does.
func openApp(cmd *cobra.Command) (*bootstrap.App, error) {
	if v, _ := cmd.Flags().GetString("variant"); v != "" {
		os.Setenv("MODEL_VARIANT", v)
	}
	if dir, _ := cmd.Flags().GetString("artifacts"); dir != "" {
		os.Setenv("ARTIFACT_DIR", dir)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger = logging.New(cmd.ErrOrStderr(), "text", logging.ParseLevel(cfg.LogLevel))
	}
	return bootstrap.Open(context.Background(), cfg, logger)
}
