package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/PhelGc/furina-review/internal/config"
)

var (
	cfg    *config.Config
	logger *zap.Logger

	// Flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "furina-review",
	Short: "Revisión humana y envío único del feedback de QA fotográfico",
	Long: `furina-review expone el panel de revisión de evaluaciones de QA fotográfico.

Cada evaluación se revisa, se edita su mensaje y se envía al contratista una sola vez:
el envío se reclama con una actualización condicional sobre feedback_sent, de modo que
varias instancias pueden atender el mismo panel sin duplicar mensajes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("error cargando configuración: %w", err)
		}

		logger, err = newLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("error inicializando logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Activa logs de depuración")

	rootCmd.AddCommand(serveCmd, migrateCmd, importCmd, followUpsCmd)
}

func newLogger(logCfg config.LogConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if logCfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(logCfg.Level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL inválido %q: %w", logCfg.Level, err)
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
