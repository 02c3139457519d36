package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PhelGc/furina-review/internal/database"
	"github.com/PhelGc/furina-review/internal/evaluation"
	"github.com/PhelGc/furina-review/internal/notify"
	"github.com/PhelGc/furina-review/internal/review"
	"github.com/PhelGc/furina-review/internal/server"
	"github.com/PhelGc/furina-review/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Inicia el panel de revisión HTTP",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Crea la tabla foto_evaluations si no existe",
	RunE:  runMigrate,
}

var importCmd = &cobra.Command{
	Use:   "import [archivo.json]",
	Short: "Carga evaluaciones desde un archivo JSON (sin tocar feedback_sent)",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var followUpsCmd = &cobra.Command{
	Use:   "followups",
	Short: "Lista envíos reclamados que fallaron o cuyo resultado es desconocido",
	RunE:  runFollowUps,
}

func openDatabase(ctx context.Context) (*database.Client, error) {
	return database.NewClient(ctx, &database.Config{
		Driver:     cfg.Database.Driver,
		Host:       cfg.Database.Host,
		Port:       cfg.Database.Port,
		Username:   cfg.Database.Username,
		Password:   cfg.Database.Password,
		Database:   cfg.Database.Database,
		SQLitePath: cfg.Database.SQLitePath,
	}, logger)
}

func newSender() (notify.Sender, func(), error) {
	switch cfg.Dispatch.Sender {
	case "webhook":
		return notify.NewWebhookSender(&notify.WebhookConfig{
			URL:   cfg.Webhook.URL,
			Token: cfg.Webhook.Token,
		}, logger), func() {}, nil
	default:
		sender, err := notify.NewDiscordSender(&notify.DiscordConfig{
			BotToken:       cfg.Discord.BotToken,
			Channels:       cfg.Discord.Channels,
			DefaultChannel: cfg.Discord.DefaultChannel,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return sender, sender.Close, nil
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	gin.SetMode(cfg.HTTP.GinMode)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	sender, closeSender, err := newSender()
	if err != nil {
		return err
	}
	defer closeSender()

	journal, err := storage.New(cfg.Journal.BasePath)
	if err != nil {
		return fmt.Errorf("error inicializando registro de envíos: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	controller := review.NewController(db, sender, journal, review.NewMetrics(reg), logger, review.Options{
		Limits:       database.Limits{Default: cfg.Query.DefaultLimit, Max: cfg.Query.MaxLimit},
		SendTimeout:  cfg.Dispatch.SendTimeout,
		ClaimTimeout: cfg.Dispatch.ClaimTimeout,
	})

	logger.Info("Panel de revisión iniciando",
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("sender", cfg.Dispatch.Sender),
	)
	return server.NewServer(controller, db, reg, logger).Run(ctx, cfg.HTTP.Addr)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.CreateEvaluationTable(ctx); err != nil {
		return err
	}
	logger.Info("Tabla de evaluaciones lista", zap.String("db_driver", cfg.Database.Driver))
	return nil
}

// runImport carga evaluaciones ya producidas por el evaluador automático.
// Las evaluaciones inválidas se omiten y se informan; el resto se guarda.
func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("error leyendo %s: %w", args[0], err)
	}

	var evals []evaluation.Evaluation
	if err := json.Unmarshal(data, &evals); err != nil {
		return fmt.Errorf("error parseando %s: %w", args[0], err)
	}

	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	imported, skipped := 0, 0
	for i := range evals {
		e := &evals[i]
		if e.EvaluationDate.IsZero() {
			e.EvaluationDate = time.Now().UTC()
		}
		if err := db.UpsertEvaluation(ctx, e); err != nil {
			logger.Warn("Evaluación omitida", zap.String("dr_number", e.Identifier), zap.Error(err))
			skipped++
			continue
		}
		imported++
	}

	logger.Info("Importación completada", zap.Int("imported", imported), zap.Int("skipped", skipped))
	return nil
}

func runFollowUps(cmd *cobra.Command, args []string) error {
	journal, err := storage.New(cfg.Journal.BasePath)
	if err != nil {
		return fmt.Errorf("error inicializando registro de envíos: %w", err)
	}

	entries, err := journal.GetFollowUps()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DR_NUMBER\tRECIPIENT\tOUTCOME\tCLAIMED_AT\tERROR")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Identifier, e.Recipient, e.Outcome, e.ClaimedAt.Format(time.RFC3339), e.Error)
	}
	return w.Flush()
}
