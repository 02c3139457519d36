package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/PhelGc/furina-review/internal/evaluation"
)

type Client struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

type Config struct {
	Driver     string // "mysql" (por defecto) o "sqlite"
	Host       string
	Port       string
	Username   string
	Password   string
	Database   string
	SQLitePath string
}

func NewClient(ctx context.Context, config *Config, logger *zap.Logger) (*Client, error) {
	var (
		db  *sql.DB
		err error
	)

	switch config.Driver {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(config.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("error creando directorio de SQLite: %w", err)
		}
		db, err = sql.Open("sqlite", config.SQLitePath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		if err != nil {
			return nil, fmt.Errorf("error abriendo SQLite: %w", err)
		}
		// SQLite admite un único escritor; una sola conexión evita SQLITE_BUSY
		db.SetMaxOpenConns(1)
	case "mysql", "":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC",
			config.Username, config.Password, config.Host, config.Port, config.Database)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("error conectando a MySQL: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	default:
		return nil, fmt.Errorf("driver de base de datos desconocido: %q", config.Driver)
	}

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error haciendo ping a la base de datos: %w", err)
	}

	driver := config.Driver
	if driver == "" {
		driver = "mysql"
	}
	logger.Info("Conexión establecida con la base de datos",
		zap.String("driver", driver), zap.String("host", config.Host), zap.String("database", config.Database))

	return &Client{db: db, driver: driver, logger: logger}, nil
}

// CreateEvaluationTable crea la tabla foto_evaluations si no existe
func (c *Client) CreateEvaluationTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS foto_evaluations (
		dr_number       VARCHAR(64)  NOT NULL,
		overall_status  VARCHAR(16)  NOT NULL,
		average_score   DECIMAL(4,2) NOT NULL,
		total_steps     INT          NOT NULL,
		passed_steps    INT          NOT NULL,
		step_results    JSON         NOT NULL,
		recipient       VARCHAR(255) NULL,
		markdown_report MEDIUMTEXT   NULL,
		feedback_sent   BOOLEAN      NOT NULL DEFAULT FALSE,
		evaluation_date DATETIME     NOT NULL,
		created_at      DATETIME     NOT NULL,
		updated_at      DATETIME     NOT NULL,
		PRIMARY KEY (dr_number),
		INDEX idx_feedback_date (feedback_sent, evaluation_date),
		INDEX idx_status_date (overall_status, evaluation_date)
	);`

	if c.driver == "sqlite" {
		query = `
		CREATE TABLE IF NOT EXISTS foto_evaluations (
			dr_number       TEXT     NOT NULL PRIMARY KEY,
			overall_status  TEXT     NOT NULL,
			average_score   REAL     NOT NULL,
			total_steps     INTEGER  NOT NULL,
			passed_steps    INTEGER  NOT NULL,
			step_results    TEXT     NOT NULL,
			recipient       TEXT     NULL,
			markdown_report TEXT     NULL,
			feedback_sent   BOOLEAN  NOT NULL DEFAULT 0,
			evaluation_date DATETIME NOT NULL,
			created_at      DATETIME NOT NULL,
			updated_at      DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_feedback_date ON foto_evaluations (feedback_sent, evaluation_date);
		CREATE INDEX IF NOT EXISTS idx_status_date ON foto_evaluations (overall_status, evaluation_date);`
	}

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("error creando tabla foto_evaluations: %w", err)
	}

	c.logger.Info("Tabla foto_evaluations verificada/creada exitosamente")
	return nil
}

// UpsertEvaluation inserta o actualiza una evaluación recibida del proceso de evaluación.
// Una evaluación nueva siempre queda pendiente (feedback_sent = false) y una actualización
// nunca toca feedback_sent: solo ClaimFeedback lo escribe.
func (c *Client) UpsertEvaluation(ctx context.Context, e *evaluation.Evaluation) error {
	if err := e.Validate(); err != nil {
		return err
	}

	steps := e.StepResults
	if steps == nil {
		steps = []evaluation.StepResult{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("error serializando step_results de %s: %w", e.Identifier, err)
	}

	now := normalizeTime(time.Now())
	createdAt := now
	if !e.CreatedAt.IsZero() {
		createdAt = normalizeTime(e.CreatedAt)
	}

	query := `
	INSERT INTO foto_evaluations (` + evaluationColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		overall_status  = VALUES(overall_status),
		average_score   = VALUES(average_score),
		total_steps     = VALUES(total_steps),
		passed_steps    = VALUES(passed_steps),
		step_results    = VALUES(step_results),
		recipient       = VALUES(recipient),
		markdown_report = VALUES(markdown_report),
		evaluation_date = VALUES(evaluation_date),
		updated_at      = VALUES(updated_at)`

	if c.driver == "sqlite" {
		query = `
		INSERT INTO foto_evaluations (` + evaluationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dr_number) DO UPDATE SET
			overall_status  = excluded.overall_status,
			average_score   = excluded.average_score,
			total_steps     = excluded.total_steps,
			passed_steps    = excluded.passed_steps,
			step_results    = excluded.step_results,
			recipient       = excluded.recipient,
			markdown_report = excluded.markdown_report,
			evaluation_date = excluded.evaluation_date,
			updated_at      = excluded.updated_at`
	}

	_, err = c.db.ExecContext(ctx, query,
		e.Identifier, string(e.OverallStatus), e.AverageScore, e.TotalSteps, e.PassedSteps,
		string(stepsJSON), nullString(e.Recipient), nullString(e.MarkdownReport), false,
		normalizeTime(e.EvaluationDate), createdAt, now)
	if err != nil {
		return fmt.Errorf("error guardando evaluación %s: %w", e.Identifier, err)
	}
	return nil
}

// GetEvaluation obtiene una evaluación por número DR. Devuelve nil, nil si no existe.
func (c *Client) GetEvaluation(ctx context.Context, identifier string) (*evaluation.Evaluation, error) {
	query := `SELECT ` + evaluationColumns + ` FROM foto_evaluations WHERE dr_number = ?`

	e, err := scanEvaluation(c.db.QueryRowContext(ctx, query, identifier))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error consultando evaluación %s: %w", identifier, err)
	}
	return e, nil
}

// ListEvaluations devuelve una página de evaluaciones y el total sin paginar.
// Página y conteo se ejecutan en paralelo con el mismo predicado.
func (c *Client) ListEvaluations(ctx context.Context, f EvaluationFilter) ([]evaluation.Evaluation, int, error) {
	pageQuery, countQuery, err := BuildListQueries(f)
	if err != nil {
		return nil, 0, err
	}

	var (
		page  = []evaluation.Evaluation{}
		total int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.db.QueryRowContext(gctx, countQuery.SQL, countQuery.Args...).Scan(&total); err != nil {
			return fmt.Errorf("error contando evaluaciones: %w", err)
		}
		return nil
	})
	// limit=0 no necesita la consulta paginada
	if f.Limit > 0 {
		g.Go(func() error {
			rows, err := c.db.QueryContext(gctx, pageQuery.SQL, pageQuery.Args...)
			if err != nil {
				return fmt.Errorf("error consultando evaluaciones: %w", err)
			}
			defer rows.Close()

			for rows.Next() {
				e, err := scanEvaluation(rows)
				if err != nil {
					return fmt.Errorf("error escaneando evaluación: %w", err)
				}
				page = append(page, *e)
			}
			return rows.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return page, total, nil
}

// CountEvaluations cuenta las evaluaciones que cumplen el filtro (ignora limit/offset)
func (c *Client) CountEvaluations(ctx context.Context, f EvaluationFilter) (int, error) {
	_, countQuery, err := BuildListQueries(f)
	if err != nil {
		return 0, err
	}

	var total int
	if err := c.db.QueryRowContext(ctx, countQuery.SQL, countQuery.Args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("error contando evaluaciones: %w", err)
	}
	return total, nil
}

// ClaimFeedback marca feedback_sent = true solo si todavía era false.
// Es una única sentencia condicional: de dos llamadas concurrentes solo una obtiene true.
func (c *Client) ClaimFeedback(ctx context.Context, identifier string, now time.Time) (bool, error) {
	query := `UPDATE foto_evaluations SET feedback_sent = ?, updated_at = ? WHERE dr_number = ? AND feedback_sent = ?`

	result, err := c.db.ExecContext(ctx, query, true, normalizeTime(now), identifier, false)
	if err != nil {
		return false, fmt.Errorf("error reclamando envío de %s: %w", identifier, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error leyendo filas afectadas de %s: %w", identifier, err)
	}
	return rowsAffected == 1, nil
}

// Ping verifica la conexión con la base de datos
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close cierra la conexión con la base de datos
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row rowScanner) (*evaluation.Evaluation, error) {
	var (
		e         evaluation.Evaluation
		status    string
		stepsJSON []byte
		recipient sql.NullString
		report    sql.NullString
	)

	err := row.Scan(&e.Identifier, &status, &e.AverageScore, &e.TotalSteps, &e.PassedSteps,
		&stepsJSON, &recipient, &report, &e.FeedbackSent, &e.EvaluationDate, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.OverallStatus = evaluation.Status(status)
	e.Recipient = recipient.String
	e.MarkdownReport = report.String
	e.StepResults = []evaluation.StepResult{}
	if len(stepsJSON) > 0 {
		if err := json.Unmarshal(stepsJSON, &e.StepResults); err != nil {
			return nil, fmt.Errorf("step_results inválido en %s: %w", e.Identifier, err)
		}
	}
	return &e, nil
}

// normalizeTime guarda tiempos en UTC con precisión de segundos para que el orden
// textual de SQLite coincida con el cronológico
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
