package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/lanch-pos/lanch-pos/internal/jobs"
)

// LowStockScanJob flags tracked products at or below their minimum so the
// kitchen can reorder before the lunch rush runs dry.
type LowStockScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob initialises the low stock scan handler.
func NewLowStockScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Slack < 0 {
		payload.Slack = 0
	}

	tracker := j.Metrics.Track(TaskLowStockScan)
	return tracker.End(j.scan(ctx, payload))
}

func (j *LowStockScanJob) scan(ctx context.Context, payload LowStockScanPayload) error {
	rows, err := j.Pool.Query(ctx, `
		SELECT id, name, stock, min_stock
		FROM products
		WHERE deleted_at IS NULL AND active = TRUE AND track_stock = TRUE AND stock <= min_stock + $1
		ORDER BY stock - min_stock
	`, payload.Slack)
	if err != nil {
		return err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var (
			id              int64
			name            string
			stock, minStock int
		)
		if err := rows.Scan(&id, &name, &stock, &minStock); err != nil {
			return err
		}
		count++
		j.Logger.Warn("product low on stock",
			slog.Int64("product_id", id),
			slog.String("name", name),
			slog.Int("stock", stock),
			slog.Int("min_stock", minStock))
	}
	if err := rows.Err(); err != nil {
		return err
	}

	j.Metrics.SetLowStock(count)
	j.Logger.Info("low stock scan finished", slog.Int("flagged", count))
	return nil
}
