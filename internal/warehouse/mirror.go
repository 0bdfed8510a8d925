// Package warehouse mirrors the clean fact table into BigQuery.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/angelmondragon/ltv-backend/internal/facts"
	"github.com/angelmondragon/ltv-backend/pkg/retry"
)

const defaultBatchSize = 500

// FactRow mirrors the general_ltv_clean BigQuery schema.
type FactRow struct {
	Date      civil.Date           `bigquery:"date"`
	Country   string               `bigquery:"country"`
	Affiliate string               `bigquery:"affiliate"`
	Source    cbigquery.NullString `bigquery:"source"`
	Amount    float64              `bigquery:"amount"`
	FTDCount  int64                `bigquery:"ftd_count"`
	LTV       float64              `bigquery:"ltv"`
	RunID     string               `bigquery:"run_id"`
	LoadedAt  time.Time            `bigquery:"loaded_at"`
}

// TableWriter is the slice of the BigQuery client the mirror needs.
type TableWriter interface {
	EnsureTable(ctx context.Context, table string, schema cbigquery.Schema) error
	InsertRows(ctx context.Context, table string, rows []any) error
	Truncate(ctx context.Context, table string) error
}

// Schema is the warehouse schema inferred from FactRow.
func Schema() (cbigquery.Schema, error) {
	return cbigquery.InferSchema(FactRow{})
}

// Config controls batching and retries of the mirror.
type Config struct {
	Table     string
	BatchSize int
	Retry     retry.Policy
}

// Mirror replaces the warehouse copy of the fact table after each run.
type Mirror struct {
	client    TableWriter
	table     string
	batchSize int
	retry     retry.Policy
	now       func() time.Time
}

func New(client TableWriter, cfg Config) (*Mirror, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		return nil, errors.New("fact table is required")
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Mirror{
		client:    client,
		table:     table,
		batchSize: batch,
		retry:     cfg.Retry.Normalize(),
		now:       time.Now,
	}, nil
}

// Prepare creates the mirrored table when it does not exist yet.
func (m *Mirror) Prepare(ctx context.Context) error {
	schema, err := Schema()
	if err != nil {
		return fmt.Errorf("infer %s schema: %w", m.table, err)
	}
	return retry.Do(ctx, m.retry, IsRetryable, func(ctx context.Context) error {
		return m.client.EnsureTable(ctx, m.table, schema)
	})
}

// Replace truncates the mirrored table and streams records in batches.
func (m *Mirror) Replace(ctx context.Context, runID string, records []facts.Record) error {
	if err := retry.Do(ctx, m.retry, IsRetryable, func(ctx context.Context) error {
		return m.client.Truncate(ctx, m.table)
	}); err != nil {
		return fmt.Errorf("truncate %s: %w", m.table, err)
	}

	loadedAt := m.now().UTC()
	for start := 0; start < len(records); start += m.batchSize {
		end := start + m.batchSize
		if end > len(records) {
			end = len(records)
		}
		rows := make([]any, 0, end-start)
		for i := start; i < end; i++ {
			rows = append(rows, toRow(records[i], runID, loadedAt))
		}
		if err := retry.Do(ctx, m.retry, IsRetryable, func(ctx context.Context) error {
			return m.client.InsertRows(ctx, m.table, rows)
		}); err != nil {
			return fmt.Errorf("insert %s rows %d-%d: %w", m.table, start, end, err)
		}
	}
	return nil
}

func toRow(rec facts.Record, runID string, loadedAt time.Time) *FactRow {
	row := &FactRow{
		Date:      civil.DateOf(rec.Date.UTC()),
		Country:   rec.Country,
		Affiliate: rec.Affiliate,
		Amount:    rec.Amount,
		FTDCount:  int64(rec.FTDCount),
		LTV:       rec.LTV,
		RunID:     runID,
		LoadedAt:  loadedAt,
	}
	if rec.Source != "" {
		row.Source = cbigquery.NullString{StringVal: rec.Source, Valid: true}
	}
	return row
}
