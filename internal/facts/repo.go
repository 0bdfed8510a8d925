package facts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/ltv-backend/internal/repo"
	"github.com/angelmondragon/ltv-backend/pkg/db/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultInsertBatch = 500
	stagingSuffix      = "_staging"
	retiredSuffix      = "_retired"
)

// Repository persists the clean fact table in the relational store.
type Repository interface {
	// Replace swaps in a table holding exactly records; on error the previous
	// contents stay in place.
	Replace(ctx context.Context, records []Record) error
	List(ctx context.Context) ([]Record, error)
	Table() string
}

type repositoryImpl struct {
	repo.Base
	table string
	batch int
}

// NewRepository returns a fact repository bound to table.
func NewRepository(db *gorm.DB, table string, batchSize int) (Repository, error) {
	if db == nil {
		return nil, errors.New("db required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("fact table name required")
	}
	if batchSize <= 0 {
		batchSize = defaultInsertBatch
	}
	return &repositoryImpl{Base: repo.NewBase(db), table: table, batch: batchSize}, nil
}

func (r *repositoryImpl) Table() string {
	return r.table
}

// Replace fills a staging table and swaps it in only after every batch landed,
// so a failed write leaves the previous table readable.
func (r *repositoryImpl) Replace(ctx context.Context, records []Record) error {
	conn := r.DB(ctx)
	staging := r.table + stagingSuffix
	m := conn.Migrator()
	if err := m.DropTable(staging); err != nil {
		return fmt.Errorf("drop %s: %w", staging, err)
	}
	if err := conn.Table(staging).Migrator().CreateTable(&models.FactRow{}); err != nil {
		return fmt.Errorf("create %s: %w", staging, err)
	}

	if len(records) > 0 {
		rows := make([]models.FactRow, len(records))
		for i, rec := range records {
			rows[i] = toFactRow(rec)
		}
		if err := conn.Table(staging).CreateInBatches(rows, r.batch).Error; err != nil {
			_ = m.DropTable(staging)
			return fmt.Errorf("insert into %s: %w", staging, err)
		}
	}

	if err := r.swap(conn, staging); err != nil {
		_ = m.DropTable(staging)
		return fmt.Errorf("swap %s: %w", r.table, err)
	}
	return nil
}

// swap puts staging in place of the live table. MySQL commits DDL implicitly,
// so it uses a multi-table RENAME, which is atomic there.
func (r *repositoryImpl) swap(conn *gorm.DB, staging string) error {
	if conn.Dialector.Name() != "mysql" {
		return conn.Transaction(func(tx *gorm.DB) error {
			if err := tx.Migrator().DropTable(r.table); err != nil {
				return err
			}
			return tx.Migrator().RenameTable(staging, r.table)
		})
	}

	m := conn.Migrator()
	if !m.HasTable(r.table) {
		return m.RenameTable(staging, r.table)
	}
	retired := r.table + retiredSuffix
	if err := m.DropTable(retired); err != nil {
		return err
	}
	stmt := fmt.Sprintf("RENAME TABLE `%s` TO `%s`, `%s` TO `%s`", r.table, retired, staging, r.table)
	if err := conn.Exec(stmt).Error; err != nil {
		return err
	}
	return m.DropTable(retired)
}

func (r *repositoryImpl) List(ctx context.Context) ([]Record, error) {
	var rows []models.FactRow
	if err := r.Base.Table(ctx, r.table).Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}}).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = fromFactRow(row)
	}
	return out, nil
}

func toFactRow(rec Record) models.FactRow {
	row := models.FactRow{
		Date:      rec.Date.UTC(),
		Country:   rec.Country,
		Affiliate: rec.Affiliate,
		Amount:    decimal.NewFromFloat(rec.Amount).Round(2),
		FTDCount:  rec.FTDCount,
		LTV:       decimal.NewFromFloat(rec.LTV).Round(4),
	}
	if rec.Source != "" {
		source := rec.Source
		row.Source = &source
	}
	return row
}

func fromFactRow(row models.FactRow) Record {
	d := row.Date.UTC()
	rec := Record{
		Date:      time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
		Country:   row.Country,
		Affiliate: row.Affiliate,
		Amount:    row.Amount.InexactFloat64(),
		FTDCount:  row.FTDCount,
		LTV:       row.LTV.InexactFloat64(),
	}
	if row.Source != nil {
		rec.Source = *row.Source
	}
	return rec
}
