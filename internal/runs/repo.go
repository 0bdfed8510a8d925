// Package runs journals pipeline executions.
package runs

import (
	"context"
	"errors"

	"github.com/angelmondragon/ltv-backend/internal/repo"
	"github.com/angelmondragon/ltv-backend/pkg/db/models"
	"github.com/angelmondragon/ltv-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists pipeline run journal entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, run *models.PipelineRun) error
	Finish(ctx context.Context, run *models.PipelineRun) error
	Get(ctx context.Context, id uuid.UUID) (*models.PipelineRun, error)
	List(ctx context.Context, params ListParams) ([]models.PipelineRun, *pagination.Cursor, error)
}

// ListParams pages runs newest first.
type ListParams struct {
	Limit  int
	Cursor *pagination.Cursor
}

// ErrNotFound is returned by Get for unknown run ids.
var ErrNotFound = errors.New("pipeline run not found")

type repositoryImpl struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{Base: repo.NewBase(db)}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	return &repositoryImpl{Base: r.Rebind(tx)}
}

func (r *repositoryImpl) Create(ctx context.Context, run *models.PipelineRun) error {
	return r.DB(ctx).Omit(clause.Associations).Create(run).Error
}

// Finish stores the terminal state of run and upserts its drop counters.
func (r *repositoryImpl) Finish(ctx context.Context, run *models.PipelineRun) error {
	return r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PipelineRun{}).Where("id = ?", run.ID).Updates(map[string]any{
			"status":           run.Status,
			"source":           run.Source,
			"rows_in":          run.RowsIn,
			"rows_dropped":     run.RowsDropped,
			"records_out":      run.RecordsOut,
			"snapshot_written": run.SnapshotWritten,
			"store_written":    run.StoreWritten,
			"error_message":    run.ErrorMessage,
			"finished_at":      run.FinishedAt,
		}).Error; err != nil {
			return err
		}
		if len(run.Drops) == 0 {
			return nil
		}
		for i := range run.Drops {
			run.Drops[i].RunID = run.ID
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}, {Name: "reason"}},
			DoUpdates: clause.AssignmentColumns([]string{"count"}),
		}).Create(&run.Drops).Error
	})
}

func (r *repositoryImpl) Get(ctx context.Context, id uuid.UUID) (*models.PipelineRun, error) {
	var run models.PipelineRun
	err := r.DB(ctx).Preload("Drops").Where("id = ?", id.String()).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *repositoryImpl) List(ctx context.Context, params ListParams) ([]models.PipelineRun, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.DB(ctx).Model(&models.PipelineRun{}).Preload("Drops")
	if params.Cursor != nil {
		query = query.Where("started_at < ? OR (started_at = ? AND id < ?)",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID.String())
	}

	var list []models.PipelineRun
	if err := query.Order("started_at DESC, id DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, nil, err
	}
	if len(list) > normalized {
		next := list[normalized-1]
		list = list[:normalized]
		id, err := uuid.Parse(next.ID)
		if err != nil {
			return nil, nil, err
		}
		return list, &pagination.Cursor{CreatedAt: next.StartedAt, ID: id}, nil
	}
	return list, nil, nil
}
