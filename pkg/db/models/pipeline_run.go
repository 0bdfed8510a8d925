package models

import (
	"time"

	"github.com/angelmondragon/ltv-backend/pkg/enums"
)

// PipelineRun journals one execution of the LTV pipeline.
type PipelineRun struct {
	ID              string            `gorm:"column:id;type:varchar(36);primaryKey"`
	Status          enums.RunStatus   `gorm:"column:status;type:varchar(20);not null"`
	Source          enums.SourceKind  `gorm:"column:source;type:varchar(20);not null;default:''"`
	Instance        string            `gorm:"column:instance;type:varchar(100);not null;default:''"`
	RowsIn          int               `gorm:"column:rows_in;not null;default:0"`
	RowsDropped     int               `gorm:"column:rows_dropped;not null;default:0"`
	RecordsOut      int               `gorm:"column:records_out;not null;default:0"`
	SnapshotWritten bool              `gorm:"column:snapshot_written;not null;default:false"`
	StoreWritten    bool              `gorm:"column:store_written;not null;default:false"`
	ErrorMessage    *string           `gorm:"column:error_message;type:text"`
	StartedAt       time.Time         `gorm:"column:started_at;not null"`
	FinishedAt      *time.Time        `gorm:"column:finished_at"`
	Drops           []PipelineRunDrop `gorm:"foreignKey:RunID;references:ID"`
}

// PipelineRunDrop counts the rows a run discarded for one reason.
type PipelineRunDrop struct {
	RunID  string           `gorm:"column:run_id;type:varchar(36);primaryKey"`
	Reason enums.DropReason `gorm:"column:reason;type:varchar(40);primaryKey"`
	Count  int              `gorm:"column:count;not null;default:0"`
}

func (PipelineRun) TableName() string { return "pipeline_runs" }

func (PipelineRunDrop) TableName() string { return "pipeline_run_drops" }
