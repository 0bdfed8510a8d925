package pipeline

import (
	"time"

	"github.com/angelmondragon/ltv-backend/internal/reconcile"
	"github.com/angelmondragon/ltv-backend/pkg/db/models"
	"github.com/angelmondragon/ltv-backend/pkg/enums"
)

// Summary describes the outcome of one run.
type Summary struct {
	RunID           string           `json:"run_id"`
	Status          enums.RunStatus  `json:"status"`
	Source          enums.SourceKind `json:"source,omitempty"`
	SourceName      string           `json:"source_name,omitempty"`
	Stats           reconcile.Stats  `json:"stats"`
	Records         int              `json:"records"`
	SnapshotWritten bool             `json:"snapshot_written"`
	StoreWritten    bool             `json:"store_written"`
	MirrorWritten   bool             `json:"mirror_written"`
	Error           string           `json:"error,omitempty"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`

	sinkErr error
}

func (s Summary) applyTo(run *models.PipelineRun) {
	run.Status = s.Status
	run.Source = s.Source
	run.RowsIn = s.Stats.RowsIn
	run.RowsDropped = s.Stats.TotalDropped()
	run.RecordsOut = s.Records
	run.SnapshotWritten = s.SnapshotWritten
	run.StoreWritten = s.StoreWritten
	finished := s.FinishedAt
	run.FinishedAt = &finished
	if s.Error != "" {
		msg := s.Error
		run.ErrorMessage = &msg
	}
	run.Drops = run.Drops[:0]
	for _, reason := range enums.DropReasons() {
		if n := s.Stats.Dropped[reason]; n > 0 {
			run.Drops = append(run.Drops, models.PipelineRunDrop{Reason: reason, Count: n})
		}
	}
}
