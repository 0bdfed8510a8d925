package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/angelmondragon/ltv-backend/api/responses"
	"github.com/angelmondragon/ltv-backend/api/validators"
	"github.com/angelmondragon/ltv-backend/internal/runs"
	"github.com/angelmondragon/ltv-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/ltv-backend/pkg/errors"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
	"github.com/angelmondragon/ltv-backend/pkg/pagination"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// RunJournal reads the pipeline run journal.
type RunJournal interface {
	Get(ctx context.Context, id uuid.UUID) (*models.PipelineRun, error)
	List(ctx context.Context, params runs.ListParams) ([]models.PipelineRun, *pagination.Cursor, error)
}

type runDTO struct {
	ID              string         `json:"id"`
	Status          string         `json:"status"`
	Source          string         `json:"source,omitempty"`
	Instance        string         `json:"instance,omitempty"`
	RowsIn          int            `json:"rows_in"`
	RowsDropped     int            `json:"rows_dropped"`
	RecordsOut      int            `json:"records_out"`
	SnapshotWritten bool           `json:"snapshot_written"`
	StoreWritten    bool           `json:"store_written"`
	Drops           map[string]int `json:"drops"`
	Error           *string        `json:"error,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      *time.Time     `json:"finished_at,omitempty"`
}

func toRunDTO(run models.PipelineRun) runDTO {
	drops := make(map[string]int, len(run.Drops))
	for _, d := range run.Drops {
		drops[d.Reason.String()] = d.Count
	}
	return runDTO{
		ID:              run.ID,
		Status:          run.Status.String(),
		Source:          run.Source.String(),
		Instance:        run.Instance,
		RowsIn:          run.RowsIn,
		RowsDropped:     run.RowsDropped,
		RecordsOut:      run.RecordsOut,
		SnapshotWritten: run.SnapshotWritten,
		StoreWritten:    run.StoreWritten,
		Drops:           drops,
		Error:           run.ErrorMessage,
		StartedAt:       run.StartedAt,
		FinishedAt:      run.FinishedAt,
	}
}

func PipelineRuns(journal RunJournal, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor, err := pagination.ParseCursor(r.URL.Query().Get("cursor"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}
		list, next, err := journal.List(r.Context(), runs.ListParams{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pipeline runs"))
			return
		}
		out := make([]runDTO, 0, len(list))
		for _, run := range list {
			out = append(out, toRunDTO(run))
		}
		nextCursor := ""
		if next != nil {
			nextCursor = pagination.EncodeCursor(*next)
		}
		responses.WritePage(w, out, nextCursor)
	}
}

func PipelineRunDetail(journal RunJournal, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "runId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid run id"))
			return
		}
		run, err := journal.Get(r.Context(), id)
		if errors.Is(err, runs.ErrNotFound) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "pipeline run not found"))
			return
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get pipeline run"))
			return
		}
		responses.WriteSuccess(w, toRunDTO(*run))
	}
}
