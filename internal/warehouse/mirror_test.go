package warehouse

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/angelmondragon/ltv-backend/internal/facts"
	pkgerrors "github.com/angelmondragon/ltv-backend/pkg/errors"
	"github.com/angelmondragon/ltv-backend/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeWriter struct {
	ensured    map[string]cbigquery.Schema
	truncates  int
	batches    [][]any
	insertErrs []error
}

func (f *fakeWriter) EnsureTable(_ context.Context, table string, schema cbigquery.Schema) error {
	if f.ensured == nil {
		f.ensured = map[string]cbigquery.Schema{}
	}
	f.ensured[table] = schema
	return nil
}

func (f *fakeWriter) Truncate(context.Context, string) error {
	f.truncates++
	return nil
}

func (f *fakeWriter) InsertRows(_ context.Context, _ string, rows []any) error {
	if len(f.insertErrs) > 0 {
		err := f.insertErrs[0]
		f.insertErrs = f.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	f.batches = append(f.batches, rows)
	return nil
}

var fastRetry = retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaximumBackoff: time.Millisecond}

func records(n int) []facts.Record {
	out := make([]facts.Record, n)
	for i := range out {
		out[i] = facts.Record{
			Date:      time.Date(2023, 1, 1+i, 0, 0, 0, 0, time.UTC),
			Country:   "Peru",
			Affiliate: "AffX",
			Amount:    10,
			FTDCount:  2,
			LTV:       5,
		}
	}
	out[0].Source = "Ads"
	return out
}

func TestReplaceBatches(t *testing.T) {
	w := &fakeWriter{}
	m, err := New(w, Config{Table: "general_ltv_clean", BatchSize: 2, Retry: fastRetry})
	require.NoError(t, err)

	require.NoError(t, m.Replace(context.Background(), "run-1", records(5)))
	assert.Equal(t, 1, w.truncates)
	require.Len(t, w.batches, 3)
	assert.Len(t, w.batches[2], 1)

	first := w.batches[0][0].(*FactRow)
	assert.Equal(t, civil.Date{Year: 2023, Month: time.January, Day: 1}, first.Date)
	assert.Equal(t, cbigquery.NullString{StringVal: "Ads", Valid: true}, first.Source)
	assert.Equal(t, "run-1", first.RunID)
	assert.False(t, w.batches[0][1].(*FactRow).Source.Valid)
}

func TestReplaceRetriesTransientErrors(t *testing.T) {
	w := &fakeWriter{insertErrs: []error{&googleapi.Error{Code: http.StatusServiceUnavailable}}}
	m, err := New(w, Config{Table: "t", Retry: fastRetry})
	require.NoError(t, err)

	require.NoError(t, m.Replace(context.Background(), "run-2", records(1)))
	assert.Len(t, w.batches, 1)
}

func TestReplaceStopsOnPermanentErrors(t *testing.T) {
	w := &fakeWriter{insertErrs: []error{&googleapi.Error{Code: http.StatusBadRequest}, nil}}
	m, err := New(w, Config{Table: "t", Retry: fastRetry})
	require.NoError(t, err)

	err = m.Replace(context.Background(), "run-3", records(1))
	require.Error(t, err)
	assert.Empty(t, w.batches)
}

func TestPrepareEnsuresInferredSchema(t *testing.T) {
	w := &fakeWriter{}
	m, err := New(w, Config{Table: "general_ltv_clean"})
	require.NoError(t, err)
	require.NoError(t, m.Prepare(context.Background()))

	schema := w.ensured["general_ltv_clean"]
	require.Len(t, schema, 9)
	byName := map[string]*cbigquery.FieldSchema{}
	for _, f := range schema {
		byName[f.Name] = f
	}
	assert.Equal(t, cbigquery.DateFieldType, byName["date"].Type)
	assert.Equal(t, cbigquery.StringFieldType, byName["source"].Type)
	assert.False(t, byName["source"].Required)
	assert.Equal(t, cbigquery.TimestampFieldType, byName["loaded_at"].Type)
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Config{Table: "t"})
	assert.Error(t, err)
	_, err = New(&fakeWriter{}, Config{Table: "  "})
	assert.Error(t, err)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(stderrors.New("plain")))
	assert.True(t, IsRetryable(&googleapi.Error{Code: http.StatusTooManyRequests}))
	assert.False(t, IsRetryable(&googleapi.Error{Code: http.StatusNotFound}))
	assert.True(t, IsRetryable(status.Error(codes.Unavailable, "down")))
	assert.False(t, IsRetryable(status.Error(codes.InvalidArgument, "bad")))

	transient := cbigquery.PutMultiError{{Errors: cbigquery.MultiError{&googleapi.Error{Code: http.StatusInternalServerError}}}}
	assert.True(t, IsRetryable(transient))

	mixed := cbigquery.PutMultiError{
		{Errors: cbigquery.MultiError{&googleapi.Error{Code: http.StatusInternalServerError}}},
		{Errors: cbigquery.MultiError{&googleapi.Error{Code: http.StatusBadRequest}}},
	}
	assert.False(t, IsRetryable(mixed))
	assert.False(t, IsRetryable(cbigquery.MultiError{}))

	assert.True(t, IsRetryable(pkgerrors.New(pkgerrors.CodeDependency, "dataset busy")))
	assert.False(t, IsRetryable(pkgerrors.New(pkgerrors.CodeValidation, "bad schema")))
}
