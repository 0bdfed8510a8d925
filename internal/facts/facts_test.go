package facts

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/ltv-backend/internal/normalize"
	pkgerrors "github.com/angelmondragon/ltv-backend/pkg/errors"
	"github.com/angelmondragon/ltv-backend/pkg/enums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleRecords() []Record {
	return []Record{
		{Date: day(2023, 1, 2), Country: "Paraguay", Affiliate: "AffX", Source: "Meta", Amount: 1234.56, FTDCount: 5, LTV: 246.912},
		{Date: day(2023, 1, 1), Country: "Costa Rica", Affiliate: "Media Buyer", Amount: 10, FTDCount: 0, LTV: 3.5},
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 0.0, Ratio(100, 0))
	assert.InDelta(t, 246.912, Ratio(1234.56, 5), 1e-9)
}

func TestFTDCountAndLTV(t *testing.T) {
	assert.Equal(t, 5, FTDCount("5"))
	assert.Equal(t, 3, FTDCount("2.6"))
	assert.Equal(t, 26, FTDCount("2,6"))
	assert.Equal(t, 0, FTDCount("-4"))
	assert.Equal(t, 0, FTDCount("n/a"))

	assert.InDelta(t, 20.0, LTV(100, 5, "999"), 1e-9)
	assert.InDelta(t, 12.5, LTV(100, 0, "12,50"), 1e-9)
	assert.Equal(t, 0.0, LTV(100, 0, ""))
}

func TestSnapshotStoreSwap(t *testing.T) {
	store := NewSnapshotStore()
	require.NotNil(t, store.Load())
	require.Zero(t, store.Load().Len())

	input := sampleRecords()
	snap := NewSnapshot(input, enums.SourceKindDatabase, time.Now())
	input[0].Country = "mutated"

	prev := store.Swap(snap)
	require.NotNil(t, prev)
	current := store.Load()
	require.Equal(t, 2, current.Len())
	require.Equal(t, int64(1), current.Version())
	require.Equal(t, enums.SourceKindDatabase, current.Origin())

	records := current.Records()
	require.Equal(t, "Costa Rica", records[0].Country, "snapshot is sorted by date")
	require.Equal(t, "Paraguay", records[1].Country, "snapshot does not alias the input slice")

	records[0].Country = "changed"
	require.Equal(t, "Costa Rica", current.Records()[0].Country)

	store.Swap(NewSnapshot(nil, enums.SourceKindSnapshot, time.Now()))
	require.Equal(t, int64(2), store.Load().Version())
	require.Equal(t, 2, current.Len(), "readers holding the old snapshot keep their view")
}

func TestSnapshotDigest(t *testing.T) {
	a := NewSnapshot(sampleRecords(), enums.SourceKindDatabase, time.Now())
	b := NewSnapshot(sampleRecords(), enums.SourceKindSnapshot, time.Now().Add(time.Hour))
	require.Equal(t, a.Digest(), b.Digest(), "origin and load time do not change identity")

	changed := sampleRecords()
	changed[0].Amount += 0.01
	require.NotEqual(t, a.Digest(), NewSnapshot(changed, enums.SourceKindDatabase, time.Now()).Digest())
}

func TestSnapshotStoreConcurrentReaders(t *testing.T) {
	store := NewSnapshotStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				n := store.Load().Len()
				if n != 0 && n != 2 {
					t.Errorf("observed partial snapshot of %d records", n)
					return
				}
			}
		}()
	}
	for j := 0; j < 50; j++ {
		store.Swap(NewSnapshot(sampleRecords(), enums.SourceKindDatabase, time.Now()))
	}
	wg.Wait()
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "general_ltv_preview.csv")
	require.NoError(t, WriteSnapshotFile(path, sampleRecords()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}), "snapshot starts with a BOM")
	require.Contains(t, string(raw), "2023-01-02,Paraguay,AffX,Meta,1234.56,5,246.9120")

	got, err := ReadSnapshotFile(path, normalize.DefaultDateBounds)
	require.NoError(t, err)
	require.Len(t, got.Records, 2)
	assert.Equal(t, sampleRecords()[0].Key(), got.Records[0].Key())
	assert.InDelta(t, 1234.56, got.Records[0].Amount, 1e-9)
	assert.InDelta(t, 246.912, got.Records[0].LTV, 1e-9)
	assert.InDelta(t, 3.5, got.Records[1].LTV, 1e-9)
	assert.Equal(t, "Meta", got.Records[0].Source)
}

func TestDecodeSnapshotLegacyColumns(t *testing.T) {
	input := strings.Join([]string{
		"date,country,affiliate,usd_total,count_ftd,general_ltv",
		"2023-01-01 00:00:00,paraguay,AffX,\"1.234,56\",5,0",
		"2023-01-01,Paraguay,AffX,99,1,0",
		"bad-date,Paraguay,AffX,10,1,0",
		"2023-01-02,nan,AffY,10,1,0",
		"02/01/2023,Peru,AffZ,10,0,7.5",
	}, "\n")

	got, err := DecodeSnapshot(strings.NewReader(input), normalize.DefaultDateBounds)
	require.NoError(t, err)
	require.Equal(t, 2, got.Skipped)
	require.Equal(t, 1, got.Duplicates)
	require.Len(t, got.Records, 2)

	first := got.Records[0]
	assert.Equal(t, "Paraguay", first.Country)
	assert.Equal(t, "AffX", first.Affiliate)
	assert.Equal(t, 99.0, first.Amount, "last duplicate wins")

	second := got.Records[1]
	assert.Equal(t, day(2023, 1, 2), second.Date)
	assert.InDelta(t, 7.5, second.LTV, 1e-9)
}

func TestDecodeSnapshotRejectsMissingColumns(t *testing.T) {
	_, err := DecodeSnapshot(strings.NewReader("date,country\n2023-01-01,Peru\n"), normalize.DefaultDateBounds)
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSourceFormat))
}

func TestReadSnapshotFileMissing(t *testing.T) {
	_, err := ReadSnapshotFile(filepath.Join(t.TempDir(), "nope.csv"), normalize.DefaultDateBounds)
	require.ErrorIs(t, err, ErrSnapshotMissing)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func TestRepositoryReplaceAndList(t *testing.T) {
	db := newTestDB(t)
	repo, err := NewRepository(db, "general_ltv_clean", 1)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Replace(ctx, sampleRecords()))
	got, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, day(2023, 1, 1), got[0].Date)
	assert.Equal(t, "", got[0].Source)
	assert.Equal(t, "Meta", got[1].Source)
	assert.InDelta(t, 1234.56, got[1].Amount, 1e-9)
	assert.InDelta(t, 246.912, got[1].LTV, 1e-9)

	require.NoError(t, repo.Replace(ctx, sampleRecords()[:1]))
	got, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1, "replace drops the previous contents")

	require.NoError(t, repo.Replace(ctx, nil))
	got, err = repo.List(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
	require.True(t, db.Migrator().HasTable("general_ltv_clean"))
}

func TestRepositoryReplaceFailureKeepsPreviousRows(t *testing.T) {
	db := newTestDB(t)
	repo, err := NewRepository(db, "general_ltv_clean", 1)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, repo.Replace(ctx, sampleRecords()))

	inserts := 0
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("fail_second_batch", func(tx *gorm.DB) {
		inserts++
		if inserts > 1 {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	err = repo.Replace(ctx, append(sampleRecords(), sampleRecords()...))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	got, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2, "previous contents survive a failed replace")
	assert.False(t, db.Migrator().HasTable("general_ltv_clean_staging"))
}

func TestNewRepositoryValidates(t *testing.T) {
	_, err := NewRepository(nil, "x", 0)
	require.Error(t, err)
	_, err = NewRepository(newTestDB(t), "  ", 0)
	require.Error(t, err)
}
