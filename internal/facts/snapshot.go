package facts

import (
	"math"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/ltv-backend/pkg/enums"
	"github.com/cespare/xxhash/v2"
)

// Snapshot is an immutable, date-sorted fact table served to readers.
type Snapshot struct {
	records  []Record
	origin   enums.SourceKind
	loadedAt time.Time
	version  int64
	digest   uint64
}

// NewSnapshot copies records, sorting them by date, so later mutation of the
// input cannot leak into readers.
func NewSnapshot(records []Record, origin enums.SourceKind, loadedAt time.Time) *Snapshot {
	owned := make([]Record, len(records))
	copy(owned, records)
	sort.SliceStable(owned, func(i, j int) bool {
		return owned[i].Date.Before(owned[j].Date)
	})
	return &Snapshot{records: owned, origin: origin, loadedAt: loadedAt.UTC(), digest: digest(owned)}
}

// digest hashes the record contents so replicas holding the same table agree
// on its identity regardless of when or from where they loaded it.
func digest(records []Record) uint64 {
	h := xxhash.New()
	buf := make([]byte, 0, 128)
	for i := range records {
		r := &records[i]
		buf = buf[:0]
		buf = strconv.AppendInt(buf, r.Date.UTC().Unix(), 10)
		buf = append(buf, 0)
		buf = append(buf, r.Country...)
		buf = append(buf, 0)
		buf = append(buf, r.Affiliate...)
		buf = append(buf, 0)
		buf = append(buf, r.Source...)
		buf = append(buf, 0)
		buf = strconv.AppendUint(buf, math.Float64bits(r.Amount), 16)
		buf = append(buf, 0)
		buf = strconv.AppendInt(buf, int64(r.FTDCount), 10)
		buf = append(buf, 0)
		buf = strconv.AppendUint(buf, math.Float64bits(r.LTV), 16)
		buf = append(buf, '\n')
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}

// Records returns a copy of the fact rows.
func (s *Snapshot) Records() []Record {
	if s == nil {
		return nil
	}
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Each visits records in date order without copying; fn must not retain r.
func (s *Snapshot) Each(fn func(r *Record)) {
	if s == nil {
		return
	}
	for i := range s.records {
		fn(&s.records[i])
	}
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

func (s *Snapshot) Origin() enums.SourceKind {
	if s == nil {
		return ""
	}
	return s.origin
}

func (s *Snapshot) LoadedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.loadedAt
}

// Digest identifies the snapshot contents.
func (s *Snapshot) Digest() uint64 {
	if s == nil {
		return 0
	}
	return s.digest
}

// Version increases by one with every swap into a SnapshotStore.
func (s *Snapshot) Version() int64 {
	if s == nil {
		return 0
	}
	return s.version
}

// SnapshotStore holds the snapshot currently served. Readers never observe a
// partially loaded table: reload builds a new Snapshot and swaps the pointer.
type SnapshotStore struct {
	current atomic.Pointer[Snapshot]
	seq     atomic.Int64
}

func NewSnapshotStore() *SnapshotStore {
	store := &SnapshotStore{}
	store.current.Store(NewSnapshot(nil, "", time.Time{}))
	return store
}

// Load returns the current snapshot; it is never nil.
func (s *SnapshotStore) Load() *Snapshot {
	return s.current.Load()
}

// Swap installs next and returns the snapshot it replaced.
func (s *SnapshotStore) Swap(next *Snapshot) *Snapshot {
	if next == nil {
		next = NewSnapshot(nil, "", time.Now())
	}
	stamped := *next
	stamped.version = s.seq.Add(1)
	return s.current.Swap(&stamped)
}
