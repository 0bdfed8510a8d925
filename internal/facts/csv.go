package facts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/angelmondragon/ltv-backend/internal/normalize"
	pkgerrors "github.com/angelmondragon/ltv-backend/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const dateLayout = "2006-01-02"

var snapshotHeader = []string{"date", "country", "affiliate", "source", "amount", "ftd_count", "ltv"}

// column aliases accepted when reading snapshots produced by older exports
var snapshotAliases = map[string][]string{
	"date":      {"date", "fecha"},
	"country":   {"country", "pais"},
	"affiliate": {"affiliate", "afiliado"},
	"source":    {"source"},
	"amount":    {"amount", "usd_total", "usd", "total_amount"},
	"ftd_count": {"ftd_count", "count_ftd", "ftd", "ftds", "count"},
	"ltv":       {"ltv", "general_ltv"},
}

var requiredSnapshotColumns = []string{"date", "country", "affiliate", "amount"}

// ErrSnapshotMissing is returned when the snapshot file does not exist.
var ErrSnapshotMissing = errors.New("snapshot file missing")

// WriteSnapshotFile writes records as a UTF-8 CSV with a byte order mark. The
// file is written to a temporary sibling first and renamed into place.
func WriteSnapshotFile(path string, records []Record) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := encodeSnapshot(tmp, records); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}

func encodeSnapshot(w io.Writer, records []Record) error {
	bom := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(bom)
	if err := cw.Write(snapshotHeader); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Date.UTC().Format(dateLayout),
			r.Country,
			r.Affiliate,
			r.Source,
			strconv.FormatFloat(r.Amount, 'f', 2, 64),
			strconv.Itoa(r.FTDCount),
			strconv.FormatFloat(r.LTV, 'f', 4, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write snapshot row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return bom.Close()
}

// ReadResult is the outcome of loading a snapshot file.
type ReadResult struct {
	Records []Record
	// Skipped counts rows dropped for an invalid date or a missing label.
	Skipped int
	// Duplicates counts rows superseded by a later row with the same key.
	Duplicates int
}

// ReadSnapshotFile loads and re-normalizes a snapshot written by
// WriteSnapshotFile or an older export using the legacy column names.
func ReadSnapshotFile(path string, bounds normalize.DateBounds) (ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ReadResult{}, fmt.Errorf("%w: %s", ErrSnapshotMissing, path)
		}
		return ReadResult{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return DecodeSnapshot(f, bounds)
}

// DecodeSnapshot parses snapshot CSV from r; a leading BOM is optional.
func DecodeSnapshot(r io.Reader, bounds normalize.DateBounds) (ReadResult, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ReadResult{}, nil
		}
		return ReadResult{}, fmt.Errorf("read snapshot header: %w", err)
	}
	cols, err := resolveSnapshotColumns(header)
	if err != nil {
		return ReadResult{}, err
	}

	var (
		result ReadResult
		parsed []Record
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ReadResult{}, fmt.Errorf("read snapshot row: %w", err)
		}
		rec, ok := decodeSnapshotRow(row, cols, bounds)
		if !ok {
			result.Skipped++
			continue
		}
		parsed = append(parsed, rec)
	}

	result.Records, result.Duplicates = dedupSnapshot(parsed)
	return result, nil
}

func resolveSnapshotColumns(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	cols := make(map[string]int, len(snapshotAliases))
	for canonical, aliases := range snapshotAliases {
		cols[canonical] = -1
		for _, alias := range aliases {
			if i, ok := index[alias]; ok {
				cols[canonical] = i
				break
			}
		}
	}
	var missing []string
	for _, name := range requiredSnapshotColumns {
		if cols[name] < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeSourceFormat, "snapshot header is missing required columns").
			WithDetails(map[string]any{"missing": missing, "header": header})
	}
	return cols, nil
}

func decodeSnapshotRow(row []string, cols map[string]int, bounds normalize.DateBounds) (Record, bool) {
	field := func(name string) string {
		i := cols[name]
		if i < 0 || i >= len(row) {
			return ""
		}
		return row[i]
	}

	date, ok := normalize.ParseDate(field("date"), bounds)
	if !ok {
		return Record{}, false
	}
	rec := Record{
		Date:      date,
		Country:   normalize.Label(field("country")),
		Affiliate: normalize.Label(field("affiliate")),
		Source:    normalize.Label(field("source")),
		Amount:    normalize.Amount(field("amount")),
		FTDCount:  FTDCount(field("ftd_count")),
	}
	if rec.Country == "" || rec.Affiliate == "" {
		return Record{}, false
	}
	rec.LTV = LTV(rec.Amount, rec.FTDCount, field("ltv"))
	return rec, true
}

type snapshotKey struct {
	key    Key
	source string
}

// dedupSnapshot keeps the last record per (date, country, affiliate, source)
// while preserving the position of that last occurrence.
func dedupSnapshot(records []Record) ([]Record, int) {
	last := make(map[snapshotKey]int, len(records))
	for i, r := range records {
		last[snapshotKey{key: r.Key(), source: r.Source}] = i
	}
	out := make([]Record, 0, len(last))
	for i, r := range records {
		if last[snapshotKey{key: r.Key(), source: r.Source}] == i {
			out = append(out, r)
		}
	}
	return out, len(records) - len(out)
}
