package sources

import (
	"context"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/angelmondragon/ltv-backend/internal/facts"
	"github.com/angelmondragon/ltv-backend/pkg/enums"
	"github.com/angelmondragon/ltv-backend/pkg/errors"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// File reads a CSV or XLSX dump of the source table. The format follows the
// file extension; anything that is not a workbook is read as CSV.
type File struct {
	path     string
	sheet    string
	cols     Columns
	skipRows int
	logg     *logger.Logger
}

func NewFile(path, sheet string, cols Columns, skipRows int, logg *logger.Logger) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("fallback file path required")
	}
	return &File{path: path, sheet: sheet, cols: cols, skipRows: skipRows, logg: logg}, nil
}

func (f *File) Kind() enums.SourceKind {
	if f.workbook() {
		return enums.SourceKindXLSX
	}
	return enums.SourceKindCSV
}

func (f *File) Name() string { return f.path }

func (f *File) workbook() bool {
	switch strings.ToLower(filepath.Ext(f.path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return true
	}
	return false
}

// Fetch loads the whole file. A missing file is a dependency error.
func (f *File) Fetch(ctx context.Context) ([]facts.RawRow, error) {
	if _, err := os.Stat(f.path); err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrap(errors.CodeDependency, err, fmt.Sprintf("fallback file %s not found", f.path))
		}
		return nil, errors.Wrap(errors.CodeDependency, err, "stat fallback file")
	}

	var (
		table [][]string
		err   error
	)
	if f.workbook() {
		table, err = f.readWorkbook()
	} else {
		table, err = f.readCSV()
	}
	if err != nil {
		return nil, err
	}
	if len(table) == 0 {
		return nil, nil
	}
	return mapTable(f.path, table[0], skipLeading(ctx, f.logg, table[1:], f.skipRows), f.cols)
}

func (f *File) readCSV() ([][]string, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "open fallback file")
	}
	defer file.Close()

	r := csv.NewReader(transform.NewReader(file, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var table [][]string
	for {
		rec, err := r.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.CodeSourceFormat, err, "parse fallback csv")
		}
		table = append(table, rec)
	}
	return table, nil
}

func (f *File) readWorkbook() ([][]string, error) {
	book, err := excelize.OpenFile(f.path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeSourceFormat, err, "open fallback workbook")
	}
	defer book.Close()

	sheet := f.sheet
	if sheet == "" {
		sheet = book.GetSheetName(book.GetActiveSheetIndex())
	}
	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrap(errors.CodeSourceFormat, err, fmt.Sprintf("read sheet %q", sheet))
	}
	return rows, nil
}
