// Package xlsx keeps the harvesting tables in an Excel workbook.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/keilos1/harvestplan/core/model"
	"github.com/keilos1/harvestplan/core/store"
)

// Sheet names of the workbook.
const (
	SheetIncome    = "Income"
	SheetLabor     = "Labor"
	SheetResources = "Resources"
	SheetArea      = "Area"
)

var headers = map[string][]any{
	SheetIncome:    {"Site", "Month", "Income"},
	SheetLabor:     {"Site", "Month", "Labor"},
	SheetResources: {"Month", "Labor hours"},
	SheetArea:      {"Site", "Area"},
}

// Store reads and writes a workbook with one sheet per table. Rate sheets
// hold one row per site and month; an empty value cell means the rate is
// not specified.
type Store struct {
	mu   sync.Mutex
	path string
}

var _ store.Repository = (*Store)(nil)

// New returns a Store for the workbook at path.
func New(path string) *Store { return &Store{path: path} }

// Path returns the workbook location.
func (s *Store) Path() string { return s.path }

// Init writes the example dataset when the workbook does not exist yet. It
// reports whether a file was created.
func (s *Store) Init(ctx context.Context) (bool, error) {
	if _, err := os.Stat(s.path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := s.Save(ctx, model.DefaultDataset()); err != nil {
		return false, err
	}
	return true, nil
}

// Load reads the four sheets.
func (s *Store) Load(ctx context.Context) (model.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return model.Dataset{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	d := model.NewDataset()
	if err := readRates(f, SheetIncome, d.Income); err != nil {
		return model.Dataset{}, err
	}
	if err := readRates(f, SheetLabor, d.Labor); err != nil {
		return model.Dataset{}, err
	}
	err = readCaps(f, SheetResources, func(id int, v float64) { d.LaborCaps[model.Month(id)] = v })
	if err != nil {
		return model.Dataset{}, err
	}
	err = readCaps(f, SheetArea, func(id int, v float64) { d.AreaCaps[model.SiteID(id)] = v })
	if err != nil {
		return model.Dataset{}, err
	}
	if err := d.Validate(); err != nil {
		return model.Dataset{}, fmt.Errorf("%s: %w", s.path, err)
	}
	return d, nil
}

// Save overwrites the workbook with d.
func (s *Store) Save(ctx context.Context, d model.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SheetIncome); err != nil {
		return err
	}
	for _, name := range []string{SheetLabor, SheetResources, SheetArea} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	if err := writeRows(f, SheetIncome, rateRows(d.Income)); err != nil {
		return err
	}
	if err := writeRows(f, SheetLabor, rateRows(d.Labor)); err != nil {
		return err
	}
	var res [][]any
	for _, m := range d.Months() {
		res = append(res, []any{int(m), d.LaborCaps[m]})
	}
	if err := writeRows(f, SheetResources, res); err != nil {
		return err
	}
	var area [][]any
	for _, id := range d.Sites() {
		area = append(area, []any{int(id), d.AreaCaps[id]})
	}
	if err := writeRows(f, SheetArea, area); err != nil {
		return err
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func rateRows(r model.Rates) [][]any {
	rows := make([][]any, 0, len(r))
	for _, e := range r.Entries() {
		rows = append(rows, []any{int(e.Site), int(e.Month), e.Value})
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	h := headers[sheet]
	if err := f.SetSheetRow(sheet, "A1", &h); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func readRates(f *excelize.File, sheet string, dst model.Rates) error {
	rows, err := sheetRows(f, sheet)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if blank(row) {
			continue
		}
		line := i + 2
		site, err := intCell(sheet, line, row, 0)
		if err != nil {
			return err
		}
		month, err := intCell(sheet, line, row, 1)
		if err != nil {
			return err
		}
		v, ok, err := floatCell(sheet, line, row, 2)
		if err != nil {
			return err
		}
		if ok {
			dst[model.Pair{Site: model.SiteID(site), Month: model.Month(month)}] = v
		}
	}
	return nil
}

func readCaps(f *excelize.File, sheet string, set func(id int, v float64)) error {
	rows, err := sheetRows(f, sheet)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if blank(row) {
			continue
		}
		line := i + 2
		id, err := intCell(sheet, line, row, 0)
		if err != nil {
			return err
		}
		v, ok, err := floatCell(sheet, line, row, 1)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: sheet %s row %d: missing value", model.ErrInvalidInput, sheet, line)
		}
		set(id, v)
	}
	return nil
}

// sheetRows returns the rows below the header.
func sheetRows(f *excelize.File, sheet string) ([][]string, error) {
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: sheet %s not found", model.ErrInvalidInput, sheet)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func intCell(sheet string, line int, row []string, col int) (int, error) {
	raw := cell(row, col)
	// Numbers written by other tools may come back as "3.0".
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v != float64(int(v)) {
		return 0, fmt.Errorf("%w: sheet %s row %d: %q is not an integer", model.ErrInvalidInput, sheet, line, raw)
	}
	return int(v), nil
}

func floatCell(sheet string, line int, row []string, col int) (float64, bool, error) {
	raw := cell(row, col)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: sheet %s row %d: %q is not a number", model.ErrInvalidInput, sheet, line, raw)
	}
	return v, true, nil
}
