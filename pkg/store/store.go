// Package store persists the catalog as a multi-sheet xlsx workbook, one
// collection per sheet with a fixed named-column schema. Batch link
// persistence rewrites only the wrapped-link cells of the touched rows; full
// sheet rewrites happen only when the fetch step replaces a collection.
package store

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	errs "cinepipe/pkg/errors"
	"cinepipe/pkg/logger"
	"cinepipe/pkg/models"
)

// Store is the workbook-backed row store. All methods open and close the
// workbook per call; the pipeline is single-threaded so there is no
// concurrent writer, and saves go through a temp file and rename so readers
// never observe a partial write.
type Store struct {
	path   string
	logger logger.Logger
}

// New creates a store for the workbook at path. The file is created lazily
// on first write.
func New(path string) *Store {
	return &Store{
		path:   path,
		logger: logger.GetLogger(),
	}
}

// Path returns the workbook path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the workbook file exists.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// RowCounts returns the data-row count per sheet. A missing workbook yields
// an empty map, not an error, so first runs detect every row as new.
func (s *Store) RowCounts() (map[string]int, error) {
	counts := make(map[string]int)

	if !s.Exists() {
		return counts, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, errs.New(errs.ErrorTypePersistence,
			fmt.Sprintf("failed to open workbook: %v", err), 0)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, errs.New(errs.ErrorTypeParsing,
				fmt.Sprintf("failed to read sheet %s: %v", sheet, err), 0)
		}
		// First row is the header
		n := len(rows) - 1
		if n < 0 {
			n = 0
		}
		counts[sheet] = n
	}

	return counts, nil
}

// LoadCollection reads one collection from the workbook. A missing workbook
// or missing sheet degrades to an empty collection rather than an error.
func (s *Store) LoadCollection(name string) (*models.Collection, error) {
	collection := &models.Collection{Name: name}

	if !s.Exists() {
		return collection, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, errs.New(errs.ErrorTypePersistence,
			fmt.Sprintf("failed to open workbook: %v", err), 0)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(name)
	if err != nil || idx == -1 {
		return collection, nil
	}

	rows, err := f.GetRows(name)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeParsing,
			fmt.Sprintf("failed to read sheet %s: %v", name, err), 0)
	}
	if len(rows) <= 1 {
		return collection, nil
	}

	// Column positions come from the header row, so a reordered or partially
	// missing schema still loads.
	header := columnIndex(rows[0])

	collection.Rows = make([]models.ItemRow, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		collection.Rows = append(collection.Rows, cellsToRow(cells, header))
	}

	return collection, nil
}

// ReplaceCollection rewrites one sheet wholesale. Used by the fetch step,
// which replaces or extends collections once per cycle; batch link saves use
// UpdateWrappedLinks instead.
func (s *Store) ReplaceCollection(collection *models.Collection) error {
	f, fresh, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	// Write into a scratch sheet and swap names afterwards. Excelize
	// refuses to delete a workbook's only sheet, so rewriting in place
	// could leave stale trailing rows behind.
	const scratch = "__replace__"
	if _, err := f.NewSheet(scratch); err != nil {
		return errs.New(errs.ErrorTypePersistence,
			fmt.Sprintf("failed to create sheet for %s: %v", collection.Name, err), 0)
	}

	header := make([]interface{}, len(models.Columns))
	for i, col := range models.Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(scratch, "A1", &header); err != nil {
		return errs.New(errs.ErrorTypePersistence,
			fmt.Sprintf("failed to write header for %s: %v", collection.Name, err), 0)
	}

	for i := range collection.Rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := rowToCells(&collection.Rows[i])
		if err := f.SetSheetRow(scratch, cell, &values); err != nil {
			return errs.New(errs.ErrorTypePersistence,
				fmt.Sprintf("failed to write row %d of %s: %v", i, collection.Name, err), 0)
		}
	}

	if idx, _ := f.GetSheetIndex(collection.Name); idx != -1 {
		if err := f.DeleteSheet(collection.Name); err != nil {
			return errs.New(errs.ErrorTypePersistence,
				fmt.Sprintf("failed to reset sheet %s: %v", collection.Name, err), 0)
		}
	}
	if fresh && collection.Name != "Sheet1" {
		// A new workbook starts with a default sheet we never use
		_ = f.DeleteSheet("Sheet1")
	}
	if err := f.SetSheetName(scratch, collection.Name); err != nil {
		return errs.New(errs.ErrorTypePersistence,
			fmt.Sprintf("failed to finalize sheet %s: %v", collection.Name, err), 0)
	}

	if err := s.saveAtomic(f); err != nil {
		return err
	}

	s.logger.InfoWithFields("collection replaced", map[string]interface{}{
		"collection": collection.Name,
		"rows":       len(collection.Rows),
	})
	return nil
}

// UpdateWrappedLinks rewrites only the wrapped-link cells for the given row
// indexes (0-based data rows). This is the per-batch persistence path: the
// rest of the sheet is untouched.
func (s *Store) UpdateWrappedLinks(collection string, links map[int]string) error {
	if len(links) == 0 {
		return nil
	}

	f, _, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(collection); idx == -1 {
		return errs.New(errs.ErrorTypeNotFound,
			fmt.Sprintf("sheet %s not found", collection), 0)
	}

	col := wrappedLinkColumnIndex()
	for rowIdx, link := range links {
		cell, _ := excelize.CoordinatesToCellName(col, rowIdx+2)
		if err := f.SetCellValue(collection, cell, link); err != nil {
			return errs.New(errs.ErrorTypePersistence,
				fmt.Sprintf("failed to set wrapped link at row %d of %s: %v", rowIdx, collection, err), 0)
		}
	}

	if err := s.saveAtomic(f); err != nil {
		return err
	}

	s.logger.DebugWithFields("wrapped links persisted", map[string]interface{}{
		"collection": collection,
		"links":      len(links),
	})
	return nil
}

// open returns the workbook, creating an in-memory one when the file does
// not exist yet. The second return reports whether the workbook is fresh.
func (s *Store) open() (*excelize.File, bool, error) {
	if s.Exists() {
		f, err := excelize.OpenFile(s.path)
		if err != nil {
			return nil, false, errs.New(errs.ErrorTypePersistence,
				fmt.Sprintf("failed to open workbook: %v", err), 0)
		}
		return f, false, nil
	}
	return excelize.NewFile(), true, nil
}

// saveAtomic writes the workbook via a temp file and rename so a concurrent
// reader always sees a complete file.
func (s *Store) saveAtomic(f *excelize.File) error {
	tempPath := s.path + ".tmp.xlsx"
	if err := f.SaveAs(tempPath); err != nil {
		os.Remove(tempPath)
		return errs.New(errs.ErrorTypePersistence,
			fmt.Sprintf("failed to write workbook: %v", err), 0)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return errs.New(errs.ErrorTypePersistence,
			fmt.Sprintf("failed to replace workbook: %v", err), 0)
	}
	return nil
}

// columnIndex maps header names to their 0-based positions
func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	return idx
}

func wrappedLinkColumnIndex() int {
	for i, col := range models.Columns {
		if col == models.WrappedLinkColumn {
			return i + 1 // excelize columns are 1-based
		}
	}
	return len(models.Columns)
}

func rowToCells(r *models.ItemRow) []interface{} {
	return []interface{}{
		r.ID,
		r.Title,
		r.ReleaseDate,
		formatFloat(r.Rating),
		formatFloat(r.Popularity),
		strings.Join(r.Genres, ", "),
		r.Overview,
		r.Poster,
		r.SourceURL,
		r.WrappedLink,
	}
}

func cellsToRow(cells []string, header map[string]int) models.ItemRow {
	get := func(col string) string {
		i, ok := header[col]
		if !ok || i >= len(cells) {
			return ""
		}
		return cells[i]
	}

	row := models.ItemRow{
		ID:          get("ID"),
		Title:       get("Title"),
		ReleaseDate: get("Release Date"),
		Overview:    get("Overview"),
		Poster:      get("Poster"),
		SourceURL:   get("Source URL"),
		WrappedLink: get(models.WrappedLinkColumn),
	}
	row.Rating, _ = strconv.ParseFloat(get("Rating"), 64)
	row.Popularity, _ = strconv.ParseFloat(get("Popularity"), 64)
	if genres := get("Genres"); genres != "" {
		for _, g := range strings.Split(genres, ",") {
			if g = strings.TrimSpace(g); g != "" {
				row.Genres = append(row.Genres, g)
			}
		}
	}
	return row
}

func formatFloat(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
