package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"groupcoh/domain/signal"
	"groupcoh/internal"
	"groupcoh/internal/errors"
)

// GroupReader reads a channel group from an Excel or CSV file
type GroupReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	config   ReaderConfig
	logger   *internal.Logger
}

// NewGroupReader creates a reader; the file type follows the extension.
func NewGroupReader(filePath string, config ReaderConfig) *GroupReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &GroupReader{
		filePath: filePath,
		fileType: fileType,
		config:   config,
		logger:   internal.DefaultLogger.With("excel"),
	}
}

// ReadGroup reads the file into a subjects x samples group. Columns may have
// different lengths; every subject is cut to the shortest one.
func (r *GroupReader) ReadGroup() (*GroupData, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.InvalidInput(fmt.Sprintf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath))
	}

	var rows [][]string
	var err error
	readStart := time.Now()
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	default:
		rows, err = r.readExcelRows()
	}
	if err != nil {
		return nil, err
	}
	r.logger.Debug("%s read in %.2fms (%d rows)", r.filePath, float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	return r.processRows(rows)
}

func (r *GroupReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.Wrapc(errors.CodeInvalidInput, err, "failed to open Excel file")
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.InvalidInput("Excel file has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapc(errors.CodeInvalidInput, err, "failed to read sheet %q", sheet)
	}
	return rows, nil
}

func (r *GroupReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.Wrapc(errors.CodeInvalidInput, err, "failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapc(errors.CodeInvalidInput, err, "failed to read CSV file")
	}
	return rows, nil
}

// processRows turns sample rows into one series per column.
func (r *GroupReader) processRows(rows [][]string) (*GroupData, error) {
	var names []string
	if r.config.Header {
		if len(rows) == 0 {
			return nil, errors.InvalidInput("file has no header row")
		}
		for _, h := range rows[0] {
			names = append(names, strings.TrimSpace(h))
		}
		rows = rows[1:]
	} else if len(rows) > 0 {
		for j := range rows[0] {
			names = append(names, fmt.Sprintf("subject_%d", j+1))
		}
	}
	if len(names) == 0 || len(rows) == 0 {
		return nil, errors.InvalidInput("file must have at least one column and one data row")
	}

	columns := make([][]float64, len(names))
	done := make([]bool, len(names))
	for i, row := range rows {
		for j := range columns {
			if done[j] {
				continue
			}
			cell := ""
			if j < len(row) {
				cell = strings.TrimSpace(row[j])
			}
			// a column ends at its first blank cell
			if cell == "" {
				done[j] = true
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.InvalidInput(fmt.Sprintf("row %d column %q: %q is not a number", i+1, names[j], cell))
			}
			columns[j] = append(columns[j], v)
		}
	}

	samples := len(columns[0])
	for _, c := range columns[1:] {
		if len(c) < samples {
			samples = len(c)
		}
	}
	if samples == 0 {
		return nil, errors.InvalidInput("at least one column has no samples")
	}
	if r.config.MaxSamples > 0 && r.config.MaxSamples < samples {
		samples = r.config.MaxSamples
	}
	for j := range columns {
		if len(columns[j]) > samples {
			r.logger.Debug("column %q truncated from %d to %d samples", names[j], len(columns[j]), samples)
		}
		columns[j] = columns[j][:samples]
	}

	group, err := signal.NewGroup(columns)
	if err != nil {
		return nil, errors.ShapeError(err)
	}
	r.logger.Info("%s: %d subjects x %d samples", filepath.Base(r.filePath), group.Subjects(), group.Samples())
	return &GroupData{Subjects: names, Group: group, Source: r.filePath}, nil
}
