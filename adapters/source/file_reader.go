package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"abtest/domain/experiment"
	"abtest/internal"

	"github.com/xuri/excelize/v2"
)

// Reader delivers a raw table to the analysis pipeline
type Reader interface {
	Read(ctx context.Context) (experiment.RawTable, error)
}

// FileReader reads CSV or XLSX files. The XLSX reader uses the first sheet.
type FileReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

// NewFileReader picks the format from the file extension; anything not .csv is read as xlsx
func NewFileReader(filePath string, logger *internal.Logger) *FileReader {
	fileType := "xlsx"
	if strings.EqualFold(filepath.Ext(filePath), ".csv") {
		fileType = "csv"
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &FileReader{filePath: filePath, fileType: fileType, logger: logger}
}

// Read loads the file into a RawTable with normalized headers
func (r *FileReader) Read(ctx context.Context) (experiment.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return experiment.RawTable{}, err
	}
	r.logger.Debug("[FileReader] reading %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return experiment.RawTable{}, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	var rows [][]string
	var err error
	start := time.Now()
	switch r.fileType {
	case "csv":
		rows, err = r.readCSV()
	default:
		rows, err = r.readXLSX()
	}
	if err != nil {
		return experiment.RawTable{}, err
	}
	r.logger.Info("[FileReader] %s read in %.2fms (%d rows)",
		filepath.Base(r.filePath), float64(time.Since(start).Nanoseconds())/1e6, len(rows))

	return TableFromRows(rows)
}

func (r *FileReader) readCSV() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func (r *FileReader) readXLSX() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Excel file has no sheets: %s", r.filePath)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// TableFromRows turns a header row plus data rows into a RawTable. Short rows leave the
// trailing columns empty, which the preprocessor treats as missing.
func TableFromRows(rows [][]string) (experiment.RawTable, error) {
	if len(rows) < 2 {
		return experiment.RawTable{}, fmt.Errorf("input must have a header row and at least one data row")
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = experiment.NormalizeHeader(h)
	}

	table := experiment.RawTable{Headers: headers, Rows: make([]experiment.RawRow, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		raw := make(experiment.RawRow, len(headers))
		for j, h := range headers {
			if j < len(row) {
				raw[h] = strings.TrimSpace(row[j])
			} else {
				raw[h] = ""
			}
		}
		table.Rows = append(table.Rows, raw)
	}
	return table, nil
}
