// Package roster decodes uploaded participant spreadsheets into raw rows.
package roster

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jnst/certificate-issuance/internal/model"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither xlsx nor csv.
	ErrUnsupportedFormat = errors.New("unsupported roster format")
	// ErrNoHeader is returned when the first row has no column names.
	ErrNoHeader = errors.New("roster has no header row")
)

// Format identifies a roster encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var zipMagic = []byte("PK\x03\x04")

// DetectFormat picks the decoder from the file extension, falling back to the content.
func DetectFormat(filename string, data []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	}

	if bytes.HasPrefix(data, zipMagic) {
		return FormatXLSX, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
}

// Decode reads the first sheet of an xlsx workbook, or a csv file, into rows keyed by header.
// Row numbers match the source sheet, so the header is row 1 and blank rows are skipped.
func Decode(filename string, data []byte) ([]model.RawRow, error) {
	format, err := DetectFormat(filename, data)
	if err != nil {
		return nil, err
	}

	var records [][]string

	switch format {
	case FormatXLSX:
		records, err = readXLSX(data)
	case FormatCSV:
		records, err = readCSV(data)
	}

	if err != nil {
		return nil, err
	}

	return toRows(records)
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}

	// Raw values keep date cells as serial numbers instead of locale-formatted text.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		rows = append(rows, rec)
	}

	return rows, nil
}

func toRows(records [][]string) ([]model.RawRow, error) {
	if len(records) == 0 {
		return nil, ErrNoHeader
	}

	header := make([]string, len(records[0]))
	named := 0

	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
		if header[i] != "" {
			named++
		}
	}

	if named == 0 {
		return nil, ErrNoHeader
	}

	rows := make([]model.RawRow, 0, len(records)-1)

	for i, rec := range records[1:] {
		if blank(rec) {
			continue
		}

		fields := make(map[string]string, len(header))
		for col, name := range header {
			if name == "" {
				continue
			}

			if _, dup := fields[name]; dup {
				continue
			}

			if col < len(rec) {
				fields[name] = rec[col]
			} else {
				fields[name] = ""
			}
		}

		rows = append(rows, model.RawRow{Line: i + 2, Fields: fields})
	}

	return rows, nil
}

func blank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}

	return true
}
