package fileio

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedFile = errors.New("unsupported file")
	ErrHeaderRow       = errors.New("header row out of range")
)

// Table: таблица с упорядоченными заголовками; строки выровнены по ширине шапки.
type Table struct {
	Headers []string
	Rows    [][]string
}

// ReadTable: выберет парсер по расширению. headerRow: номер строки заголовков (1-based).
func ReadTable(r io.Reader, filename string, headerRow int) (Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xlsx":
		rows, err = readXLSX(r)
	case ".xls":
		rows, err = readXLS(r)
	case ".csv", ".tsv", ".txt":
		rows, err = readCSV(r, ext == ".tsv")
	default:
		return Table{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, filename)
	}
	if err != nil {
		return Table{}, err
	}
	if len(rows) == 0 {
		return Table{}, nil
	}
	if headerRow > len(rows) {
		return Table{}, fmt.Errorf("%w: header row %d beyond %d rows", ErrHeaderRow, headerRow, len(rows))
	}
	h := pickHeader(rows, headerRow)
	return Table{Headers: h, Rows: dataRows(rows, len(h), headerRow)}, nil
}

// ReadHeaders: только строка заголовков.
func ReadHeaders(r io.Reader, filename string, headerRow int) ([]string, error) {
	t, err := ReadTable(r, filename, headerRow)
	if err != nil {
		return nil, err
	}
	return t.Headers, nil
}

// WriteTable пишет таблицу в формате по расширению (.csv или .xlsx).
func WriteTable(w io.Writer, filename string, t Table) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return writeXLSX(w, t)
	case ".csv", "":
		return writeCSV(w, t)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, filename)
	}
}

// pickHeader: берёт строку заголовков и подставляет Column N для пустых.
func pickHeader(rows [][]string, headerRow int) []string {
	idx := headerRow - 1
	if idx < 0 {
		idx = 0
	}
	h := rows[idx]
	out := make([]string, len(h))
	for i, v := range h {
		v = normalizeCell(v)
		if v == "" {
			v = fmt.Sprintf("Column %d", i+1)
		}
		out[i] = v
	}
	return out
}

// dataRows: строки после заголовков, выровненные по ширине шапки; полностью пустые пропускаются.
func dataRows(rows [][]string, width, headerRow int) [][]string {
	start := headerRow // первая строка после заголовков
	if start < 1 {
		start = 1
	}
	var out [][]string
	for r := start; r < len(rows); r++ {
		rec := make([]string, width)
		empty := true
		for c := 0; c < width; c++ {
			if c < len(rows[r]) {
				rec[c] = rows[r][c]
			}
			if strings.TrimSpace(rec[c]) != "" {
				empty = false
			}
		}
		if !empty {
			out = append(out, rec)
		}
	}
	return out
}

// normalizeCell: ячейка без краевых и неразрывных пробелов.
func normalizeCell(s string) string {
	s = strings.NewReplacer("\u00A0", " ", "\u202F", " ").Replace(s)
	return strings.TrimSpace(s)
}
