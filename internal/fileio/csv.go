package fileio

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// readCSV reads all CSV records, auto-detecting encoding and converting to UTF-8.
// UTF-8 (with or without BOM) and Windows-1251 are supported.
func readCSV(r io.Reader, tab bool) ([][]string, error) {
	br := bufio.NewReader(r)

	// Peek a bit to detect encoding
	peek, _ := br.Peek(2048)
	cs := "utf-8"
	if len(peek) > 0 {
		if det, err := chardet.NewTextDetector().DetectBest(peek); err == nil && det != nil {
			cs = strings.ToLower(det.Charset)
		}
	}

	// BOMOverride снимает BOM, если он есть; иначе работает запасной декодер
	var dec transform.Transformer
	switch cs {
	case "windows-1251", "cp1251":
		dec = unicode.BOMOverride(charmap.Windows1251.NewDecoder())
	default:
		dec = unicode.BOMOverride(transform.Nop)
	}

	cr := csv.NewReader(transform.NewReader(br, dec))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if tab {
		cr.Comma = '\t'
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func writeCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
