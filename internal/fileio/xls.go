package fileio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	xls "github.com/extrame/xls"
)

// кодировки строк в старых .xls, в порядке попыток
var xlsCharsets = []string{"windows-1251", "utf-8", "koi8-r"}

// Row.LastCol() у extrame/xls врёт на объединённых ячейках, поэтому
// ширину листа ищем сами в пределах xlsProbeCols.
const xlsProbeCols = 512

func readXLS(r io.Reader) ([][]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	wb, err := openXLS(b)
	if err != nil {
		return nil, err
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	last := int(sheet.MaxRow)
	grid := make([][]string, 0, last+1)
	width := 0
	for i := 0; i <= last; i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, 0, 16)
		for j := 0; j < xlsProbeCols; j++ {
			v := normalizeCell(row.Col(j))
			cells = append(cells, v)
			if v != "" {
				width = max(width, j+1)
			}
		}
		grid = append(grid, cells)
	}

	// обрезаем хвост пустых колонок по самой широкой строке
	for i, cells := range grid {
		if len(cells) > width {
			grid[i] = cells[:width]
		}
	}
	return grid, nil
}

func openXLS(b []byte) (*xls.WorkBook, error) {
	var lastErr error
	for _, cs := range xlsCharsets {
		wb, err := xls.OpenReader(bytes.NewReader(b), cs)
		if err == nil && wb != nil {
			return wb, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("empty workbook")
	}
	return nil, fmt.Errorf("open xls: %w", lastErr)
}
