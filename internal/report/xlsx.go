package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/climate-data-pipeline/internal/domain"
	"github.com/couchcryptid/climate-data-pipeline/internal/insights"
)

const (
	sheetYearly     = "EDA_Results"
	sheetVolatility = "Regional_Volatility"
)

// WriteXLSX writes a workbook mirroring EDA_RESULTS.csv, plus the regional
// volatility ranking on a second sheet.
func WriteXLSX(w io.Writer, global domain.GlobalTrends, ranking []insights.CountryVolatility) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetYearly); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeHeader(f, sheetYearly, EDAHeader); err != nil {
		return err
	}
	for i, r := range EDARows(global) {
		row := i + 2
		values := []any{r.Year, r.Temp, r.CO2, r.Sea, r.Precip, r.Humidity, r.Wind, r.TempChange, r.CO2Change}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheetYearly, cell, &values); err != nil {
			return fmt.Errorf("write year %d: %w", r.Year, err)
		}
	}

	if _, err := f.NewSheet(sheetVolatility); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := writeHeader(f, sheetVolatility, []string{"rank", "country", "range_c", "mean_c", "min_c", "max_c", "slope", "years"}); err != nil {
		return err
	}
	for i, v := range ranking {
		row := i + 2
		values := []any{i + 1, v.Country, v.Range, v.Mean, v.Min, v.Max, v.Slope, v.Years}
		if err := f.SetSheetRow(sheetVolatility, fmt.Sprintf("A%d", row), &values); err != nil {
			return fmt.Errorf("write country %s: %w", v.Country, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, header []string) error {
	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("write header %s: %w", h, err)
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(sheet, col, col, 16); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}
	return nil
}
