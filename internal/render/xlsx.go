package render

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/identity-scan/internal/core/domain"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	xlsxSheet       = "Identity"
)

// XLSX writes a single sheet of label/value rows. A fallback record gets an
// extra row with the unparsed model reply.
type XLSX struct{}

func (XLSX) Name() string        { return FormatXLSX }
func (XLSX) ContentType() string { return xlsxContentType }

func (XLSX) Render(w io.Writer, rec domain.Record) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	rows := [][]any{{"Field", "Value"}}
	for _, field := range domain.Fields() {
		rows = append(rows, []any{field.Label(), displayValue(rec, field)})
	}
	if rec.IsFallback() {
		rows = append(rows, []any{"Unparsed Reply", rec.RawFallbackText})
	}
	if err := writeRows(f, xlsxSheet, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(xlsxSheet, "A", "A", 24); err != nil {
		return fmt.Errorf("xlsx column width: %w", err)
	}
	if err := f.SetColWidth(xlsxSheet, "B", "B", 48); err != nil {
		return fmt.Errorf("xlsx column width: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// writeRows fills sheet from A1 down and stops at the first failed row.
func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("xlsx cell: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx row %d: %w", i+1, err)
		}
	}
	return nil
}
