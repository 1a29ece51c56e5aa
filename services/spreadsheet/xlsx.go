package spreadsheet

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/reviewdesk/core/importer"
	"github.com/trezcool/reviewdesk/core/report"
)

const (
	defaultSheet = "Sheet1"
	xlsxMime     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// XLSX writes report sheets to, and reads import rows from, Office Open XML workbooks.
type XLSX struct{}

var (
	_ report.Encoder     = XLSX{}
	_ importer.RowReader = XLSX{}
)

func (XLSX) Extension() string   { return "xlsx" }
func (XLSX) ContentType() string { return xlsxMime }

// Encode writes the sheet as a single-sheet workbook: the header on row 1, then the rows as text cells.
func (XLSX) Encode(s report.Sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	name := s.Name
	if name == "" {
		name = defaultSheet
	}
	if name != defaultSheet {
		if err := f.SetSheetName(defaultSheet, name); err != nil {
			return nil, errors.Wrap(err, "naming sheet")
		}
	}

	if err := writeRow(f, name, 1, s.Header); err != nil {
		return nil, err
	}
	for i, row := range s.Rows {
		if err := writeRow(f, name, i+2, row); err != nil {
			return nil, err
		}
	}

	if len(s.Header) > 0 {
		last, err := excelize.ColumnNumberToName(len(s.Header))
		if err != nil {
			return nil, errors.Wrap(err, "naming last column")
		}
		if err := f.SetColWidth(name, "A", last, 18); err != nil {
			return nil, errors.Wrap(err, "sizing columns")
		}
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil, errors.Wrap(err, "creating header style")
		}
		if err := f.SetCellStyle(name, "A1", last+"1", style); err != nil {
			return nil, errors.Wrap(err, "styling header")
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, cells []string) error {
	if len(cells) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return errors.Wrapf(err, "addressing row %d", rowNum)
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	return errors.Wrapf(f.SetSheetRow(sheet, cell, &values), "writing row %d", rowNum)
}

// ReadRows returns the cell values of the workbook's first sheet, row by row.
// Trailing blank cells of a row and trailing blank rows are not returned.
func (XLSX) ReadRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheet")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, "reading rows")
	}
	return rows, nil
}
