// Package report renders a scrape result as an XLSX workbook and reads it back.
package report

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/scourt-cli/internal/fetcher"
	"github.com/sells-group/scourt-cli/internal/model"
)

// Sheet names.
const (
	DataSheet   = "Data"
	StatusSheet = "Status"
)

// LinkLabel is the visible text of the PDF hyperlink cell.
const LinkLabel = "Download PDF"

// Column headers of the Data sheet, in order.
var DataColumns = []string{
	"Final decision date",
	"Incident number",
	"PDF link",
	"Previous decision date",
	"Decision",
}

// Column headers of the Status sheet, in order.
var StatusColumns = []string{
	"Incident number",
	"Page",
	"Status",
	"Error",
}

// Write renders table to an XLSX file at path. The file is written next to
// its destination and renamed into place.
func Write(path string, table model.OutputTable) error {
	f, err := build(table)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.FilesystemError("create output dir", eris.Wrapf(err, "report: mkdir %s", dir))
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return model.FilesystemError("create temp file", eris.Wrap(err, "report: create temp"))
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := f.Write(tmp); err != nil {
		return model.FilesystemError("write workbook", eris.Wrapf(err, "report: write %s", path))
	}
	if err := tmp.Close(); err != nil {
		return model.FilesystemError("close workbook", eris.Wrap(err, "report: close temp"))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return model.FilesystemError("commit workbook", eris.Wrapf(err, "report: rename to %s", path))
	}
	committed = true
	return nil
}

func build(table model.OutputTable) (*xlsx.File, error) {
	f := xlsx.NewFile()

	data, err := f.AddSheet(DataSheet)
	if err != nil {
		return nil, eris.Wrap(err, "report: add data sheet")
	}
	status, err := f.AddSheet(StatusSheet)
	if err != nil {
		return nil, eris.Wrap(err, "report: add status sheet")
	}

	header := headerStyle()
	link := linkStyle()

	addHeader(data, DataColumns, header)
	addHeader(status, StatusColumns, header)

	for _, c := range table {
		c.Normalize()

		row := data.AddRow()
		row.AddCell().SetString(c.FinalDecisionDate)
		row.AddCell().SetString(c.IncidentNumber)
		cell := row.AddCell()
		if c.HasPDF() {
			cell.SetFormula(Hyperlink(c.PDFURL))
			cell.SetStyle(link)
		}
		row.AddCell().SetString(c.PreviousDecisionDate)
		row.AddCell().SetString(c.DecisionText)

		srow := status.AddRow()
		srow.AddCell().SetString(c.IncidentNumber)
		srow.AddCell().SetInt(c.Page)
		srow.AddCell().SetString(string(c.Status))
		srow.AddCell().SetString(c.Err)
	}
	return f, nil
}

func addHeader(sheet *xlsx.Sheet, columns []string, style *xlsx.Style) {
	row := sheet.AddRow()
	for _, name := range columns {
		cell := row.AddCell()
		cell.SetString(name)
		cell.SetStyle(style)
	}
}

func headerStyle() *xlsx.Style {
	s := xlsx.NewStyle()
	s.Font.Bold = true
	s.ApplyFont = true
	return s
}

func linkStyle() *xlsx.Style {
	s := xlsx.NewStyle()
	s.Font.Color = "FF0000FF"
	s.Font.Underline = true
	s.ApplyFont = true
	return s
}

// Hyperlink returns the spreadsheet formula linking to url. Double quotes in
// the URL are doubled.
func Hyperlink(url string) string {
	return `HYPERLINK("` + strings.ReplaceAll(url, `"`, `""`) + `", "` + LinkLabel + `")`
}

// ParseHyperlink extracts the URL from a formula produced by Hyperlink. A
// leading "=" is accepted. It returns "" for anything else.
func ParseHyperlink(formula string) string {
	formula = strings.TrimPrefix(strings.TrimSpace(formula), "=")
	rest, ok := strings.CutPrefix(formula, `HYPERLINK("`)
	if !ok {
		return ""
	}
	rest, ok = strings.CutSuffix(rest, `", "`+LinkLabel+`")`)
	if !ok {
		return ""
	}
	return strings.ReplaceAll(rest, `""`, `"`)
}

// Read loads a workbook written by Write. Rows come back in sheet order with
// PDFURL recovered from the hyperlink formula. Status details are filled in
// when the Status sheet is present.
func Read(path string) (model.OutputTable, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: DataSheet, SkipRows: 1, Formulas: true})
	if err != nil {
		return nil, model.FilesystemError("read report", eris.Wrapf(err, "report: read %s", path))
	}

	table := make(model.OutputTable, 0, len(rows))
	for i, r := range rows {
		c := model.EnrichedCase{
			CaseRow: model.CaseRow{
				FinalDecisionDate: cellAt(r, 0),
				IncidentNumber:    cellAt(r, 1),
			},
			PDFURL:               ParseHyperlink(cellAt(r, 2)),
			PreviousDecisionDate: cellAt(r, 3),
			DecisionText:         cellAt(r, 4),
			Index:                i,
		}
		table = append(table, c)
	}

	statusRows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: StatusSheet, SkipRows: 1})
	if err != nil {
		// Workbooks from older runs have no Status sheet.
		return table, nil //nolint:nilerr
	}
	for i := range table {
		if i >= len(statusRows) {
			break
		}
		sr := statusRows[i]
		if cellAt(sr, 0) != table[i].IncidentNumber {
			continue
		}
		if page, err := strconv.Atoi(cellAt(sr, 1)); err == nil {
			table[i].Page = page
		}
		table[i].Status = model.RowStatus(cellAt(sr, 2))
		table[i].Err = cellAt(sr, 3)
	}
	return table, nil
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
