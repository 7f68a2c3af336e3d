// Package export renders the ledger as an S1a-HKD spreadsheet and hands it
// to whatever share mechanism the platform offers.
package export

import (
	"bytes"
	"fmt"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/xuri/excelize/v2"
)

// MIMETypeXLSX is the content type of the rendered artifact.
const MIMETypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SheetName is the single worksheet of the artifact.
const SheetName = "S1a-HKD"

const (
	formCode     = "Mẫu số S1a-HKD"
	formCircular = "(Kèm theo Thông tư số 88/2021/TT-BTC ngày 11 tháng 10 năm 2021 của Bộ trưởng Bộ Tài chính)"
	ledgerTitle  = "SỔ DOANH THU BÁN HÀNG HÓA, DỊCH VỤ"
	totalLabel   = "Tổng cộng"
	unitNote     = "Đơn vị tính: đồng"
)

// Row layout. Transactions start at firstTxRow; the total row follows the
// last transaction.
const (
	formCodeRow  = 1
	circularRow  = 2
	firstInfoRow = 4
	titleRow     = firstInfoRow + 6
	unitRow      = titleRow + 1
	headerRow    = unitRow + 1
	firstTxRow   = headerRow + 1
)

// fixedTime keeps docProps stable so identical ledgers give identical bytes.
const fixedTime = "2021-10-11T00:00:00Z"

// RenderSpreadsheet builds the xlsx artifact for doc. It is a pure function
// of doc: rendering the same document twice yields identical bytes.
func RenderSpreadsheet(doc domain.LedgerDocument) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("RenderSpreadsheet: rename sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Created:     fixedTime,
		Modified:    fixedTime,
		Creator:     "voice-ledger",
		Title:       ledgerTitle,
		Language:    "vi-VN",
		Identifier:  "S1a-HKD",
		Description: formCircular,
	}); err != nil {
		return nil, fmt.Errorf("RenderSpreadsheet: set doc props: %w", err)
	}

	w := &sheetWriter{f: f}
	w.styles()

	w.set(cell("A", formCodeRow), formCode)
	w.style(cell("A", formCodeRow), w.bold)
	w.set(cell("A", circularRow), formCircular)

	for i, field := range domain.InfoFields {
		row := firstInfoRow + i
		w.set(cell("A", row), domain.InfoLabel(field)+":")
		w.style(cell("A", row), w.bold)
		w.set(cell("B", row), doc.Info.Get(field))
	}

	w.set(cell("A", titleRow), ledgerTitle)
	w.merge(cell("A", titleRow), cell("C", titleRow))
	w.style(cell("A", titleRow), w.title)
	w.set(cell("C", unitRow), unitNote)

	for i, field := range []domain.TransactionField{domain.TxDate, domain.TxDescription, domain.TxAmount} {
		c := cell(string(rune('A'+i)), headerRow)
		w.set(c, domain.TransactionLabel(field))
		w.style(c, w.header)
	}

	row := firstTxRow
	for _, tx := range doc.Transactions {
		w.set(cell("A", row), tx.Date)
		w.set(cell("B", row), tx.Description)
		// Plain number cell, General format: no currency sign, no separators.
		w.set(cell("C", row), tx.Amount)
		row++
	}

	w.set(cell("B", row), totalLabel)
	w.style(cell("B", row), w.bold)
	w.set(cell("C", row), doc.Total())
	w.style(cell("C", row), w.bold)

	w.width("A", 16)
	w.width("B", 48)
	w.width("C", 18)

	if w.err != nil {
		return nil, fmt.Errorf("RenderSpreadsheet: %w", w.err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("RenderSpreadsheet: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// sheetWriter records the first error so the layout code reads top-down.
type sheetWriter struct {
	f   *excelize.File
	err error

	bold, title, header int
}

func (w *sheetWriter) styles() {
	w.bold = w.newStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	w.title = w.newStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	w.header = w.newStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    border,
	})
}

func (w *sheetWriter) newStyle(s *excelize.Style) int {
	if w.err != nil {
		return 0
	}
	id, err := w.f.NewStyle(s)
	if err != nil {
		w.err = fmt.Errorf("new style: %w", err)
	}
	return id
}

func (w *sheetWriter) set(c string, v interface{}) {
	if w.err != nil {
		return
	}
	if err := w.f.SetCellValue(SheetName, c, v); err != nil {
		w.err = fmt.Errorf("set %s: %w", c, err)
	}
}

func (w *sheetWriter) style(c string, id int) {
	if w.err != nil {
		return
	}
	if err := w.f.SetCellStyle(SheetName, c, c, id); err != nil {
		w.err = fmt.Errorf("style %s: %w", c, err)
	}
}

func (w *sheetWriter) merge(from, to string) {
	if w.err != nil {
		return
	}
	if err := w.f.MergeCell(SheetName, from, to); err != nil {
		w.err = fmt.Errorf("merge %s:%s: %w", from, to, err)
	}
}

func (w *sheetWriter) width(col string, wd float64) {
	if w.err != nil {
		return
	}
	if err := w.f.SetColWidth(SheetName, col, col, wd); err != nil {
		w.err = fmt.Errorf("width %s: %w", col, err)
	}
}
