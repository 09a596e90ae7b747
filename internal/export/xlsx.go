// Package export renders payment reports as XLSX workbooks.
package export

import (
	"fmt"
	"io"

	"cobros/internal/core"

	"github.com/xuri/excelize/v2"
)

const (
	SheetPayments = "Pagos"
	SheetSummary  = "Resumen"
	ContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var paymentHeader = []any{"Fecha", "Pago", "Cliente", "Recibo", "Método", "Estado", "Monto", "Comprobante"}

// WritePaymentsReport writes sum as a workbook with one row per payment
// and a summary sheet. Amount cells are numeric; missing amounts are blank.
func WritePaymentsReport(w io.Writer, sum core.Summary, vb core.VoucherBuilder) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetPayments); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	money := "$#,##0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &money})
	if err != nil {
		return fmt.Errorf("money style: %w", err)
	}

	if err := f.SetSheetRow(SheetPayments, "A1", &paymentHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(SheetPayments, 1, 1, bold); err != nil {
		return err
	}

	for i, p := range sum.Payments {
		link, _ := vb.Link(p)
		client := ""
		if c := p.ClientOf(); c != nil {
			client = c.DisplayName()
		}
		method := ""
		if p.PaymentMethod != nil {
			method = p.PaymentMethod.Name
		}
		var amount any
		if p.TotalAmount.Valid {
			amount = p.TotalAmount.Decimal.InexactFloat64()
		}
		row := []any{
			core.FormatDate(p.CreatedAt, vb.Location),
			p.ID,
			client,
			p.ReceiptLabel(),
			method,
			core.StatusLabel(p.Status),
			amount,
			link,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetPayments, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if n := len(sum.Payments); n > 0 {
		if err := f.SetCellStyle(SheetPayments, "G2", fmt.Sprintf("G%d", n+1), moneyStyle); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(SheetPayments, "A", "F", 22); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	period := core.Placeholder
	if !sum.Start.IsZero() {
		period = core.FormatDate(sum.Start, vb.Location) + " - " + core.FormatDate(sum.End, vb.Location)
	}
	rows := [][]any{
		{"Periodo", string(sum.Bucket)},
		{"Desde / hasta", period},
		{"Pagos", sum.Count},
		{"Total", sum.Total.InexactFloat64()},
		{"Total (texto)", core.FormatAmount(sum.Total)},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SheetSummary, cell, &r); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetSummary, "B4", "B4", moneyStyle); err != nil {
		return err
	}
	if err := f.SetColStyle(SheetSummary, "A", bold); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
