package report

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Sales"

var ErrNotLoaded = errors.New("report not loaded")

var headings = []string{"Order ID", "Paid At", "Items", "Amount", "Method", "Kitchen Ticket"}

func record(row Row) []any {
	return []any{row.OrderID, row.PaidAt, row.Items, row.AmountValue, row.Method, row.KitchenTicketID}
}

// WriteXLSX writes the summary line, a heading row and one row per order.
func WriteXLSX(w io.Writer, view View) error {
	if !view.Loaded() {
		return ErrNotLoaded
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	if err := f.SetCellValue(sheetName, "A1", view.Summary); err != nil {
		return err
	}

	header := make([]any, len(headings))
	for i, h := range headings {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A3", &header); err != nil {
		return err
	}

	for i, row := range view.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return err
		}
		values := record(row)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

func WriteCSV(w io.Writer, view View) error {
	if !view.Loaded() {
		return ErrNotLoaded
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(headings); err != nil {
		return err
	}
	for _, row := range view.Rows {
		if err := cw.Write([]string{
			row.OrderID,
			row.PaidAt,
			row.Items,
			strconv.FormatInt(row.AmountValue, 10),
			row.Method,
			row.KitchenTicketID,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
