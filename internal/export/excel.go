// Package export renders booking reports as Excel workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"flawless/internal/models"
)

var bookingColumns = []string{
	"ID", "Date", "Time", "Service", "Customer", "Email", "Phone", "Amount", "Status", "Created At",
}

// WriteBookings writes one "Bookings" sheet with a bold header row and
// one row per booking, in the order given.
func WriteBookings(w io.Writer, bookings []models.BookingDetail) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Bookings"
	f.SetSheetName("Sheet1", sheet)

	for i, col := range bookingColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(bookingColumns), 1)
		_ = f.SetCellStyle(sheet, startCell, endCell, style)
	}

	for rowIdx, b := range bookings {
		values := []interface{}{
			b.ID, b.BookingDate, b.BookingTime, b.ServiceName,
			b.CustomerName, b.CustomerEmail, b.CustomerPhone,
			b.TotalAmount, b.Status, b.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for colIdx, val := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
