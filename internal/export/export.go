package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/domain"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Exporter writes admin booking reports as Excel files.
type Exporter struct {
	bookings domain.BookingRepository
	escrow   domain.EscrowRepository
	path     string
	logger   *zerolog.Logger
}

func NewExporter(bookings domain.BookingRepository, escrow domain.EscrowRepository, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{bookings: bookings, escrow: escrow, path: path, logger: logger}
}

// BookingsReport writes every booking in the date range with its escrow state
// to an xlsx file and returns the file path.
func (e *Exporter) BookingsReport(ctx context.Context, startDate, endDate string) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	bookings, err := e.bookings.ListBookingsByDateRange(ctx, startDate, endDate)
	if err != nil {
		return "", fmt.Errorf("list bookings: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Bookings"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{
		"Booking ID", "Service", "Customer", "Vendor", "Status",
		"Date", "Time", "Price", "Payment", "Escrow State", "Released", "Refunded",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, header)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle)

	for i, booking := range bookings {
		row := i + 2
		escrowState, released, refunded := e.escrowColumns(ctx, booking)

		values := []any{
			booking.ID, booking.ServiceName, booking.CustomerID, booking.VendorID,
			booking.Status, booking.ScheduledDate, booking.ScheduledTime,
			models.FormatCHF(booking.TotalPrice), booking.PaymentMethod,
			escrowState, released, refunded,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, value)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 38)
	_ = f.SetColWidth(sheetName, "B", "D", 24)
	_ = f.SetColWidth(sheetName, "E", "L", 14)
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s_to_%s_%s.xlsx",
		startDate, endDate, time.Now().Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save export: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("bookings report created")
	return filePath, nil
}

func (e *Exporter) escrowColumns(ctx context.Context, booking *models.Booking) (string, string, string) {
	entry, err := e.escrow.GetEscrowEntry(ctx, booking.ID)
	if err != nil {
		return models.EscrowNone, "", ""
	}
	return entry.State, models.FormatCHF(entry.AmountReleased), models.FormatCHF(entry.AmountRefunded)
}
