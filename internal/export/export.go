// Package export renders rentals, payments and daily occupancy for a period as an XLSX workbook.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rentalhub/internal/domain"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	SheetRentals   = "Rentals"
	SheetPayments  = "Payments"
	SheetOccupancy = "Occupancy"

	dateLayout = "2006-01-02"
)

// Source is the read side the exporter needs.
type Source interface {
	domain.ProductCatalog
	domain.ClientDirectory
	ListRentalsStartingBetween(ctx context.Context, from, to time.Time) ([]*models.Rental, error)
	CommittedQuantity(ctx context.Context, productID int64, w models.Window, statuses []models.RentalStatus, excludeRentalID int64) (int64, error)
	ListPaymentsBetween(ctx context.Context, from, to time.Time) ([]*models.Payment, error)
	SumPaymentsByRental(ctx context.Context, rentalID int64) (int64, error)
}

type Exporter struct {
	src    Source
	dir    string
	logger *zerolog.Logger
}

func NewExporter(src Source, dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{src: src, dir: dir, logger: logger}
}

// Build assembles the workbook for rentals starting and payments made in [from, to).
// The caller must Close the returned file.
func (e *Exporter) Build(ctx context.Context, from, to time.Time) (*excelize.File, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("export period is empty: %s - %s", from.Format(dateLayout), to.Format(dateLayout))
	}

	f := excelize.NewFile()
	if err := e.build(ctx, f, from, to); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (e *Exporter) build(ctx context.Context, f *excelize.File, from, to time.Time) error {
	header, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	rentals, err := e.src.ListRentalsStartingBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load rentals: %w", err)
	}
	if err := e.writeRentals(ctx, f, header, rentals); err != nil {
		return err
	}

	payments, err := e.src.ListPaymentsBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load payments: %w", err)
	}
	if err := writePayments(f, header, payments); err != nil {
		return err
	}

	if err := e.writeOccupancy(ctx, f, header, from, to); err != nil {
		return err
	}

	idx, err := f.GetSheetIndex(SheetRentals)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	return f.DeleteSheet("Sheet1")
}

func writeHeader(f *excelize.File, sheet string, style int, titles ...string) error {
	for i, title := range titles {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(titles), 1)
	return f.SetCellStyle(sheet, "A1", last, style)
}

func setRow(f *excelize.File, sheet string, row int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func (e *Exporter) writeRentals(ctx context.Context, f *excelize.File, header int, rentals []*models.Rental) error {
	if _, err := f.NewSheet(SheetRentals); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := writeHeader(f, SheetRentals, header,
		"ID", "Start", "End", "Client", "Address", "Status", "Items", "Total", "Paid", "Pending"); err != nil {
		return err
	}

	clients := make(map[int64]string)
	for i, r := range rentals {
		name, ok := clients[r.ClientID]
		if !ok {
			c, err := e.src.GetClient(ctx, r.ClientID)
			if err != nil {
				return err
			}
			if c != nil {
				name = c.Name
			}
			clients[r.ClientID] = name
		}

		paid, err := e.src.SumPaymentsByRental(ctx, r.ID)
		if err != nil {
			return err
		}

		if err := setRow(f, SheetRentals, i+2,
			r.ID, r.StartAt.Format(dateLayout), r.EndAt.Format(dateLayout), name, r.Address,
			string(r.Status), e.describeItems(ctx, r.Items), r.Total, paid, r.Total-paid); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(SheetRentals, "B", "C", 12)
	_ = f.SetColWidth(SheetRentals, "D", "E", 25)
	_ = f.SetColWidth(SheetRentals, "G", "G", 40)
	return nil
}

func (e *Exporter) describeItems(ctx context.Context, items []models.RentalItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		name := fmt.Sprintf("#%d", it.ProductID)
		if p, err := e.src.GetProduct(ctx, it.ProductID); err == nil && p != nil {
			name = p.Name
		}
		parts = append(parts, fmt.Sprintf("%s x%d", name, it.Quantity))
	}
	return strings.Join(parts, ", ")
}

func writePayments(f *excelize.File, header int, payments []*models.Payment) error {
	if _, err := f.NewSheet(SheetPayments); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := writeHeader(f, SheetPayments, header, "ID", "Rental", "Paid at", "Amount", "Note"); err != nil {
		return err
	}
	for i, p := range payments {
		if err := setRow(f, SheetPayments, i+2,
			p.ID, p.RentalID, p.PaidAt.Format(time.RFC3339), p.Amount, p.Note); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetPayments, "C", "C", 25)
	_ = f.SetColWidth(SheetPayments, "E", "E", 30)
	return nil
}

// writeOccupancy lays products out as rows and days as columns; each cell is
// the quantity held by active rentals on that day.
func (e *Exporter) writeOccupancy(ctx context.Context, f *excelize.File, header int, from, to time.Time) error {
	if _, err := f.NewSheet(SheetOccupancy); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	products, err := e.src.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}

	full, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F8CBAD"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	_ = f.SetCellValue(SheetOccupancy, "A1", "Product (stock)")
	var days []time.Time
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
		cell, _ := excelize.CoordinatesToCellName(len(days)+1, 1)
		_ = f.SetCellValue(SheetOccupancy, cell, d.Format("02.01"))
	}
	last, _ := excelize.CoordinatesToCellName(len(days)+1, 1)
	_ = f.SetCellStyle(SheetOccupancy, "A1", last, header)

	for row, p := range products {
		nameCell, _ := excelize.CoordinatesToCellName(1, row+2)
		_ = f.SetCellValue(SheetOccupancy, nameCell, fmt.Sprintf("%s (%d)", p.Name, p.Stock))

		for col, d := range days {
			dayWindow := models.NewWindow(d, d.AddDate(0, 0, 1).Add(-time.Nanosecond))
			held, err := e.src.CommittedQuantity(ctx, p.ID, dayWindow, models.ActiveStatuses(), 0)
			if err != nil {
				return fmt.Errorf("occupancy for product %d: %w", p.ID, err)
			}
			cell, _ := excelize.CoordinatesToCellName(col+2, row+2)
			_ = f.SetCellValue(SheetOccupancy, cell, held)
			if held >= p.Stock && p.Stock > 0 {
				_ = f.SetCellStyle(SheetOccupancy, cell, cell, full)
			}
		}
	}
	_ = f.SetColWidth(SheetOccupancy, "A", "A", 25)
	return nil
}

// WriteTo streams the workbook for the period to w.
func (e *Exporter) WriteTo(ctx context.Context, w io.Writer, from, to time.Time) error {
	f, err := e.Build(ctx, from, to)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SaveFile writes the workbook under the export directory and returns its path.
func (e *Exporter) SaveFile(ctx context.Context, from, to time.Time) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f, err := e.Build(ctx, from, to)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(e.dir, FileName(from, to))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}

	e.logger.Info().Str("file_path", path).Msg("Excel file created")
	return path, nil
}

// FileName is the download name for the period.
func FileName(from, to time.Time) string {
	return fmt.Sprintf("rentals_%s_to_%s.xlsx", from.Format(dateLayout), to.Format(dateLayout))
}
