package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"siteexpense/internal/model"

	"github.com/xuri/excelize/v2"
)

// ExportResult carries a rendered xlsx workbook ready to stream.
type ExportResult struct {
	Filename string
	Content  *bytes.Buffer
}

const exportSheet = "Expenses"

var exportHeaders = []string{
	"Status", "Total Amount", "Usage Date", "Vendor", "Purpose",
	"Site", "Submitter", "Categories", "Created At",
}

// Export renders the actor's filtered expense list as an xlsx workbook.
// It reuses the list filter, so the export always matches what the
// actor sees on screen.
func (s *expenseService) Export(ctx context.Context, actor model.Actor, q ListExpenseQuery) (*ExportResult, error) {
	filter, err := buildExpenseFilter(actor, q)
	if err != nil {
		return nil, err
	}

	expenses, err := s.expenseRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses for export: %w", err)
	}

	f, err := buildExpenseWorkbook(expenses)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	return &ExportResult{
		Filename: fmt.Sprintf("expenses_%s.xlsx", time.Now().Format("20060102T150405")),
		Content:  buf,
	}, nil
}

func buildExpenseWorkbook(expenses []model.Expense) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DCE6F1"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range exportHeaders {
		cell, cellErr := excelize.CoordinatesToCellName(col+1, 1)
		if cellErr != nil {
			return nil, cellErr
		}
		if setErr := f.SetCellValue(exportSheet, cell, header); setErr != nil {
			return nil, fmt.Errorf("failed to write header: %w", setErr)
		}
		if styleErr := f.SetCellStyle(exportSheet, cell, cell, headerStyle); styleErr != nil {
			return nil, fmt.Errorf("failed to style header: %w", styleErr)
		}
	}

	for i := range expenses {
		e := &expenses[i]
		row := i + 2
		values := []interface{}{
			e.Status,
			e.TotalAmount.StringFixed(2),
			e.UsageDate.Format("2006-01-02"),
			e.Vendor,
			e.PurposeDetail,
			exportSiteLabel(e),
			exportUserLabel(e),
			exportCategories(e),
			e.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, value := range values {
			cell, cellErr := excelize.CoordinatesToCellName(col+1, row)
			if cellErr != nil {
				return nil, cellErr
			}
			if setErr := f.SetCellValue(exportSheet, cell, value); setErr != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", row, setErr)
			}
		}
	}

	if err := f.SetColWidth(exportSheet, "A", "I", 18); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}

	return f, nil
}

func exportSiteLabel(e *model.Expense) string {
	if e.Site == nil {
		return e.SiteID.String()
	}
	return fmt.Sprintf("%s (%s)", e.Site.Name, e.Site.Code)
}

func exportUserLabel(e *model.Expense) string {
	if e.User == nil {
		return e.UserID.String()
	}
	return e.User.FullName
}

// exportCategories joins the distinct item category names in catalog
// order.
func exportCategories(e *model.Expense) string {
	seen := make(map[string]bool, len(e.Items))
	for i := range e.Items {
		seen[e.Items[i].Category] = true
	}
	var names []string
	for _, meta := range model.Categories {
		if seen[meta.Code] {
			names = append(names, meta.Name)
		}
	}
	return strings.Join(names, ", ")
}
