package excel

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
)

const sheetName = "Records"

var header = []any{
	"ID", "Title", "Abstract", "DOI",
	"Dedup Status", "Duplicate", "Duplicate Group", "Primary",
	"Title Status", "Title Notes", "Abstract Status", "Abstract Notes",
	"Created At", "Updated At",
}

// Exporter writes record snapshots as .xlsx workbooks under a fixed
// directory so reviewers can hand results to non-technical collaborators.
type Exporter struct {
	dir string
}

func New(dir string) *Exporter {
	return &Exporter{dir: dir}
}

func (e *Exporter) Export(ctx context.Context, records []domain.Record, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(filename) == "" {
		filename = fmt.Sprintf("screening-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	}
	if !strings.HasSuffix(filename, ".xlsx") {
		filename += ".xlsx"
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("drop default sheet: %w", err)
	}

	if err := writeRow(f, 1, header); err != nil {
		return "", err
	}
	for i, rec := range records {
		row := []any{
			rec.ID, rec.Title, rec.Abstract, rec.DOI,
			string(rec.DedupStatus), rec.IsDuplicate, rec.DuplicateGroupID, rec.IsPrimary,
			string(rec.TitleStatus), rec.TitleNotes, string(rec.AbstractStatus), rec.AbstractNotes,
			rec.CreatedAt.UTC().Format(time.RFC3339), rec.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := writeRow(f, i+2, row); err != nil {
			return "", err
		}
	}

	path := filepath.Join(e.dir, filename)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func writeRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}
