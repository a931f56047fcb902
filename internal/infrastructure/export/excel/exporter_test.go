package excel

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
)

func TestExportWritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	exporter := New(dir)

	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	records := []domain.Record{
		{
			ID:             "r1",
			Title:          "Deep learning for screening",
			DOI:            "10.1000/xyz",
			DedupStatus:    domain.StatusIncluded,
			TitleStatus:    domain.StatusIncluded,
			AbstractStatus: domain.StatusMaybe,
			AbstractNotes:  "needs full text",
			CreatedAt:      now,
			UpdatedAt:      now,
		},
	}

	path, err := exporter.Export(context.Background(), records, "report.xlsx")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.HasPrefix(path, dir) {
		t.Fatalf("report must live under the export dir, got %s", path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	title, err := f.GetCellValue("Records", "B2")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if title != "Deep learning for screening" {
		t.Fatalf("unexpected title cell %q", title)
	}
	status, err := f.GetCellValue("Records", "K2")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if status != string(domain.StatusMaybe) {
		t.Fatalf("unexpected abstract status cell %q", status)
	}
	head, err := f.GetCellValue("Records", "A1")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if head != "ID" {
		t.Fatalf("unexpected header cell %q", head)
	}
}

func TestExportDefaultsFilenameAndExtension(t *testing.T) {
	exporter := New(t.TempDir())

	path, err := exporter.Export(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.HasSuffix(path, ".xlsx") {
		t.Fatalf("generated filename must end in .xlsx, got %s", path)
	}

	path, err = exporter.Export(context.Background(), nil, "snapshot")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.HasSuffix(path, "snapshot.xlsx") {
		t.Fatalf("extension must be appended, got %s", path)
	}
}
