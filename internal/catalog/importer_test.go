package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/movierec/internal/storage"
)

func testImporter(t *testing.T) (*Importer, *storage.SQLiteStorage) {
	t.Helper()
	db, err := storage.NewSQLiteStorage(storage.DriverPure, filepath.Join(t.TempDir(), "movies.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewImporter(db), db
}

func TestMovieID(t *testing.T) {
	a := MovieID("The Thing", 1982)
	if a != MovieID("  the   thing ", 1982) {
		t.Error("id should ignore case and spacing")
	}
	if a == MovieID("The Thing", 2011) {
		t.Error("different year should give a different id")
	}
	if len(a) != 36 {
		t.Errorf("id %q is not a uuid", a)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"movies.json", FormatJSON},
		{"/x/MOVIES.CSV", FormatCSV},
		{"catalog.xlsx", FormatXLSX},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if err != nil || got != tt.want {
			t.Errorf("FormatFromPath(%q) = %v, %v", tt.path, got, err)
		}
	}
	if _, err := FormatFromPath("movies.txt"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("txt: %v", err)
	}
}

func TestImport_JSON(t *testing.T) {
	im, db := testImporter(t)
	ctx := context.Background()
	src := `[
		{"title": "Alien", "description": "  In space,\n no one can hear you scream. ", "year": 1979, "genre": "Horror"},
		{"id": "custom-1", "title": "Heat", "description": "Cops and robbers."},
		{"title": "", "description": "missing title"}
	]`
	res, err := im.Import(ctx, strings.NewReader(src), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if res.Read != 3 || res.Upserted != 2 || res.Invalid != 1 || len(res.Errors) != 1 {
		t.Errorf("result = %+v", res)
	}
	m, err := db.GetMovie(ctx, MovieID("Alien", 1979))
	if err != nil {
		t.Fatal(err)
	}
	if m.Description != "In space, no one can hear you scream." || m.Genre != "Horror" {
		t.Errorf("movie = %+v", m)
	}
	if _, err := db.GetMovie(ctx, "custom-1"); err != nil {
		t.Errorf("explicit id: %v", err)
	}

	// Re-import is idempotent.
	_, _ = im.Import(ctx, strings.NewReader(src), FormatJSON)
	if n, _ := db.CountMovies(ctx); n != 2 {
		t.Errorf("after re-import: %d movies", n)
	}
}

func TestImport_CSV(t *testing.T) {
	im, db := testImporter(t)
	src := "Year,Title,Description,Unused\n1995,Heat,A heist goes wrong.,x\n,Clue,Murder mansion.\n\n"
	res, err := im.Import(context.Background(), strings.NewReader(src), FormatCSV)
	if err != nil {
		t.Fatal(err)
	}
	if res.Upserted != 2 {
		t.Errorf("result = %+v", res)
	}
	m, err := db.FindByTitle(context.Background(), "heat")
	if err != nil || m.Year != 1995 {
		t.Errorf("heat = %+v, %v", m, err)
	}

	if _, err := im.Import(context.Background(), strings.NewReader("title,year\nX,nineteen\n"), FormatCSV); err == nil {
		t.Error("expected error for invalid year")
	}
	if _, err := im.Import(context.Background(), strings.NewReader("name\nX\n"), FormatCSV); err == nil {
		t.Error("expected error without title column")
	}
}

func TestImportFile_XLSX(t *testing.T) {
	im, db := testImporter(t)
	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	f := excelize.NewFile()
	rows := [][]any{
		{"title", "description", "genre"},
		{"Arrival", "Linguist meets aliens.", "Sci-Fi"},
		{"Up", "A house flies away.", "Animation"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	_ = f.Close()

	res, err := im.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Upserted != 2 || res.Source != path {
		t.Errorf("result = %+v", res)
	}
	m, err := db.FindByTitle(context.Background(), "Arrival")
	if err != nil || m.Genre != "Sci-Fi" {
		t.Errorf("arrival = %+v, %v", m, err)
	}
}

func TestImportFile_Errors(t *testing.T) {
	im, _ := testImporter(t)
	if _, err := im.ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := im.ImportFile(context.Background(), bad); err == nil {
		t.Error("expected error for malformed json")
	}
}
