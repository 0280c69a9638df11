package catalog

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/movierec/internal/models"
)

// Format is a catalog file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnsupportedFormat is returned for files whose extension is not json, csv or xlsx.
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

// ReadMovies parses a catalog. JSON is an array of movie objects; CSV and XLSX have a
// header row naming the columns (title, description, genre, year, image, id; any order,
// unknown columns ignored). XLSX reads the first sheet.
func ReadMovies(r io.Reader, format Format) ([]models.MovieInput, error) {
	switch format {
	case FormatJSON:
		var movies []models.MovieInput
		if err := json.NewDecoder(r).Decode(&movies); err != nil {
			return nil, fmt.Errorf("decode json catalog: %w", err)
		}
		return movies, nil
	case FormatCSV:
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		rows, err := cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("read csv catalog: %w", err)
		}
		return fromRows(rows)
	case FormatXLSX:
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fmt.Errorf("open xlsx catalog: %w", err)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
		}
		return fromRows(rows)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func fromRows(rows [][]string) ([]models.MovieInput, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	cols := make(map[string]int)
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["title"]; !ok {
		return nil, fmt.Errorf("catalog header has no title column")
	}
	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	movies := make([]models.MovieInput, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if len(strings.Join(row, "")) == 0 {
			continue
		}
		in := models.MovieInput{
			ID:          cell(row, "id"),
			Title:       cell(row, "title"),
			Description: cell(row, "description"),
			Genre:       cell(row, "genre"),
			Image:       cell(row, "image"),
		}
		if y := cell(row, "year"); y != "" {
			year, err := strconv.Atoi(y)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid year %q", n+2, y)
			}
			in.Year = year
		}
		movies = append(movies, in)
	}
	return movies, nil
}
