// Package export writes profile listings as JSON or XLSX.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kalambet/meapi/internal/profile"
)

// Format names accepted by Write.
const (
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

// SheetName is the worksheet that holds the profiles in an XLSX export.
const SheetName = "Profiles"

var xlsxHeaders = []string{"ID", "Name", "Email", "Phone", "Bio", "Skills", "Created", "Updated"}

// FormatFromPath guesses the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return FormatXLSX
	}
	return FormatJSON
}

// Write dispatches on format.
func Write(w io.Writer, format string, profiles []profile.Profile) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		return WriteJSON(w, profiles)
	case FormatXLSX:
		return WriteXLSX(w, profiles)
	default:
		return fmt.Errorf("unsupported export format %q (want json or xlsx)", format)
	}
}

// WriteJSON writes profiles as an indented JSON array.
func WriteJSON(w io.Writer, profiles []profile.Profile) error {
	if profiles == nil {
		profiles = []profile.Profile{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(profiles); err != nil {
		return fmt.Errorf("encoding profiles: %w", err)
	}
	return nil
}

// WriteXLSX writes a workbook with one header row and one row per profile.
func WriteXLSX(w io.Writer, profiles []profile.Profile) error {
	f := excelize.NewFile()
	defer f.Close()

	// Rename the default sheet rather than adding a second one.
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	for i, h := range xlsxHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for r, p := range profiles {
		row := r + 2
		values := []any{
			p.ID,
			p.Name,
			p.Email,
			p.Phone,
			p.Bio,
			p.Skills,
			formatTime(p.CreatedAt),
			formatTime(p.UpdatedAt),
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("writing row %d: %w", row, err)
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 6)  // id
	_ = f.SetColWidth(SheetName, "B", "C", 26) // name, email
	_ = f.SetColWidth(SheetName, "D", "D", 16) // phone
	_ = f.SetColWidth(SheetName, "E", "E", 48) // bio
	_ = f.SetColWidth(SheetName, "F", "F", 40) // skills
	_ = f.SetColWidth(SheetName, "G", "H", 22) // timestamps

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
