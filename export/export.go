// Package export produces skip-trace batches: leads worth pursuing that
// have no phone or email yet, in the CSV/XLSX shape the tracing vendors
// take.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"nodleads/models"
)

const sheetName = "Skip Trace"

var header = []string{
	"lead_id",
	"owner_name",
	"property_address",
	"city",
	"county",
	"estimated_value",
	"lead_score",
}

// SkipTraceCandidates filters a lead set down to traceable ones: a known
// owner, no contact info on file.
func SkipTraceCandidates(leads []*models.Lead, limit int) []*models.Lead {
	var out []*models.Lead
	for _, l := range leads {
		if strings.TrimSpace(l.OwnerName) == "" {
			continue
		}
		if l.Phone != "" || l.Email != "" {
			continue
		}
		out = append(out, l)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func row(l *models.Lead) []string {
	return []string{
		l.LeadID,
		l.OwnerName,
		l.PropertyAddress,
		l.City,
		l.County,
		l.EstimatedValue,
		strconv.Itoa(l.LeadScore),
	}
}

func WriteCSV(w io.Writer, leads []*models.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, l := range leads {
		if err := cw.Write(row(l)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteXLSX(w io.Writer, leads []*models.Lead) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	for col, name := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return err
		}
	}

	for i, l := range leads {
		for col, value := range row(l) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}

// WriteFile writes a skip-trace export, picking the format from the file
// extension. Anything that is not .xlsx gets CSV.
func WriteFile(path string, leads []*models.Lead) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if filepath.Ext(path) == ".xlsx" {
		return WriteXLSX(f, leads)
	}
	return WriteCSV(f, leads)
}
