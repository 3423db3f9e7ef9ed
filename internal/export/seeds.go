package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/outreach-cli/internal/validate"
)

// ReadDomains reads a seed list of websites from a .csv or .xlsx file. The
// column headed "domain", "website" or "url" is used, else the first
// column. Values are normalized and deduplicated; invalid ones are
// returned separately.
func ReadDomains(path string) (domains, invalid []string, err error) {
	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path)
	case ".csv":
		rows, err = readCSV(path)
	default:
		return nil, nil, eris.Errorf("export: unsupported file type %q (want .xlsx or .csv)", filepath.Ext(path))
	}
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	col, start := 0, 0
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "domain", "website", "url":
			col, start = i, 1
		}
		if start == 1 {
			break
		}
	}

	seen := make(map[string]bool)
	for _, row := range rows[start:] {
		if col >= len(row) || strings.TrimSpace(row[col]) == "" {
			continue
		}
		d, ok := validate.NormalizeDomain(row[col])
		if !ok {
			invalid = append(invalid, row[col])
			continue
		}
		if !seen[d] {
			seen[d] = true
			domains = append(domains, d)
		}
	}
	return domains, invalid, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "csv: open file")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csv: read")
	}
	return rows, nil
}
