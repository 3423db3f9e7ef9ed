// Package export writes prospects to spreadsheets and reads seed lists
// from them.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Header is the column order of exported rows.
var Header = []string{
	"id", "source_type", "platform", "domain", "profile_url", "username",
	"contact_email", "stage", "discovery_status", "scrape_status",
	"verification_status", "draft_status", "send_status",
	"draft_subject", "thread_id", "followups_sent", "last_sent",
	"score", "serp_intent", "page_title", "page_url", "last_error", "created_at",
}

// Row flattens p in Header order.
func Row(p *model.Prospect) []string {
	lastSent := ""
	if p.LastSent != nil {
		lastSent = p.LastSent.UTC().Format(time.RFC3339)
	}
	score := ""
	if p.Score != nil {
		score = strconv.FormatFloat(*p.Score, 'f', 3, 64)
	}
	platform := string(p.SourcePlatform)
	if p.SourcePlatform == model.PlatformNone {
		platform = ""
	}
	return []string{
		p.ID, string(p.SourceType), platform, p.Domain, p.ProfileURL, p.Username,
		p.Email(), string(p.Stage), string(p.DiscoveryStatus), string(p.ScrapeStatus),
		string(p.VerificationStatus), string(p.DraftStatus), string(p.SendStatus),
		p.DraftSubject, p.Thread(), strconv.Itoa(p.FollowupsSent), lastSent,
		score, p.SERPIntent, p.PageTitle, p.PageURL, p.LastError, p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// WriteFile writes prospects to path. The format follows the extension:
// .xlsx or .csv.
func WriteFile(path string, ps []*model.Prospect) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return WriteXLSX(path, ps)
	case ".csv":
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "export: create file")
		}
		if err := WriteCSV(f, ps); err != nil {
			f.Close() //nolint:errcheck
			return err
		}
		return eris.Wrap(f.Close(), "export: close file")
	}
	return eris.Errorf("export: unsupported file type %q (want .xlsx or .csv)", filepath.Ext(path))
}

// WriteXLSX saves prospects as a single-sheet workbook.
func WriteXLSX(path string, ps []*model.Prospect) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("prospects")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range Header {
		c := header.AddCell()
		c.SetString(h)
		c.GetStyle().Font.Bold = true
	}
	for _, p := range ps {
		row := sheet.AddRow()
		for i, v := range Row(p) {
			c := row.AddCell()
			if Header[i] == "followups_sent" {
				n, _ := strconv.Atoi(v)
				c.SetInt(n)
				continue
			}
			c.SetString(v)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "xlsx: save file")
	}
	return nil
}

// WriteCSV writes prospects with a header row.
func WriteCSV(w io.Writer, ps []*model.Prospect) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	for _, p := range ps {
		if err := cw.Write(Row(p)); err != nil {
			return eris.Wrap(err, "csv: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "csv: flush")
}
