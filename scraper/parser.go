package scraper

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"nodleads/config"
	"nodleads/models"
)

// County portals emit results as either tables or card divs; these selectors
// cover the layouts seen across LA, Riverside and the netronline mirrors.
const (
	tableSelector = "table, .results-table, #resultsTable"
	cardSelector  = ".result-item, .record-card, .document-row"
	nextSelector  = "a.next, button.next, [aria-label='Next'], .pagination .next"
)

var (
	// Document numbers look like 2024-0123456.
	docNumberRegex = regexp.MustCompile(`^\d{4}-\d{6,}`)
	docSearchRegex = regexp.MustCompile(`\d{4}-\d{6,}`)

	slashDateRegex  = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2,4}`)
	isoDateRegex    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	dateSearchRegex = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}`)

	// APNs: LA uses XXXX-XXX-XXX, Riverside XXX-XXX-XXX.
	apnRegex       = regexp.MustCompile(`^(?:\d{4}|\d{3})[-\s]?\d{3}[-\s]?\d{3}`)
	apnLabelRegex  = regexp.MustCompile(`(?i)APN[:\s]*((?:\d{4}|\d{3})[-\s]?\d{3}[-\s]?\d{3})`)
	apnSearchRegex = regexp.MustCompile(`(?:\d{4}|\d{3})[-\s]?\d{3}[-\s]?\d{3}`)

	// Party names come through in all caps, often "LAST, FIRST". Newlines
	// are excluded so a match never glues two lines together.
	nameCellRegex   = regexp.MustCompile(`^[A-Z][A-Z ,\.]+$`)
	nameSearchRegex = regexp.MustCompile(`\b[A-Z][A-Z ,\.]+[A-Z]\b`)

	trusteeRegex = regexp.MustCompile(`(?i)Trustee[: ]*([A-Za-z ,\.]+)`)
)

// Parser turns a recorder portal results page into raw records. It filters
// rows down to the configured document keywords, so a page mixing NODs with
// grant deeds and liens yields only the default notices.
type Parser struct {
	county   string
	source   string
	keywords []string
}

func NewParser(cc *config.CountyConfig) *Parser {
	return &Parser{
		county:   cc.Name,
		source:   cc.Name + " Recorder",
		keywords: cc.DocKeywords,
	}
}

// ParsePage extracts matching records from one results page and reports
// whether the page links to a next one.
func (p *Parser) ParsePage(html []byte) ([]models.RawRecord, bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, false, err
	}

	var records []models.RawRecord

	doc.Find(tableSelector).Each(func(_ int, table *goquery.Selection) {
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			// Header rows use th cells; some portals omit the header
			// entirely, so data rows are never skipped by position.
			if row.Find("th").Length() > 0 {
				return
			}
			cells := row.Find("td")
			if cells.Length() < 3 {
				return
			}
			if !p.matchesKeywords(row.Text()) {
				return
			}

			var texts []string
			cells.Each(func(_ int, cell *goquery.Selection) {
				texts = append(texts, strings.TrimSpace(cell.Text()))
			})
			records = append(records, p.classifyCells(texts))
		})
	})

	doc.Find(cardSelector).Each(func(_ int, card *goquery.Selection) {
		text := strings.TrimSpace(card.Text())
		if !p.matchesKeywords(text) {
			return
		}
		records = append(records, p.classifyText(text))
	})

	hasNext := doc.Find(nextSelector).Length() > 0
	return records, hasNext, nil
}

func (p *Parser) matchesKeywords(text string) bool {
	text = strings.ToLower(text)
	for _, kw := range p.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// classifyCells identifies columns by content rather than position; portals
// do not agree on column order, but the value shapes are distinctive.
func (p *Parser) classifyCells(cells []string) models.RawRecord {
	rec := p.newRecord()

	for _, cell := range cells {
		switch {
		case cell == "":
		case docNumberRegex.MatchString(cell):
			rec.Set("document_number", cell)
		case slashDateRegex.MatchString(cell), isoDateRegex.MatchString(cell):
			rec.Set("recording_date", cell)
		case apnRegex.MatchString(cell):
			rec.Set("apn", cell)
		case len(cell) > 5 && nameCellRegex.MatchString(cell) && !isDocTypeCell(cell):
			// First name column is the grantor (owner), second the
			// grantee (lender).
			if rec["owner_name"] == "" {
				rec.Set("owner_name", cell)
			} else {
				rec.Set("lender", cell)
			}
		}
	}

	return rec
}

// classifyText pulls fields out of free-form card text.
func (p *Parser) classifyText(text string) models.RawRecord {
	rec := p.newRecord()

	rec.Set("document_number", docSearchRegex.FindString(text))
	rec.Set("recording_date", dateSearchRegex.FindString(text))

	if m := apnLabelRegex.FindStringSubmatch(text); m != nil {
		rec.Set("apn", m[1])
	} else {
		rec.Set("apn", apnSearchRegex.FindString(text))
	}

	var names []string
	for _, n := range nameSearchRegex.FindAllString(text, -1) {
		n = strings.TrimSpace(n)
		if len(n) <= 4 || strings.Contains(n, "NOTICE") || strings.Contains(n, "DEFAULT") || strings.Contains(n, "APN") {
			continue
		}
		names = append(names, n)
	}
	if len(names) > 0 {
		rec.Set("owner_name", names[0])
	}
	if len(names) > 1 {
		rec.Set("lender", names[1])
	}

	if m := trusteeRegex.FindStringSubmatch(text); m != nil {
		trustee := strings.TrimSpace(m[1])
		if len(trustee) > 100 {
			trustee = trustee[:100]
		}
		rec.Set("trustee", trustee)
	}

	return rec
}

// isDocTypeCell spots the document-type column, which is all caps like the
// party names but describes the filing, not a person.
func isDocTypeCell(cell string) bool {
	upper := strings.ToUpper(cell)
	for _, word := range []string{"NOTICE", "DEFAULT", "DEED", "LIEN", "TRUSTEE SALE"} {
		if strings.Contains(upper, word) {
			return true
		}
	}
	return false
}

func (p *Parser) newRecord() models.RawRecord {
	return models.RawRecord{
		"county": p.county,
		"source": p.source,
		"stage":  string(models.StageNOD),
	}
}
