// Package enrich fills gaps in collected leads with data from county
// assessor portals: owner of record, situs address, assessed value and
// basic property characteristics.
package enrich

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"nodleads/config"
	"nodleads/identity"
	"nodleads/models"
)

var (
	apnDigitsRegex = regexp.MustCompile(`\D`)

	detailAPNRegex    = regexp.MustCompile(`(?i)APN[:\s]*((?:\d{4}|\d{3})[-\s]?\d{3}[-\s]?\d{3})`)
	detailAddrRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Situs Address[:\s]*([^\n]+)`),
		regexp.MustCompile(`(?i)Property Address[:\s]*([^\n]+)`),
		regexp.MustCompile(`(?i)Site Address[:\s]*([^\n]+)`),
		regexp.MustCompile(`(?i)Location[:\s]*([^\n]+)`),
	}
	detailOwnerRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Owner(?:\s*Name)?[:\s]*([^\n]+)`),
		regexp.MustCompile(`(?i)Property Owner[:\s]*([^\n]+)`),
		regexp.MustCompile(`(?i)Taxpayer[:\s]*([^\n]+)`),
	}
	detailValueRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Total Value[:\s]*\$?([\d,]+)`),
		regexp.MustCompile(`(?i)Assessed Value[:\s]*\$?([\d,]+)`),
		regexp.MustCompile(`(?i)Market Value[:\s]*\$?([\d,]+)`),
		regexp.MustCompile(`(?i)Net Value[:\s]*\$?([\d,]+)`),
	}
	sqftRegex      = regexp.MustCompile(`(?i)(?:Sq\.?\s*Ft\.?|Square Feet|Living Area|Bldg Area)[:\s]*([\d,]+)`)
	bedsRegex      = regexp.MustCompile(`(?i)(\d+)\s*(?:Bed|BR|Bedroom)`)
	bathsRegex     = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:Bath|BA|Bathroom)`)
	yearBuiltRegex = regexp.MustCompile(`(?i)Year Built[:\s]*(\d{4})`)
	lotSizeRegex   = regexp.MustCompile(`(?i)Lot\s*Size[:\s]*([\d,\.]+\s*(?:Sq\.?\s*Ft\.?|Acres?|AC)?)`)
	cityRegex      = regexp.MustCompile(`,\s*([A-Za-z\s]+?),?\s*CA\b`)
)

// Fetcher is what the enricher needs from an HTTP client.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Enricher looks leads up on their county's assessor portal. Lookups go by
// APN when the lead has one and by address otherwise, and never overwrite a
// field the scrape already filled.
type Enricher struct {
	cfg      config.EnrichConfig
	counties map[string]*config.CountyConfig
	client   Fetcher
	limiter  *rate.Limiter
}

func New(cfg config.EnrichConfig, counties map[string]*config.CountyConfig, client Fetcher) *Enricher {
	delay := time.Duration(cfg.RateLimitMS) * time.Millisecond
	if delay <= 0 {
		delay = 5 * time.Second
	}
	return &Enricher{
		cfg:      cfg,
		counties: counties,
		client:   client,
		limiter:  rate.NewLimiter(rate.Every(delay), 1),
	}
}

// EnrichBatch enriches up to the per-run cap and returns how many leads
// changed. Leads beyond the cap pass through untouched; they stay in the
// batch and in the sheet, just without assessor data.
func (e *Enricher) EnrichBatch(ctx context.Context, leads []*models.Lead) int {
	enriched := 0
	attempted := 0

	for _, l := range leads {
		if e.cfg.MaxPerRun > 0 && attempted >= e.cfg.MaxPerRun {
			break
		}
		if !needsEnrichment(l) {
			continue
		}
		attempted++

		changed, err := e.Enrich(ctx, l)
		if err != nil {
			log.Printf("enrich %s: %v", l.LeadID, err)
			continue
		}
		if changed {
			enriched++
		}
	}

	return enriched
}

func needsEnrichment(l *models.Lead) bool {
	return l.EstimatedValue == "" || l.PropertyAddress == "" || l.OwnerName == ""
}

// Enrich looks up one lead and merges whatever the portal knows into its
// empty fields.
func (e *Enricher) Enrich(ctx context.Context, l *models.Lead) (bool, error) {
	cc := e.countyConfig(l.County)
	if cc == nil || cc.AssessorURL == "" {
		return false, fmt.Errorf("no assessor portal configured for county %q", l.County)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return false, err
	}

	body, err := e.lookup(ctx, cc.AssessorURL, l)
	if err != nil {
		return false, err
	}

	details, err := parseDetails(body)
	if err != nil {
		return false, err
	}
	return e.merge(l, details), nil
}

func (e *Enricher) countyConfig(county string) *config.CountyConfig {
	for _, cc := range e.counties {
		if strings.EqualFold(cc.Name, county) {
			return cc
		}
	}
	return nil
}

func (e *Enricher) lookup(ctx context.Context, assessorURL string, l *models.Lead) ([]byte, error) {
	// APN lookups are exact; fall back to address search.
	if l.APN != "" {
		apn := apnDigitsRegex.ReplaceAllString(l.APN, "")
		return e.client.Get(ctx, searchURL(assessorURL, apn))
	}
	if l.PropertyAddress != "" {
		return e.client.Get(ctx, searchURL(assessorURL, l.PropertyAddress))
	}
	return nil, fmt.Errorf("lead %s has neither APN nor address", l.LeadID)
}

func searchURL(assessorURL, query string) string {
	u, err := url.Parse(assessorURL)
	if err != nil {
		return assessorURL + "?q=" + url.QueryEscape(query)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()
	return u.String()
}

// details holds what an assessor page yielded.
type details struct {
	apn           string
	address       string
	owner         string
	assessedValue int64
	city          string
	sqft          string
	beds          string
	baths         string
	yearBuilt     string
	lotSize       string
}

func parseDetails(html []byte) (*details, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	// Assessor pages are label/value soup with no stable markup; work on
	// the rendered text.
	text := doc.Find("body").Text()

	d := &details{}
	if m := detailAPNRegex.FindStringSubmatch(text); m != nil {
		d.apn = m[1]
	}
	d.address = firstMatch(detailAddrRegexes, text)
	d.owner = firstMatch(detailOwnerRegexes, text)

	if raw := firstMatch(detailValueRegexes, text); raw != "" {
		if v, err := strconv.ParseInt(strings.ReplaceAll(raw, ",", ""), 10, 64); err == nil {
			d.assessedValue = v
		}
	}

	if m := sqftRegex.FindStringSubmatch(text); m != nil {
		d.sqft = m[1]
	}
	if m := bedsRegex.FindStringSubmatch(text); m != nil {
		d.beds = m[1]
	}
	if m := bathsRegex.FindStringSubmatch(text); m != nil {
		d.baths = m[1]
	}
	if m := yearBuiltRegex.FindStringSubmatch(text); m != nil {
		d.yearBuilt = m[1]
	}
	if m := lotSizeRegex.FindStringSubmatch(text); m != nil {
		d.lotSize = strings.TrimSpace(m[1])
	}
	if m := cityRegex.FindStringSubmatch(d.address); m != nil {
		d.city = strings.TrimSpace(m[1])
	}

	return d, nil
}

func firstMatch(regexes []*regexp.Regexp, text string) string {
	for _, re := range regexes {
		if m := re.FindStringSubmatch(text); m != nil {
			v := strings.TrimSpace(m[1])
			if len(v) > 2 {
				return v
			}
		}
	}
	return ""
}

// merge fills empty lead fields from assessor details. Scraped recorder data
// outranks assessor data, so nothing already present changes.
func (e *Enricher) merge(l *models.Lead, d *details) bool {
	changed := false
	fill := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			changed = true
		}
	}

	fill(&l.APN, d.apn)
	fill(&l.PropertyAddress, d.address)
	fill(&l.OwnerName, d.owner)
	fill(&l.City, d.city)

	if l.EstimatedValue == "" && d.assessedValue > 0 {
		// Assessed values trail market; scale up to a usable estimate.
		estimated := int64(float64(d.assessedValue) * e.cfg.ValueMultiplier)
		l.EstimatedValue = identity.FormatCurrency(estimated)
		changed = true
	}

	// Equity once both sides are known.
	if l.Equity == "" {
		if value, ok := identity.ParseCurrency(l.EstimatedValue); ok {
			if balance, ok := identity.ParseCurrency(l.MortgageBalance); ok && value > balance {
				l.Equity = identity.FormatCurrency(value - balance)
				changed = true
			}
		}
	}

	if note := characteristicsNote(d); note != "" && !strings.Contains(l.Notes, note) {
		if l.Notes != "" {
			l.Notes += "; "
		}
		l.Notes += note
		changed = true
	}

	return changed
}

func characteristicsNote(d *details) string {
	var parts []string
	if d.beds != "" && d.baths != "" {
		parts = append(parts, d.beds+"bd/"+d.baths+"ba")
	}
	if d.sqft != "" {
		parts = append(parts, d.sqft+" sqft")
	}
	if d.lotSize != "" {
		parts = append(parts, d.lotSize+" lot")
	}
	if d.yearBuilt != "" {
		parts = append(parts, "built "+d.yearBuilt)
	}
	return strings.Join(parts, ", ")
}
