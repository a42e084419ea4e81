package enrich

import (
	"context"
	"strings"
	"testing"

	"nodleads/config"
	"nodleads/models"
)

const assessorPage = `<html><body>
<div>APN: 1234-567-890</div>
<div>Situs Address: 123 MAIN ST, LOS ANGELES, CA 90001</div>
<div>Owner Name: SMITH, JOHN</div>
<div>Assessed Value: $400,000</div>
<div>Living Area: 1,500</div>
<div>3 Bedrooms</div>
<div>2 Bathrooms</div>
<div>Year Built: 1975</div>
<div>Lot Size: 7,200 Sq Ft</div>
</body></html>`

type fakeFetcher struct {
	page string
	urls []string
}

func (f *fakeFetcher) Get(_ context.Context, rawURL string) ([]byte, error) {
	f.urls = append(f.urls, rawURL)
	return []byte(f.page), nil
}

func testEnricher(fetcher *fakeFetcher) *Enricher {
	counties := map[string]*config.CountyConfig{
		"la_county": {
			ID:          "la_county",
			Name:        "Los Angeles",
			AssessorURL: "https://assessor.example.gov/search",
		},
	}
	cfg := config.EnrichConfig{
		RateLimitMS:     1,
		ValueMultiplier: 1.5,
	}
	return New(cfg, counties, fetcher)
}

func TestEnrichFillsGaps(t *testing.T) {
	fetcher := &fakeFetcher{page: assessorPage}
	e := testEnricher(fetcher)

	l := &models.Lead{
		LeadID: "ABC123",
		County: "Los Angeles",
		APN:    "1234-567-890",
	}

	changed, err := e.Enrich(context.Background(), l)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if !changed {
		t.Fatal("expected lead to change")
	}

	if l.PropertyAddress != "123 MAIN ST, LOS ANGELES, CA 90001" {
		t.Errorf("address = %q", l.PropertyAddress)
	}
	if l.OwnerName != "SMITH, JOHN" {
		t.Errorf("owner = %q", l.OwnerName)
	}
	// Assessed $400,000 scaled by 1.5.
	if l.EstimatedValue != "$600,000" {
		t.Errorf("estimated value = %q", l.EstimatedValue)
	}
	if l.City != "LOS ANGELES" {
		t.Errorf("city = %q", l.City)
	}
	if l.Notes == "" {
		t.Error("expected characteristics in notes")
	}
}

func TestEnrichCharacteristicsNote(t *testing.T) {
	fetcher := &fakeFetcher{page: assessorPage}
	e := testEnricher(fetcher)

	l := &models.Lead{LeadID: "ABC123", County: "Los Angeles", APN: "1234-567-890"}
	if _, err := e.Enrich(context.Background(), l); err != nil {
		t.Fatalf("enrich: %v", err)
	}

	want := "3bd/2ba, 1,500 sqft, 7,200 Sq Ft lot, built 1975"
	if l.Notes != want {
		t.Errorf("notes = %q, want %q", l.Notes, want)
	}
}

func TestEnrichNeverOverwrites(t *testing.T) {
	fetcher := &fakeFetcher{page: assessorPage}
	e := testEnricher(fetcher)

	l := &models.Lead{
		LeadID:          "ABC123",
		County:          "Los Angeles",
		APN:             "9999-888-777",
		OwnerName:       "ORIGINAL OWNER",
		PropertyAddress: "999 Original Ave",
		EstimatedValue:  "$1,000,000",
		City:            "Pasadena",
	}

	if _, err := e.Enrich(context.Background(), l); err != nil {
		t.Fatalf("enrich: %v", err)
	}

	if l.OwnerName != "ORIGINAL OWNER" {
		t.Errorf("owner overwritten: %q", l.OwnerName)
	}
	if l.PropertyAddress != "999 Original Ave" {
		t.Errorf("address overwritten: %q", l.PropertyAddress)
	}
	if l.EstimatedValue != "$1,000,000" {
		t.Errorf("value overwritten: %q", l.EstimatedValue)
	}
	if l.APN != "9999-888-777" {
		t.Errorf("apn overwritten: %q", l.APN)
	}
}

func TestEnrichComputesEquity(t *testing.T) {
	fetcher := &fakeFetcher{page: assessorPage}
	e := testEnricher(fetcher)

	l := &models.Lead{
		LeadID:          "ABC123",
		County:          "Los Angeles",
		APN:             "1234-567-890",
		MortgageBalance: "$450,000",
	}

	if _, err := e.Enrich(context.Background(), l); err != nil {
		t.Fatalf("enrich: %v", err)
	}

	// $600,000 estimated minus $450,000 balance.
	if l.Equity != "$150,000" {
		t.Errorf("equity = %q", l.Equity)
	}
}

func TestEnrichLookupPrefersAPN(t *testing.T) {
	fetcher := &fakeFetcher{page: assessorPage}
	e := testEnricher(fetcher)

	l := &models.Lead{
		County:          "Los Angeles",
		APN:             "1234-567-890",
		PropertyAddress: "123 Main St",
	}
	if _, err := e.Enrich(context.Background(), l); err != nil {
		t.Fatalf("enrich: %v", err)
	}

	if len(fetcher.urls) != 1 {
		t.Fatalf("expected 1 lookup, got %d", len(fetcher.urls))
	}
	// Digits-only APN in the query.
	if want := "q=1234567890"; !strings.Contains(fetcher.urls[0], want) {
		t.Errorf("lookup URL %q missing %q", fetcher.urls[0], want)
	}
}

func TestEnrichBatchRespectsCap(t *testing.T) {
	fetcher := &fakeFetcher{page: assessorPage}
	e := testEnricher(fetcher)
	e.cfg.MaxPerRun = 2

	leads := []*models.Lead{
		{County: "Los Angeles", APN: "100-100-100"},
		{County: "Los Angeles", APN: "200-200-200"},
		{County: "Los Angeles", APN: "300-300-300"},
	}

	enriched := e.EnrichBatch(context.Background(), leads)
	if enriched != 2 {
		t.Fatalf("expected 2 enriched, got %d", enriched)
	}
	if len(fetcher.urls) != 2 {
		t.Fatalf("expected 2 lookups, got %d", len(fetcher.urls))
	}
	// The capped-out lead is untouched, not dropped.
	if leads[2].EstimatedValue != "" {
		t.Error("lead past the cap should be unmodified")
	}
}

func TestEnrichUnknownCounty(t *testing.T) {
	fetcher := &fakeFetcher{page: assessorPage}
	e := testEnricher(fetcher)

	l := &models.Lead{County: "Orange", APN: "111-222-333"}
	if _, err := e.Enrich(context.Background(), l); err == nil {
		t.Fatal("expected error for county with no assessor portal")
	}
}
