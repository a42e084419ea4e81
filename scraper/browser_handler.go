package scraper

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"nodleads/config"
	"nodleads/models"
)

// Recorder portals are old government webapps with no stable IDs; each
// interaction tries a list of selectors and uses the first one that exists.
var (
	docTypeSelectors = []string{
		"select[name*='doc']",
		"select[id*='doc']",
		"select[name*='type']",
		"#documentType",
		".doc-type-select",
	}
	dateFromSelectors = []string{
		"input[name*='from']",
		"input[name*='start']",
		"input[id*='from']",
		"input[id*='start']",
		"#startDate",
		".date-from",
	}
	dateToSelectors = []string{
		"input[name*='to']",
		"input[name*='end']",
		"input[id*='to']",
		"input[id*='end']",
		"#endDate",
		".date-to",
	}
	submitSelectors = []string{
		"button[type='submit']",
		"input[type='submit']",
		"button[name*='search']",
		"#searchButton",
		".search-btn",
		"button.btn-primary",
	}
	nextPageSelectors = []string{
		"a.next",
		"button.next",
		"[aria-label='Next']",
		".pagination .next",
	}
)

// BrowserHandler drives a headless Chromium through portals that only render
// results client-side. One search session per Collect call; the browser is
// torn down afterwards so a wedged portal cannot leak pages across runs.
type BrowserHandler struct {
	cfg    *config.CountyConfig
	parser *Parser

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	page        playwright.Page
	initialized bool
}

func NewBrowserHandler(cfg *config.CountyConfig) *BrowserHandler {
	return &BrowserHandler{
		cfg:    cfg,
		parser: NewParser(cfg),
	}
}

func (h *BrowserHandler) ID() string {
	return h.cfg.ID
}

func (h *BrowserHandler) Collect(ctx context.Context, from, to time.Time) ([]models.RawRecord, error) {
	if err := h.ensureBrowser(); err != nil {
		return nil, err
	}
	defer h.Close()

	log.Printf("[%s] navigating to %s", h.cfg.ID, h.cfg.SearchURL)
	if _, err := h.page.Goto(h.cfg.SearchURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", h.cfg.SearchURL, err)
	}
	h.humanDelay(2000, 4000)

	if err := h.submitSearch(from, to); err != nil {
		return nil, err
	}

	var all []models.RawRecord

	for page := 1; page <= h.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		records, err := h.parseCurrentPage()
		if err != nil {
			if page == 1 {
				return nil, err
			}
			log.Printf("[%s] page %d parse failed, keeping %d records: %v", h.cfg.ID, page, len(all), err)
			break
		}

		log.Printf("[%s] page %d: %d records", h.cfg.ID, page, len(records))
		all = append(all, records...)

		if len(records) == 0 || page == h.cfg.MaxPages {
			break
		}
		if !h.clickNextPage() {
			break
		}
		h.humanDelay(h.cfg.RateLimitMS, h.cfg.RateLimitMS*2)
	}

	return all, nil
}

func (h *BrowserHandler) ensureBrowser() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return nil
	}

	var err error
	h.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	h.browser, err = h.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		h.pw.Stop()
		return fmt.Errorf("launch browser: %w", err)
	}

	h.page, err = h.browser.NewPage()
	if err != nil {
		h.browser.Close()
		h.pw.Stop()
		return fmt.Errorf("create page: %w", err)
	}

	h.initialized = true
	return nil
}

func (h *BrowserHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.page != nil {
		h.page.Close()
		h.page = nil
	}
	if h.browser != nil {
		h.browser.Close()
		h.browser = nil
	}
	if h.pw != nil {
		h.pw.Stop()
		h.pw = nil
	}
	h.initialized = false
}

// submitSearch picks the document type, fills the date range and submits.
// Every step is best-effort: some portals pre-filter to default notices and
// have no type selector at all.
func (h *BrowserHandler) submitSearch(from, to time.Time) error {
	h.selectDocType()
	h.fillFirst(dateFromSelectors, from.Format("01/02/2006"))
	h.fillFirst(dateToSelectors, to.Format("01/02/2006"))

	if !h.clickFirst(submitSelectors) {
		return fmt.Errorf("no search submit control found on %s", h.cfg.SearchURL)
	}

	log.Printf("[%s] search submitted", h.cfg.ID)
	h.humanDelay(4000, 6000)
	return nil
}

func (h *BrowserHandler) selectDocType() {
	for _, sel := range docTypeSelectors {
		dropdown := h.page.Locator(sel).First()
		if visible, _ := dropdown.IsVisible(); !visible {
			continue
		}

		options, err := dropdown.Locator("option").AllTextContents()
		if err != nil {
			continue
		}
		for _, opt := range options {
			if h.parser.matchesKeywords(opt) {
				if _, err := dropdown.SelectOption(playwright.SelectOptionValues{
					Labels: &[]string{strings.TrimSpace(opt)},
				}); err == nil {
					log.Printf("[%s] selected document type %q", h.cfg.ID, strings.TrimSpace(opt))
					h.humanDelay(500, 1000)
					return
				}
			}
		}
		return
	}
}

func (h *BrowserHandler) fillFirst(selectors []string, value string) {
	for _, sel := range selectors {
		el := h.page.Locator(sel).First()
		if visible, _ := el.IsVisible(); !visible {
			continue
		}
		if err := el.Fill(value); err == nil {
			return
		}
	}
}

func (h *BrowserHandler) clickFirst(selectors []string) bool {
	for _, sel := range selectors {
		el := h.page.Locator(sel).First()
		if visible, _ := el.IsVisible(); !visible {
			continue
		}
		if err := el.Click(); err == nil {
			return true
		}
	}
	return false
}

func (h *BrowserHandler) clickNextPage() bool {
	if !h.clickFirst(nextPageSelectors) {
		return false
	}
	h.humanDelay(2000, 4000)
	return true
}

func (h *BrowserHandler) parseCurrentPage() ([]models.RawRecord, error) {
	content, err := h.page.Content()
	if err != nil {
		return nil, fmt.Errorf("read page content: %w", err)
	}
	records, _, err := h.parser.ParsePage([]byte(content))
	return records, err
}

func (h *BrowserHandler) humanDelay(minMs, maxMs int) {
	if maxMs <= minMs {
		maxMs = minMs + 1
	}
	delay := minMs + rand.Intn(maxMs-minMs)
	time.Sleep(time.Duration(delay) * time.Millisecond)
}
