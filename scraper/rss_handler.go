package scraper

import (
	"context"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"nodleads/config"
	"nodleads/httputil"
	"nodleads/models"
)

var (
	addressRegex = regexp.MustCompile(`(?i)\d+\s+[A-Za-z\s]+?(?:Street|St|Avenue|Ave|Road|Rd|Drive|Dr|Lane|Ln|Boulevard|Blvd|Circle|Cir|Court|Ct)\b`)
	cityRegex    = regexp.MustCompile(`([A-Z][a-z]+(?:\s[A-Z][a-z]+)*),\s*[A-Z]{2}\b`)
	priceRegex   = regexp.MustCompile(`\$[\d,]+`)
)

// RSSHandler collects listings from foreclosure feed aggregators. Feeds are
// noisier than recorder portals: entries are free text, so fields come out
// of regexes and anything unextractable stays blank for enrichment to fill.
type RSSHandler struct {
	cfg    *config.CountyConfig
	client *httputil.Client
	fp     *gofeed.Parser
}

func NewRSSHandler(cfg *config.CountyConfig, client *httputil.Client) *RSSHandler {
	return &RSSHandler{
		cfg:    cfg,
		client: client,
		fp:     gofeed.NewParser(),
	}
}

func (h *RSSHandler) ID() string {
	return h.cfg.ID
}

func (h *RSSHandler) Collect(ctx context.Context, from, to time.Time) ([]models.RawRecord, error) {
	var all []models.RawRecord
	var lastErr error

	for _, feedURL := range h.cfg.FeedURLs {
		records, err := h.collectFeed(ctx, feedURL, from)
		if err != nil {
			// One dead feed should not sink the others.
			log.Printf("[%s] feed %s failed: %v", h.cfg.ID, feedURL, err)
			lastErr = err
			continue
		}
		all = append(all, records...)
	}

	if len(all) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return all, nil
}

func (h *RSSHandler) collectFeed(ctx context.Context, feedURL string, from time.Time) ([]models.RawRecord, error) {
	body, err := h.client.Get(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	feed, err := h.fp.ParseString(string(body))
	if err != nil {
		return nil, err
	}

	var records []models.RawRecord
	for _, item := range feed.Items {
		if item.PublishedParsed != nil && item.PublishedParsed.Before(from) {
			continue
		}
		records = append(records, h.parseItem(item, feed.Title))
	}

	log.Printf("[%s] feed %q: %d entries", h.cfg.ID, feed.Title, len(records))
	return records, nil
}

func (h *RSSHandler) parseItem(item *gofeed.Item, feedTitle string) models.RawRecord {
	text := item.Title + " " + item.Description

	rec := models.RawRecord{
		"county": h.cfg.Name,
		"source": feedTitle,
		"stage":  detectStage(text),
		"notes":  strings.TrimSpace(item.Title),
	}
	if rec["source"] == "" {
		rec["source"] = h.cfg.Name + " Feed"
	}

	if item.PublishedParsed != nil {
		rec.Set("recording_date", item.PublishedParsed.Format("2006-01-02"))
	}
	rec.Set("property_address", strings.TrimSpace(addressRegex.FindString(text)))
	if m := cityRegex.FindStringSubmatch(text); m != nil {
		rec.Set("city", m[1])
	}
	rec.Set("estimated_value", priceRegex.FindString(text))

	return rec
}

func detectStage(text string) string {
	text = strings.ToLower(text)
	switch {
	case strings.Contains(text, "auction") || strings.Contains(text, "trustee sale"):
		return string(models.StageNTS)
	case strings.Contains(text, "reo") || strings.Contains(text, "bank owned") || strings.Contains(text, "bank-owned"):
		return string(models.StageREO)
	default:
		return string(models.StageNOD)
	}
}
