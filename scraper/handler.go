// Package scraper collects Notice of Default filings from county recorder
// portals. Each county gets a Handler chosen by its config: plain HTTP for
// portals that render server-side, a headless browser for JavaScript-heavy
// ones, and RSS for listing feeds.
package scraper

import (
	"context"
	"time"

	"nodleads/config"
	"nodleads/httputil"
	"nodleads/models"
)

type Handler interface {
	ID() string
	Collect(ctx context.Context, from, to time.Time) ([]models.RawRecord, error)
}

func NewHandler(cc *config.CountyConfig, scraperCfg config.ScraperConfig) Handler {
	delay := time.Duration(cc.RateLimitMS) * time.Millisecond
	client := httputil.NewClient(delay, scraperCfg.UserAgents)

	switch cc.Handler {
	case "browser":
		return NewBrowserHandler(cc)
	case "rss":
		return NewRSSHandler(cc, client)
	default:
		return NewHTTPHandler(cc, client)
	}
}
