package scraper

import (
	"context"
	"log"
	"net/url"
	"strconv"
	"time"

	"nodleads/config"
	"nodleads/httputil"
	"nodleads/models"
)

// HTTPHandler scrapes portals that render search results server-side. The
// search is either a GET with query parameters or a POST form, per county
// config; result pages are walked through the portal's next links up to the
// configured page cap.
type HTTPHandler struct {
	cfg    *config.CountyConfig
	client *httputil.Client
	parser *Parser
}

func NewHTTPHandler(cfg *config.CountyConfig, client *httputil.Client) *HTTPHandler {
	return &HTTPHandler{
		cfg:    cfg,
		client: client,
		parser: NewParser(cfg),
	}
}

func (h *HTTPHandler) ID() string {
	return h.cfg.ID
}

func (h *HTTPHandler) Collect(ctx context.Context, from, to time.Time) ([]models.RawRecord, error) {
	var all []models.RawRecord

	for page := 1; page <= h.cfg.MaxPages; page++ {
		body, err := h.fetchPage(ctx, from, to, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			// Later pages failing loses tail results, not the run.
			log.Printf("[%s] page %d fetch failed, keeping %d records: %v", h.cfg.ID, page, len(all), err)
			break
		}

		records, hasNext, err := h.parser.ParsePage(body)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			log.Printf("[%s] page %d parse failed: %v", h.cfg.ID, page, err)
			break
		}

		log.Printf("[%s] page %d: %d records", h.cfg.ID, page, len(records))
		all = append(all, records...)

		if len(records) == 0 || !hasNext {
			break
		}
	}

	return all, nil
}

func (h *HTTPHandler) fetchPage(ctx context.Context, from, to time.Time, page int) ([]byte, error) {
	params := h.searchParams(from, to, page)

	if h.cfg.SearchMethod == "post" {
		return h.client.PostForm(ctx, h.cfg.SearchURL, params)
	}

	u, err := url.Parse(h.cfg.SearchURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	for k, vs := range params {
		q.Set(k, vs[0])
	}
	u.RawQuery = q.Encode()
	return h.client.Get(ctx, u.String())
}

func (h *HTTPHandler) searchParams(from, to time.Time, page int) url.Values {
	params := url.Values{
		"dateFrom": {from.Format("01/02/2006")},
		"dateTo":   {to.Format("01/02/2006")},
	}
	if len(h.cfg.DocKeywords) > 0 {
		params.Set("docType", h.cfg.DocKeywords[0])
	}
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}
	return params
}
