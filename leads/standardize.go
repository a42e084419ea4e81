// Package leads turns raw scraped records into canonical Lead Records and
// keeps the batch free of repeats.
package leads

import (
	"time"

	"nodleads/identity"
	"nodleads/models"
)

// fieldAliases maps each canonical field to the raw names county portals use
// for it, in preference order. The canonical name itself always wins.
var fieldAliases = map[string][]string{
	"owner_name":       {"grantor", "owner", "trustor", "property_owner"},
	"lender":           {"grantee", "beneficiary", "lender_name"},
	"property_address": {"address", "situs_address", "site_address"},
	"recording_date":   {"record_date", "file_date", "filed_date"},
	"apn":              {"parcel_number", "assessor_parcel", "ain"},
}

var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"01/02/06",
	"01-02-2006",
	"01-02-06",
	"2-Jan-2006",
	"Jan 2, 2006",
}

// Standardizer maps heterogeneous raw records onto the Lead schema. Now is
// replaceable for tests; derived day counts are always computed against it,
// never persisted stale.
type Standardizer struct {
	Now func() time.Time
}

func NewStandardizer() *Standardizer {
	return &Standardizer{Now: time.Now}
}

// Standardize never fails: a raw record that matches no alias still becomes
// a (largely empty) Lead. Whether to keep near-empty leads is the
// orchestrator's call.
func (s *Standardizer) Standardize(raw models.RawRecord) *models.Lead {
	pick := func(field string) string {
		if v := raw[field]; v != "" {
			return v
		}
		return raw.Get(fieldAliases[field]...)
	}

	now := s.Now()

	l := &models.Lead{
		DateFound:       raw["date_found"],
		RecordingDate:   ParseDate(pick("recording_date")),
		OwnerName:       pick("owner_name"),
		Phone:           identity.NormalizePhone(raw["phone"]),
		Email:           raw["email"],
		PropertyAddress: pick("property_address"),
		City:            raw["city"],
		County:          raw["county"],
		APN:             pick("apn"),
		EstimatedValue:  raw["estimated_value"],
		MortgageBalance: raw["mortgage_balance"],
		Equity:          raw["equity"],
		Lender:          pick("lender"),
		Trustee:         raw["trustee"],
		AuctionDate:     ParseDate(raw["auction_date"]),
		Stage:           models.Stage(raw["stage"]),
		Status:          models.Status(raw["status"]),
		Notes:           raw["notes"],
		Source:          raw["source"],
		DocumentNumber:  raw["document_number"],
	}

	if d, ok := parseDate(l.RecordingDate); ok {
		days := int(now.Sub(d).Hours() / 24)
		l.DaysSinceNOD = &days
	}
	if d, ok := parseDate(l.AuctionDate); ok {
		days := int(d.Sub(now).Hours() / 24)
		l.DaysToAuction = &days
	}

	if l.DateFound == "" {
		l.DateFound = now.Format("2006-01-02")
	}
	if l.Status == "" {
		l.Status = models.StatusNew
	}
	if l.Stage == "" {
		l.Stage = models.StageNOD
	}
	if l.LeadID == "" {
		l.LeadID = identity.LeadID(l.APN, l.RecordingDate, l.County)
	}

	return l
}

// ParseDate normalizes the date formats county portals emit to YYYY-MM-DD.
// Unparsable input is passed through unchanged rather than dropped.
func ParseDate(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range dateFormats {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return s
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
