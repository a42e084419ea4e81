package leads

import (
	"nodleads/identity"
	"nodleads/models"
)

// Scoring weights. These are business heuristics carried over as tunable
// constants; the specific numbers are not derived from anything.
const (
	scoreBase           = 50
	scoreFreshFiling    = 20 // NOD recorded within 30 days
	scoreRecentFiling   = 10 // within 90 days
	scoreAuctionSoon    = 15 // auction within 45 days
	scoreHighEquity     = 15 // equity above 100k
	scoreSomeEquity     = 5
	scoreHasContact     = 10 // phone or email on file
	scoreHighValue      = 10 // estimated value above 500k
	scoreMax            = 100
	highEquityThreshold = 100_000
	highValueThreshold  = 500_000
)

// Score ranks a lead for outreach priority: fresher filings, nearer
// auctions, more equity and reachable owners sort first.
func Score(l *models.Lead) int {
	score := scoreBase

	if l.DaysSinceNOD != nil {
		switch {
		case *l.DaysSinceNOD <= 30:
			score += scoreFreshFiling
		case *l.DaysSinceNOD <= 90:
			score += scoreRecentFiling
		}
	}

	if l.DaysToAuction != nil && *l.DaysToAuction >= 0 && *l.DaysToAuction <= 45 {
		score += scoreAuctionSoon
	}

	if equity, ok := identity.ParseCurrency(l.Equity); ok {
		if equity >= highEquityThreshold {
			score += scoreHighEquity
		} else if equity > 0 {
			score += scoreSomeEquity
		}
	}

	if l.Phone != "" || l.Email != "" {
		score += scoreHasContact
	}

	if value, ok := identity.ParseCurrency(l.EstimatedValue); ok && value >= highValueThreshold {
		score += scoreHighValue
	}

	if score > scoreMax {
		score = scoreMax
	}
	return score
}
