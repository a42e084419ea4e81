package models

import "strconv"

type Stage string

const (
	StageNOD     Stage = "NOD"
	StageNTS     Stage = "NTS"
	StageREO     Stage = "REO"
	StageUnknown Stage = "Unknown"
)

type Status string

const (
	StatusNew       Status = "New"
	StatusContacted Status = "Contacted"
	StatusClosed    Status = "Closed"
)

// Lead is the canonical record flowing through the pipeline: created by a
// county scraper, filled in by the standardizer and enricher, and finally
// written as one spreadsheet row.
type Lead struct {
	LeadID          string `json:"lead_id"`
	DateFound       string `json:"date_found"`     // YYYY-MM-DD
	RecordingDate   string `json:"recording_date"` // YYYY-MM-DD, may be empty
	DaysSinceNOD    *int   `json:"days_since_nod"`
	OwnerName       string `json:"owner_name"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	PropertyAddress string `json:"property_address"`
	City            string `json:"city"`
	County          string `json:"county"`
	APN             string `json:"apn"`
	EstimatedValue  string `json:"estimated_value"`
	MortgageBalance string `json:"mortgage_balance"`
	Equity          string `json:"equity"`
	Lender          string `json:"lender"`
	Trustee         string `json:"trustee"`
	AuctionDate     string `json:"auction_date"` // YYYY-MM-DD, may be empty
	DaysToAuction   *int   `json:"days_to_auction"`
	Stage           Stage  `json:"stage"`
	Status          Status `json:"status"`
	LeadScore       int    `json:"lead_score"`
	Notes           string `json:"notes"`
	Source          string `json:"source"`

	// DocumentNumber is a recorder-assigned identifier used for
	// deduplication. It is not part of the sheet schema.
	DocumentNumber string `json:"document_number,omitempty"`

	// RowNumber is set when the lead was read back from the sheet
	// (1-indexed, 0 means not from the sheet).
	RowNumber int `json:"-"`
}

// Columns is the fixed destination spreadsheet column order. Row and
// LeadFromRow must stay in lockstep with it.
var Columns = []string{
	"lead_id",
	"date_found",
	"recording_date",
	"days_since_nod",
	"owner_name",
	"phone",
	"email",
	"property_address",
	"city",
	"county",
	"apn",
	"estimated_value",
	"mortgage_balance",
	"equity",
	"lender",
	"trustee",
	"auction_date",
	"days_to_auction",
	"stage",
	"status",
	"lead_score",
	"notes",
	"source",
}

// Row renders the lead as one spreadsheet row in Columns order.
func (l *Lead) Row() []string {
	return []string{
		l.LeadID,
		l.DateFound,
		l.RecordingDate,
		intCell(l.DaysSinceNOD),
		l.OwnerName,
		l.Phone,
		l.Email,
		l.PropertyAddress,
		l.City,
		l.County,
		l.APN,
		l.EstimatedValue,
		l.MortgageBalance,
		l.Equity,
		l.Lender,
		l.Trustee,
		l.AuctionDate,
		intCell(l.DaysToAuction),
		string(l.Stage),
		string(l.Status),
		strconv.Itoa(l.LeadScore),
		l.Notes,
		l.Source,
	}
}

// LeadFromRow parses a sheet row back into a Lead. Short rows are padded;
// unparsable numeric cells are left at their zero values.
func LeadFromRow(row []string, rowNumber int) *Lead {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}

	l := &Lead{
		LeadID:          cell(0),
		DateFound:       cell(1),
		RecordingDate:   cell(2),
		OwnerName:       cell(4),
		Phone:           cell(5),
		Email:           cell(6),
		PropertyAddress: cell(7),
		City:            cell(8),
		County:          cell(9),
		APN:             cell(10),
		EstimatedValue:  cell(11),
		MortgageBalance: cell(12),
		Equity:          cell(13),
		Lender:          cell(14),
		Trustee:         cell(15),
		AuctionDate:     cell(16),
		Stage:           Stage(cell(18)),
		Status:          Status(cell(19)),
		Notes:           cell(21),
		Source:          cell(22),
		RowNumber:       rowNumber,
	}
	if n, err := strconv.Atoi(cell(3)); err == nil {
		l.DaysSinceNOD = &n
	}
	if n, err := strconv.Atoi(cell(17)); err == nil {
		l.DaysToAuction = &n
	}
	if n, err := strconv.Atoi(cell(20)); err == nil {
		l.LeadScore = n
	}
	return l
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
