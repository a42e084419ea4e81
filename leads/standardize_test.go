package leads

import (
	"testing"
	"time"

	"nodleads/models"
)

func testStandardizer() *Standardizer {
	return &Standardizer{
		Now: func() time.Time {
			return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
		},
	}
}

func TestStandardizeEmptyRecord(t *testing.T) {
	s := testStandardizer()

	l := s.Standardize(models.RawRecord{})
	if l == nil {
		t.Fatal("empty record should still standardize")
	}
	if l.Status != models.StatusNew {
		t.Fatalf("expected default status New, got %s", l.Status)
	}
	if l.Stage != models.StageNOD {
		t.Fatalf("expected default stage NOD, got %s", l.Stage)
	}
	if l.DateFound != "2024-03-15" {
		t.Fatalf("expected date found today, got %s", l.DateFound)
	}
	if l.LeadID == "" {
		t.Fatal("expected a lead ID even for an empty record")
	}
	if l.DaysSinceNOD != nil || l.DaysToAuction != nil {
		t.Fatal("derived day counts should be absent without dates")
	}
}

func TestStandardizeAliasPrecedence(t *testing.T) {
	s := testStandardizer()

	l := s.Standardize(models.RawRecord{
		"owner_name": "JOHN SMITH",
		"grantor":    "SOMEONE ELSE",
	})
	if l.OwnerName != "JOHN SMITH" {
		t.Fatalf("direct field should win over alias, got %q", l.OwnerName)
	}

	l = s.Standardize(models.RawRecord{"grantor": "JANE DOE"})
	if l.OwnerName != "JANE DOE" {
		t.Fatalf("alias should fill missing direct field, got %q", l.OwnerName)
	}
}

func TestStandardizeDerivedDays(t *testing.T) {
	s := testStandardizer()

	l := s.Standardize(models.RawRecord{
		"recording_date": "03/01/2024",
		"auction_date":   "2024-04-14",
	})
	if l.RecordingDate != "2024-03-01" {
		t.Fatalf("recording date not normalized: %s", l.RecordingDate)
	}
	if l.DaysSinceNOD == nil || *l.DaysSinceNOD != 14 {
		t.Fatalf("unexpected days since NOD: %v", l.DaysSinceNOD)
	}
	if l.DaysToAuction == nil || *l.DaysToAuction != 29 {
		t.Fatalf("unexpected days to auction: %v", l.DaysToAuction)
	}
}

func TestStandardizeUnparsableDate(t *testing.T) {
	s := testStandardizer()

	l := s.Standardize(models.RawRecord{"recording_date": "sometime last week"})
	if l.RecordingDate != "sometime last week" {
		t.Fatalf("unparsable date should pass through, got %q", l.RecordingDate)
	}
	if l.DaysSinceNOD != nil {
		t.Fatal("no day count should be derived from an unparsable date")
	}
}

func TestStandardizeLeadIDDeterministic(t *testing.T) {
	s := testStandardizer()

	raw := models.RawRecord{
		"apn":            "1234-567-890",
		"recording_date": "2024-03-01",
		"county":         "Los Angeles",
	}
	a := s.Standardize(raw)
	b := s.Standardize(models.RawRecord{
		"parcel_number": "1234-567-890",
		"record_date":   "2024-03-01",
		"county":        "Los Angeles",
		"owner_name":    "JOHN SMITH", // unrelated fields must not affect identity
	})
	if a.LeadID != b.LeadID {
		t.Fatalf("same filing produced different IDs: %s vs %s", a.LeadID, b.LeadID)
	}
}

func TestStandardizePhoneNormalized(t *testing.T) {
	s := testStandardizer()

	l := s.Standardize(models.RawRecord{"phone": "310.555.1234"})
	if l.Phone != "(310) 555-1234" {
		t.Fatalf("phone not normalized: %q", l.Phone)
	}
}

func TestParseDateFormats(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"03/01/2024", "2024-03-01"},
		{"3/1/24", "2024-03-01"},
		{"2024-03-01", "2024-03-01"},
		{"Mar 1, 2024", "2024-03-01"},
		{"", ""},
	}
	for _, c := range cases {
		if got := ParseDate(c.in); got != c.want {
			t.Fatalf("ParseDate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
