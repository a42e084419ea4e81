package identity

import "testing"

func TestLeadIDDeterministic(t *testing.T) {
	a := LeadID("1234-567-890", "2024-03-01", "Los Angeles")
	b := LeadID("1234-567-890", "2024-03-01", "Los Angeles")
	if a != b {
		t.Fatalf("same inputs produced different IDs: %s vs %s", a, b)
	}
	if len(a) != 12 {
		t.Fatalf("expected 12-char ID, got %q", a)
	}
	for _, r := range a {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'F') {
			t.Fatalf("ID %q is not uppercase hex", a)
		}
	}
}

func TestLeadIDSensitivity(t *testing.T) {
	base := LeadID("1234-567-890", "2024-03-01", "Los Angeles")
	if LeadID("1234-567-891", "2024-03-01", "Los Angeles") == base {
		t.Fatal("changing APN did not change ID")
	}
	if LeadID("1234-567-890", "2024-03-02", "Los Angeles") == base {
		t.Fatal("changing recording date did not change ID")
	}
	if LeadID("1234-567-890", "2024-03-01", "Riverside") == base {
		t.Fatal("changing county did not change ID")
	}
}

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"123 Main Street, Los Angeles", "123 main st los angeles"},
		{"  456   OAK AVENUE ", "456 oak ave"},
		{"789 N. Elm Drive", "789 n elm dr"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeAddress(c.in); got != c.want {
			t.Fatalf("NormalizeAddress(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestAddressKey(t *testing.T) {
	if got := AddressKey("123 Main St, Los Angeles, CA 90001", 20); got != "123 main st los ange" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := AddressKey("short", 20); got != "short" {
		t.Fatalf("unexpected key %q", got)
	}
	// Suffix variants must key the same.
	if AddressKey("456 Oak Avenue", 20) != AddressKey("456 OAK AVE", 20) {
		t.Fatal("suffix variants should produce the same key")
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"3105551234", "(310) 555-1234"},
		{"1-310-555-1234", "(310) 555-1234"},
		{"(310) 555.1234", "(310) 555-1234"},
		{"call me", "call me"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizePhone(c.in); got != c.want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseCurrency(t *testing.T) {
	if v, ok := ParseCurrency("$1,234,500"); !ok || v != 1234500 {
		t.Fatalf("got %d, %v", v, ok)
	}
	if v, ok := ParseCurrency("450000.75"); !ok || v != 450000 {
		t.Fatalf("got %d, %v", v, ok)
	}
	if _, ok := ParseCurrency(""); ok {
		t.Fatal("empty string should not parse")
	}
	if _, ok := ParseCurrency("N/A"); ok {
		t.Fatal("non-numeric should not parse")
	}
}

func TestFormatCurrency(t *testing.T) {
	if got := FormatCurrency(1234500); got != "$1,234,500" {
		t.Fatalf("got %q", got)
	}
	if got := FormatCurrency(900); got != "$900" {
		t.Fatalf("got %q", got)
	}
}
