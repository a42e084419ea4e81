package identity

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	streetReplacements = map[string]string{
		"street":    "st",
		"avenue":    "ave",
		"drive":     "dr",
		"road":      "rd",
		"boulevard": "blvd",
		"lane":      "ln",
		"court":     "ct",
		"place":     "pl",
		"circle":    "cir",
		"terrace":   "ter",
		"highway":   "hwy",
		"parkway":   "pkwy",
		"north":     "n",
		"south":     "s",
		"east":      "e",
		"west":      "w",
		"apartment": "apt",
		"suite":     "ste",
		"unit":      "unit",
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
	nonDigitRegex   = regexp.MustCompile(`\D`)
	currencyRegex   = regexp.MustCompile(`[$,]`)
)

// LeadID derives the stable lead identifier from APN, recording date and
// county. The same filing always hashes to the same 12-char uppercase hex
// string, so re-running collection never mints a second identity for it.
func LeadID(apn, recordingDate, county string) string {
	sum := md5.Sum([]byte(apn + "-" + recordingDate + "-" + county))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:12])
}

// NormalizeAddress lowercases, strips punctuation and collapses street
// suffixes so addresses from different portals compare equal.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")
	addr = multiSpaceRegex.ReplaceAllString(addr, " ")
	fields := strings.Fields(addr)
	for i, f := range fields {
		if abbrev, ok := streetReplacements[f]; ok {
			fields[i] = abbrev
		}
	}
	return strings.Join(fields, " ")
}

// AddressKey is the weak dedup key: the first n characters of the
// normalized address, so "123 Main Street" and "123 Main St" key the same.
func AddressKey(addr string, n int) string {
	addr = NormalizeAddress(addr)
	if len(addr) > n {
		addr = addr[:n]
	}
	return addr
}

// NormalizePhone formats a US phone number as (XXX) XXX-XXXX. Anything that
// is not a 10-digit (or 1-prefixed 11-digit) number is returned unchanged.
func NormalizePhone(phone string) string {
	if phone == "" {
		return ""
	}
	digits := nonDigitRegex.ReplaceAllString(phone, "")
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return phone
	}
	return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
}

// ParseCurrency parses "$1,234,500" style strings. Returns 0, false when the
// value is absent or not numeric.
func ParseCurrency(value string) (int64, bool) {
	cleaned := strings.TrimSpace(currencyRegex.ReplaceAllString(value, ""))
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

// FormatCurrency renders a dollar amount as "$1,234,500".
func FormatCurrency(value int64) string {
	s := strconv.FormatInt(value, 10)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := "$" + strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}
