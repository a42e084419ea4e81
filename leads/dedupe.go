package leads

import (
	"nodleads/identity"
	"nodleads/models"
)

// Deduplicator collapses records that describe the same filing. Key
// preference: APN, then document number, then truncated normalized address.
// A record with no usable key is always kept; dropping a genuine lead costs
// more than carrying an occasional repeat.
type Deduplicator struct {
	// AddrKeyLen is how many characters of the case-folded address form
	// the weak key.
	AddrKeyLen int
}

func NewDeduplicator(addrKeyLen int) *Deduplicator {
	if addrKeyLen <= 0 {
		addrKeyLen = 20
	}
	return &Deduplicator{AddrKeyLen: addrKeyLen}
}

// Key returns the strongest dedup key available, or false when the record
// has no identifier at all.
func (d *Deduplicator) Key(l *models.Lead) (string, bool) {
	if l.APN != "" {
		return "apn:" + l.APN, true
	}
	if l.DocumentNumber != "" {
		return "doc:" + l.DocumentNumber, true
	}
	if addr := identity.AddressKey(l.PropertyAddress, d.AddrKeyLen); addr != "" {
		return "addr:" + addr, true
	}
	return "", false
}

// Dedupe removes within-batch repeats, keeping first occurrences. Idempotent:
// running it on its own output removes nothing further.
func (d *Deduplicator) Dedupe(records []*models.Lead) []*models.Lead {
	seen := make(map[string]bool, len(records))
	unique := make([]*models.Lead, 0, len(records))

	for _, l := range records {
		key, ok := d.Key(l)
		if !ok {
			unique = append(unique, l)
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, l)
	}

	return unique
}

// IsDuplicate checks a candidate against previously stored records. The
// strong match is APN plus recording date; the fallback is address-prefix
// equality, requiring equal recording dates only when both sides have one.
func (d *Deduplicator) IsDuplicate(candidate *models.Lead, existing []*models.Lead) bool {
	candAddr := identity.AddressKey(candidate.PropertyAddress, d.AddrKeyLen)

	for _, e := range existing {
		if candidate.APN != "" && candidate.APN == e.APN &&
			candidate.RecordingDate == e.RecordingDate {
			return true
		}

		if candAddr == "" {
			continue
		}
		if candAddr != identity.AddressKey(e.PropertyAddress, d.AddrKeyLen) {
			continue
		}
		if candidate.RecordingDate == "" || e.RecordingDate == "" ||
			candidate.RecordingDate == e.RecordingDate {
			return true
		}
	}

	return false
}
