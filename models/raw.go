package models

// RawRecord is the loose key-value map a scraper extracts from one result
// row or card before standardization. Absent fields are simply missing keys.
type RawRecord map[string]string

// Get returns the first non-empty value among the given keys.
func (r RawRecord) Get(keys ...string) string {
	for _, k := range keys {
		if v := r[k]; v != "" {
			return v
		}
	}
	return ""
}

// Set stores a value, ignoring empty strings so a weaker extraction never
// clobbers a field already found by a stronger one.
func (r RawRecord) Set(key, value string) {
	if value == "" {
		return
	}
	if _, ok := r[key]; !ok {
		r[key] = value
	}
}
