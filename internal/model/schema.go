package model

import "strings"

// RequiredMarker is the suffix that flags a column header as mandatory.
const RequiredMarker = "*"

// Field identifies one column within a schema.
type Field struct {
	Name  string
	Index int
}

// CleanHeader strips the mandatory marker and surrounding whitespace from a
// header, producing its display form.
func CleanHeader(header string) string {
	return strings.TrimSpace(strings.ReplaceAll(header, RequiredMarker, ""))
}

// IsRequired reports whether a header is marked mandatory.
func IsRequired(header string) bool {
	return strings.HasSuffix(strings.TrimSpace(header), RequiredMarker)
}

// CleanHeaders returns the display form of every header.
func CleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, h := range headers {
		cleaned[i] = CleanHeader(h)
	}
	return cleaned
}

// MissingRequired returns the mandatory fields whose cells are still empty,
// in header order. Field names are in display form.
func MissingRequired(headers []string, row []string) []Field {
	var missing []Field
	for idx, header := range headers {
		if !IsRequired(header) {
			continue
		}
		value := ""
		if idx < len(row) {
			value = row[idx]
		}
		if strings.TrimSpace(value) == "" {
			missing = append(missing, Field{Name: CleanHeader(header), Index: idx})
		}
	}
	return missing
}

// FindHeaderIndex locates the first header whose display form, lowercased,
// is in names. It returns -1 when no header matches.
func FindHeaderIndex(headers []string, names map[string]bool) int {
	for idx, header := range headers {
		if names[strings.ToLower(CleanHeader(header))] {
			return idx
		}
	}
	return -1
}

// ValueByHeader returns the trimmed cell value under the first header
// matching names, or the empty string.
func ValueByHeader(headers []string, row []string, names map[string]bool) string {
	idx := FindHeaderIndex(headers, names)
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// PadRow extends row with empty cells until it is aligned with headers.
func PadRow(headers []string, row []string) []string {
	for len(row) < len(headers) {
		row = append(row, "")
	}
	return row
}

// NormalizeText lowercases a value and collapses runs of whitespace, the
// equality used by duplicate detection.
func NormalizeText(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}
