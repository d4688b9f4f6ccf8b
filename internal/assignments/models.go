package assignments

import (
	"strings"
	"time"
)

// Assignment is one education assignment as observed on the remote API.
// The relay never mutates or deletes assignments; it only announces them.
type Assignment struct {
	// ID is the opaque identifier assigned by the remote system. It is
	// compared byte for byte, never normalized.
	ID string
	// Title is empty when the remote omitted the display name.
	Title string
	// DueAt is the raw ISO-8601 due timestamp, empty when there is no due date.
	DueAt string
}

// HasTitle reports whether the remote supplied a non-blank display name.
func (a Assignment) HasTitle() bool {
	return strings.TrimSpace(a.Title) != ""
}

// HasDueDate reports whether the assignment carries a due timestamp.
func (a Assignment) HasDueDate() bool {
	return strings.TrimSpace(a.DueAt) != ""
}

// localDueLayout is an ISO-8601 timestamp without a zone designator. Such
// values are read as UTC.
const localDueLayout = "2006-01-02T15:04:05"

// DueTimeUTC parses DueAt and normalizes it to UTC.
func (a Assignment) DueTimeUTC() (time.Time, error) {
	raw := strings.TrimSpace(a.DueAt)

	// Both layouts accept optional fractional seconds, which covers the
	// seven-digit precision Graph sometimes returns.
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		local, localErr := time.Parse(localDueLayout, raw)
		if localErr != nil {
			return time.Time{}, err
		}
		t = local
	}
	return t.UTC(), nil
}
