package model

import "strings"

type AccountStatus string

const (
	StatusIdle      AccountStatus = "IDLE"
	StatusChecking  AccountStatus = "CHECKING"
	StatusQualified AccountStatus = "QUALIFIED"
	StatusProduct   AccountStatus = "PRODUCT"
	StatusInvalid   AccountStatus = "INVALID"
)

var AllStatuses = []AccountStatus{
	StatusIdle,
	StatusChecking,
	StatusQualified,
	StatusProduct,
	StatusInvalid,
}

// ParseStatus maps a case-insensitive status name to its value.
func ParseStatus(s string) (AccountStatus, bool) {
	candidate := AccountStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, status := range AllStatuses {
		if candidate == status {
			return status, true
		}
	}
	return "", false
}

// IsCallbackResult reports whether a worker callback may apply this status.
func (s AccountStatus) IsCallbackResult() bool {
	return s == StatusQualified || s == StatusInvalid
}

// WithFinished returns the status that results from setting the finished
// flag. Only QUALIFIED and PRODUCT are coupled to it.
func (s AccountStatus) WithFinished(finished bool) AccountStatus {
	switch {
	case finished && s == StatusQualified:
		return StatusProduct
	case !finished && s == StatusProduct:
		return StatusQualified
	default:
		return s
	}
}

type ImportMode string

const (
	ImportModeOverwrite ImportMode = "OVERWRITE"
	ImportModeAppend    ImportMode = "APPEND"
)

// ParseImportMode defaults a blank mode to APPEND.
func ParseImportMode(s string) (ImportMode, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return ImportModeAppend, true
	case string(ImportModeAppend):
		return ImportModeAppend, true
	case string(ImportModeOverwrite):
		return ImportModeOverwrite, true
	default:
		return "", false
	}
}

type ImportResult struct {
	Added   int        `json:"added"`
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Mode    ImportMode `json:"mode"`
}
