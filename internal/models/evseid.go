package models

import (
	"fmt"
	"regexp"
	"strings"
)

// EVSEIDType distinguishes the kind of entity an EVSEID refers to.
type EVSEIDType string

const (
	EVSEIDTypeEVSE    EVSEIDType = "E" // single EVSE (chargepoint)
	EVSEIDTypeStation EVSEIDType = "S" // charging station (site)
	EVSEIDTypePool    EVSEIDType = "P" // pool of charging stations
)

var evseidSeparators = regexp.MustCompile(`[*\-\s]`)

// NormalizeEVSEID uppercases an EVSEID and removes the separators (*, -,
// whitespace) upstreams insert inconsistently. Stored EVSEIDs are always in
// normalized form, e.g. DEABCE12345.
func NormalizeEVSEID(value string) string {
	return strings.ToUpper(evseidSeparators.ReplaceAllString(value, ""))
}

var evseidPatterns = map[EVSEIDType]*regexp.Regexp{
	"":                regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}[ESP][A-Z0-9]{1,31}$`),
	EVSEIDTypeEVSE:    regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}E[A-Z0-9]{1,31}$`),
	EVSEIDTypeStation: regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}S[A-Z0-9]{1,31}$`),
	EVSEIDTypePool:    regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}P[A-Z0-9]{1,31}$`),
}

// ValidateEVSEID validates an EVSEID in normalized (separator-free) form:
// 2 letters country, 3 operator chars, type letter ('E', 'S' or 'P'),
// 1-31 further chars. An empty evseidType accepts any type letter.
func ValidateEVSEID(value string, evseidType EVSEIDType) error {
	pattern, ok := evseidPatterns[evseidType]
	if !ok {
		return fmt.Errorf("unknown EVSEID type %q", evseidType)
	}
	if !pattern.MatchString(value) {
		if evseidType != "" {
			return fmt.Errorf("%s is not a valid EVSEID for type %s", value, evseidType)
		}
		return fmt.Errorf("%s is not a valid EVSEID", value)
	}
	return nil
}

var operatorIDPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}$`)

// ValidateEVSEOperatorID validates an EVSE operator ID in normalized form:
// 2 letters country, 3 operator chars, e.g. DEABC.
func ValidateEVSEOperatorID(value string) error {
	if !operatorIDPattern.MatchString(value) {
		return fmt.Errorf("%s is not a valid EVSE operator ID", value)
	}
	return nil
}
