package utils

import (
	"regexp"
	"strconv"
)

var leadingYearRegex = regexp.MustCompile(`^\s*(\d+)`)

// ParseYear extracts the year from a release date such as "2024-05-17"
// Returns 0 when the date does not start with digits
func ParseYear(date string) int {
	matches := leadingYearRegex.FindStringSubmatch(date)
	if len(matches) > 1 {
		year, err := strconv.Atoi(matches[1])
		if err == nil {
			return year
		}
	}
	return 0
}
