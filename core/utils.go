package core

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var (
	NowFunc = time.Now // mockable

	trailingNumRegex = regexp.MustCompile(`^(.*?)(\d+)\s*$`)
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Section returns the leading letter of a team name, ignoring the "Batch " prefix. eg: "Batch a1" -> "A"
func Section(teamName string) string {
	name := strings.TrimSpace(teamName)
	if len(name) >= 6 && strings.EqualFold(name[:6], "batch ") {
		name = strings.TrimSpace(name[6:])
	}
	for _, r := range name {
		return string(unicode.ToUpper(r))
	}
	return ""
}

// NaturalLess compares names by their prefix, then by their numeric suffix: "A2" < "A10".
func NaturalLess(a, b string) bool {
	ma := trailingNumRegex.FindStringSubmatch(a)
	mb := trailingNumRegex.FindStringSubmatch(b)
	if ma != nil && mb != nil && ma[1] == mb[1] {
		na, errA := strconv.Atoi(ma[2])
		nb, errB := strconv.Atoi(mb[2])
		if errA == nil && errB == nil && na != nb {
			return na < nb
		}
	}
	return a < b
}

// FormatNumber renders a float without trailing zeros: 9 -> "9", 7.5 -> "7.5".
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// StringInSlice reports whether s is one of list.
func StringInSlice(s string, list []string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
