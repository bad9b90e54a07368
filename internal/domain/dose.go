package domain

import (
	"strconv"
	"strings"
)

// NormalizeName canonicalizes a drug, plan, or diagnosis name for matching:
// trim, case-fold, collapse internal whitespace runs to a single space.
// This is the single normalization rule used everywhere names are compared.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// NormalizeDose canonicalizes a dose string so that "1 mg", "1mg" and "1 MG"
// compare equal. The numeric value is reformatted without trailing zeros and
// the unit is lower-cased with whitespace removed. Strings that do not parse
// as value+unit fall back to NormalizeName with spaces removed.
func NormalizeDose(s string) string {
	value, unit, ok := splitDose(s)
	if !ok {
		return strings.ReplaceAll(NormalizeName(s), " ", "")
	}
	return strconv.FormatFloat(value, 'f', -1, 64) + unit
}

// DoseEqual reports whether two dose strings describe the same dose under
// the consolidated normalization rule.
func DoseEqual(a, b string) bool {
	return NormalizeDose(a) == NormalizeDose(b)
}

// splitDose splits a dose string into numeric value and lower-cased unit.
func splitDose(s string) (float64, string, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, "", false
	}

	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
		i++
	}
	if i == 0 {
		return 0, "", false
	}

	value, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0, "", false
	}

	unit := strings.Join(strings.Fields(s[i:]), "")
	return value, unit, true
}

// containsFold reports whether haystack contains needle; both arguments are
// expected to be pre-normalized.
func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(haystack, needle)
}
