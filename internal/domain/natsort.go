package domain

import (
	"slices"
	"strings"

	"github.com/maruel/natural"
)

// CompareNatural compares two strings treating runs of digits as numbers, so
// "img2" sorts before "img10". It is zero only for identical strings.
func CompareNatural(a, b string) int {
	switch {
	case a == b:
		return 0
	case natural.Less(a, b):
		return -1
	case natural.Less(b, a):
		return 1
	}
	return strings.Compare(a, b)
}

// SortNatural sorts paths in place using CompareNatural and drops repeats.
func SortNatural(paths []string) []string {
	slices.SortFunc(paths, CompareNatural)
	return slices.Compact(paths)
}
