// Package fuzzy scores how close a typed name is to a member's name.
package fuzzy

import (
	"math"
	"unicode"
)

const (
	WinklerThreshold  = 0.7
	WinklerPrefixSize = 4
)

// Similarity computes the Jaro-Winkler similarity between two strings with
// configurable case sensitivity. The result falls in the range 0 (no match) to
// 1 (perfect match).
func Similarity(s1, s2 []rune, caseSensitive bool) float64 {
	if len(s1) == 0 {
		if len(s2) == 0 {
			return 1
		}
		return 0
	}

	matched1, matched2, common := matchRunes(s1, s2, caseSensitive)
	if common == 0 {
		return 0
	}

	halfTransposed := 0
	k := 0
	for i := range s1 {
		if !matched1[i] {
			continue
		}
		for !matched2[k] {
			k++
		}
		if !runesEq(s1[i], s2[k], caseSensitive) {
			halfTransposed++
		}
		k++
	}

	c := float64(common)
	weight := (c/float64(len(s1)) + c/float64(len(s2)) + (c-float64(halfTransposed/2))/c) / 3
	if weight <= WinklerThreshold {
		return weight
	}

	prefix := 0
	for prefix < WinklerPrefixSize && prefix < len(s1) && prefix < len(s2) && runesEq(s1[prefix], s2[prefix], caseSensitive) {
		prefix++
	}

	return weight + 0.1*float64(prefix)*(1-weight)
}

// matchRunes pairs up equal runes of s1 and s2 that are within the jaro search window of each other
func matchRunes(s1, s2 []rune, caseSensitive bool) (matched1, matched2 []bool, common int) {
	window := math.Max(0, math.Max(float64(len(s1)), float64(len(s2)))/2-1)

	matched1 = make([]bool, len(s1))
	matched2 = make([]bool, len(s2))

	for i := range s1 {
		start := int(math.Max(0, float64(i)-window))
		end := int(math.Min(float64(i)+window+1, float64(len(s2))))
		for j := start; j < end; j++ {
			if matched2[j] || !runesEq(s1[i], s2[j], caseSensitive) {
				continue
			}

			matched1[i] = true
			matched2[j] = true
			common++
			break
		}
	}

	return
}

func runesEq(r1, r2 rune, caseSensitive bool) bool {
	if caseSensitive {
		return r1 == r2
	}
	return unicode.ToLower(r1) == unicode.ToLower(r2)
}

// Score returns the case insensitive similarity of query and candidate on a 0-100 scale
func Score(query, candidate string) int {
	return int(math.Round(Similarity([]rune(query), []rune(candidate), false) * 100))
}

// Best returns the index of the highest scoring candidate that scores at least threshold.
// On a tie the earliest candidate wins. ok is false if nothing reached the threshold.
func Best(query string, candidates []string, threshold int) (index int, score int, ok bool) {
	index = -1
	queryRunes := []rune(query)
	for i, c := range candidates {
		s := int(math.Round(Similarity(queryRunes, []rune(c), false) * 100))
		if s < threshold || s <= score && index != -1 {
			continue
		}

		index, score = i, s
	}

	return index, score, index != -1
}
