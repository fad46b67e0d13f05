package settings

import "strings"

// compareSpecificity is the pairwise specificity comparator over patterns
// that match a common key. It returns a negative value when left is more
// specific than right, a positive value when left is less specific, and zero
// when neither ranks above the other.
//
// The rules apply in order:
//
//  1. A pattern containing '#' is less specific than one without it.
//  2. Between two '#' patterns, the longer one is more specific.
//  3. A pattern containing '*' is less specific than one without it.
//  4. Between two '*' patterns, tokens are scanned left to right; at the
//     first position where exactly one side is '*', the side with the
//     literal token is more specific. The first such position decides the
//     whole comparison; later positions are never examined.
//  5. Otherwise the longer pattern is more specific.
func compareSpecificity(left, right string) int {
	leftAny := strings.Contains(left, AnyWords)
	rightAny := strings.Contains(right, AnyWords)

	switch {
	case leftAny && !rightAny:
		return +1
	case !leftAny && rightAny:
		return -1
	case leftAny && rightAny:
		return len(right) - len(left)
	}

	leftSingle := strings.Contains(left, SingleWord)
	rightSingle := strings.Contains(right, SingleWord)

	switch {
	case leftSingle && !rightSingle:
		return +1
	case !leftSingle && rightSingle:
		return -1
	case leftSingle && rightSingle:
		leftTokens := strings.Split(left, Delimiter)
		rightTokens := strings.Split(right, Delimiter)
		for i := 0; i < len(leftTokens) && i < len(rightTokens); i++ {
			leftWild := leftTokens[i] == SingleWord
			rightWild := rightTokens[i] == SingleWord
			if leftWild && !rightWild {
				return +1
			}
			if !leftWild && rightWild {
				return -1
			}
		}
	}

	return len(right) - len(left)
}
