package nlp

import (
	"strings"
)

// Spelling correction: per-token lookup against the frequency dictionary with
// a maximum edit distance of 2, preferring the most frequent candidate. A
// token with no candidate within distance stays unchanged, so correction on
// already-correct text is the identity.

const maxEditDistance = 2

// CorrectCompound corrects each token of text independently and rejoins the
// result with single spaces. The output is always lowercased.
func (d *Dictionary) CorrectCompound(text string) string {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return strings.ToLower(strings.TrimSpace(text))
	}

	corrected := make([]string, 0, len(tokens))
	for _, token := range tokens {
		corrected = append(corrected, d.correctToken(token))
	}

	return strings.Join(corrected, " ")
}

func (d *Dictionary) correctToken(token string) string {
	// Known words, numbers and punctuation-heavy tokens pass through
	if d.Contains(token) || !isAlphabetic(token) {
		return token
	}

	// No dictionary word can be within distance when the token is longer
	// than the longest entry plus the edit budget; skip the scan entirely
	if len(token) > d.maxWordLen+maxEditDistance {
		return token
	}

	best := token
	var bestFrequency int64
	bestDistance := maxEditDistance + 1

	for term, freq := range d.frequencies {
		// Length difference is a lower bound on edit distance
		diff := len(term) - len(token)
		if diff > maxEditDistance || diff < -maxEditDistance {
			continue
		}

		distance := boundedEditDistance(token, term, maxEditDistance)
		if distance < 0 {
			continue
		}

		// Closer wins; at equal distance the more frequent term wins
		if distance < bestDistance || (distance == bestDistance && freq > bestFrequency) {
			best = term
			bestFrequency = freq
			bestDistance = distance
		}
	}

	return best
}

func isAlphabetic(token string) bool {
	for _, r := range token {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(token) > 0
}

// boundedEditDistance computes the Damerau-Levenshtein distance between a and
// b, returning -1 as soon as it can prove the distance exceeds bound.
func boundedEditDistance(a, b string, bound int) int {
	la, lb := len(a), len(b)
	if la == 0 {
		if lb > bound {
			return -1
		}
		return lb
	}
	if lb == 0 {
		if la > bound {
			return -1
		}
		return la
	}

	prevPrev := make([]int, lb+1)
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)

	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		rowMin := curr[0]

		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			deletion := prev[j] + 1
			insertion := curr[j-1] + 1
			substitution := prev[j-1] + cost

			min := deletion
			if insertion < min {
				min = insertion
			}
			if substitution < min {
				min = substitution
			}

			// Adjacent transposition
			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				if t := prevPrev[j-2] + 1; t < min {
					min = t
				}
			}

			curr[j] = min
			if min < rowMin {
				rowMin = min
			}
		}

		if rowMin > bound {
			return -1
		}

		prevPrev, prev, curr = prev, curr, prevPrev
	}

	if prev[lb] > bound {
		return -1
	}
	return prev[lb]
}
