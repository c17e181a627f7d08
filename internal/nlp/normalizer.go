package nlp

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Normalizer prepares free text for embedding and keyword comparison:
// spelling correction first, then lemmatization and lowercasing. It never
// fails; anything unexpected degrades to the lowercased original text.
type Normalizer struct {
	dict   *Dictionary
	logger *logrus.Logger
}

func NewNormalizer(dict *Dictionary, logger *logrus.Logger) *Normalizer {
	return &Normalizer{
		dict:   dict,
		logger: logger,
	}
}

// Correct runs the spelling-correction stage only. The result is lowercased
// but not lemmatized; search-term extraction works on this form.
func (n *Normalizer) Correct(raw string) string {
	if n.dict == nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	corrected := n.dict.CorrectCompound(raw)
	if corrected == "" {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return corrected
}

// Lemmatize lowercases text and reduces every token to its lemma, joined by
// single spaces.
func (n *Normalizer) Lemmatize(text string) string {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return strings.ToLower(strings.TrimSpace(text))
	}

	lemmas := make([]string, 0, len(tokens))
	for _, token := range tokens {
		lemmas = append(lemmas, n.lemma(token))
	}

	return strings.Join(lemmas, " ")
}

// Normalize is the full pipeline: correction then lemmatization. The
// operation is idempotent: Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(raw string) string {
	return n.Lemmatize(n.Correct(raw))
}

// lemma applies the irregular table first, then conservative suffix rules.
// A suffix is only stripped when the stripped form is a known dictionary
// word, which keeps the mapping stable under repeated application.
func (n *Normalizer) lemma(token string) string {
	if lemma, ok := irregularLemmas[token]; ok {
		return lemma
	}

	// Plural nouns
	switch {
	case strings.HasSuffix(token, "ies") && len(token) > 4:
		return token[:len(token)-3] + "y"
	case strings.HasSuffix(token, "sses"),
		strings.HasSuffix(token, "ches"),
		strings.HasSuffix(token, "shes"),
		strings.HasSuffix(token, "xes"),
		strings.HasSuffix(token, "zes"):
		return token[:len(token)-2]
	case strings.HasSuffix(token, "s") && len(token) > 3 &&
		!strings.HasSuffix(token, "ss") &&
		!strings.HasSuffix(token, "us") &&
		!strings.HasSuffix(token, "is"):
		return token[:len(token)-1]
	}

	// Verb inflections, only when the base form is a known word
	if n.dict != nil {
		if strings.HasSuffix(token, "ing") && len(token) > 5 {
			base := token[:len(token)-3]
			if n.dict.Contains(base) {
				return base
			}
			if n.dict.Contains(base + "e") {
				return base + "e"
			}
		}
		if strings.HasSuffix(token, "ed") && len(token) > 4 {
			base := token[:len(token)-2]
			if n.dict.Contains(base) {
				return base
			}
			if n.dict.Contains(base + "e") {
				return base + "e"
			}
		}
	}

	return token
}
