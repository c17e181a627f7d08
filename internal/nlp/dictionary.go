package nlp

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Dictionary holds term frequencies for spelling correction and the lemma
// table used by the normalizer. Built once at startup, read-only afterwards.
type Dictionary struct {
	frequencies map[string]int64
	maxWordLen  int
}

// Irregular lemmas that plain suffix stripping would get wrong. Applied
// before the suffix rules.
var irregularLemmas = map[string]string{
	"is": "be", "are": "be", "was": "be", "were": "be", "been": "be", "being": "be", "am": "be",
	"has": "have", "had": "have", "having": "have",
	"torn": "tear", "tore": "tear",
	"ripped": "rip", "worn": "wear", "wore": "wear",
	"shrunk": "shrink", "shrank": "shrink",
	"broken": "break", "broke": "break",
	"children": "child", "feet": "foot", "men": "man", "women": "woman",
	"jeans": "jeans", "trousers": "trousers", "pants": "pants", "shorts": "shorts",
	"clothes": "clothes", "scissors": "scissors",
}

// NewDictionary builds a dictionary from an in-memory frequency table.
// Used directly by tests; production code loads from disk.
func NewDictionary(frequencies map[string]int64) *Dictionary {
	d := &Dictionary{frequencies: make(map[string]int64, len(frequencies))}
	for term, count := range frequencies {
		d.add(strings.ToLower(term), count)
	}
	return d
}

// LoadFrequencyDictionary reads a SymSpell-style frequency file: one
// "term count" pair per line, whitespace separated.
func LoadFrequencyDictionary(path string) (*Dictionary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer file.Close()

	d := &Dictionary{frequencies: make(map[string]int64)}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		count, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		d.add(strings.ToLower(fields[0]), count)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dictionary: %w", err)
	}

	if len(d.frequencies) == 0 {
		return nil, fmt.Errorf("dictionary %s contains no entries", path)
	}

	return d, nil
}

func (d *Dictionary) add(term string, count int64) {
	d.frequencies[term] += count
	if len(term) > d.maxWordLen {
		d.maxWordLen = len(term)
	}
}

// Contains reports whether term is a known dictionary word
func (d *Dictionary) Contains(term string) bool {
	_, ok := d.frequencies[term]
	return ok
}

// Frequency returns the corpus frequency of term, 0 if unknown
func (d *Dictionary) Frequency(term string) int64 {
	return d.frequencies[term]
}

// Len returns the number of distinct terms
func (d *Dictionary) Len() int {
	return len(d.frequencies)
}
