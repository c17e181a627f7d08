package nlp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDictionary() *Dictionary {
	return NewDictionary(map[string]int64{
		"the":     1000000,
		"dress":   50000,
		"zipper":  20000,
		"repair":  30000,
		"broken":  25000,
		"fix":     40000,
		"torn":    15000,
		"jacket":  18000,
		"button":  22000,
		"sew":     9000,
		"replace": 26000,
		"my":      800000,
		"is":      900000,
		"be":      950000,
		"on":      700000,
		"for":     750000,
		"tear":    12000,
		"break":   14000,
		"wear":    13000,
		"have":    600000,
	})
}

func TestNormalizer_Correct(t *testing.T) {
	n := NewNormalizer(testDictionary(), logrus.New())

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single typo", "ziper", "zipper"},
		{"transposition", "drses", "dress"},
		{"already correct", "repair my dress", "repair my dress"},
		{"mixed case", "Fix My DRESS", "fix my dress"},
		{"numbers pass through", "dress 150", "dress 150"},
		{"multiple typos", "reapir broekn ziper", "repair broken zipper"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, n.Correct(tt.input))
		})
	}
}

func TestNormalizer_Correct_NeverFails(t *testing.T) {
	n := NewNormalizer(testDictionary(), logrus.New())

	// Gibberish beyond edit distance 2 stays unchanged
	assert.Equal(t, "xqzzyvw", n.Correct("xqzzyvw"))
	assert.Equal(t, "", n.Correct(""))
	assert.Equal(t, "!!!", n.Correct("!!!"))
}

func TestDictionary_CorrectToken_LongTokenUnchanged(t *testing.T) {
	d := testDictionary()

	// Longer than any dictionary entry plus the edit budget: no candidate
	// can be within distance, so the token passes through
	assert.Equal(t, "incomprehensible", d.correctToken("incomprehensible"))
}

func TestNormalizer_Correct_NilDictionary(t *testing.T) {
	n := NewNormalizer(nil, logrus.New())

	// Without a dictionary correction degrades to lowercasing
	assert.Equal(t, "ziper broke", n.Correct("Ziper BROKE"))
}

func TestNormalizer_Lemmatize(t *testing.T) {
	n := NewNormalizer(testDictionary(), logrus.New())

	tests := []struct {
		input    string
		expected string
	}{
		{"dresses", "dress"},
		{"buttons", "button"},
		{"patches", "patch"},
		{"categories", "category"},
		{"fixing", "fix"},
		{"repaired", "repair"},
		{"torn", "tear"},
		{"jeans", "jeans"},
		{"is", "be"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, n.Lemmatize(tt.input))
		})
	}
}

func TestNormalizer_Normalize_Idempotent(t *testing.T) {
	n := NewNormalizer(testDictionary(), logrus.New())

	inputs := []string{
		"Fix my torn dresses",
		"reapir broekn ziper",
		"sewing buttons on jackets",
		"replace the zipper for 150",
		"",
		"xqzzyvw !!! 42",
	}

	for _, input := range inputs {
		once := n.Normalize(input)
		twice := n.Normalize(once)
		assert.Equal(t, once, twice, "Normalize must be idempotent for %q", input)
	}
}

func TestBoundedEditDistance(t *testing.T) {
	tests := []struct {
		a, b     string
		bound    int
		expected int
	}{
		{"dress", "dress", 2, 0},
		{"ziper", "zipper", 2, 1},
		{"drses", "dress", 2, 1}, // adjacent transposition
		{"fix", "six", 2, 1},
		{"abc", "xyz", 2, -1},
		{"", "ab", 2, 2},
		{"", "abc", 2, -1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, boundedEditDistance(tt.a, tt.b, tt.bound),
			"distance(%q, %q)", tt.a, tt.b)
	}
}

func TestLoadFrequencyDictionary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "freq.txt")

	content := "the 23135851162\ndress 9243038\nzipper 1084110\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	dict, err := LoadFrequencyDictionary(path)
	require.NoError(t, err)

	assert.Equal(t, 3, dict.Len())
	assert.True(t, dict.Contains("zipper"))
	assert.False(t, dict.Contains("missing"))
	assert.Equal(t, int64(9243038), dict.Frequency("dress"))
}

func TestLoadFrequencyDictionary_MissingFile(t *testing.T) {
	_, err := LoadFrequencyDictionary("does/not/exist.txt")
	assert.Error(t, err)
}
