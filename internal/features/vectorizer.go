package features

import (
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// TFIDFVectorizer turns a corpus of text blobs into TF-IDF weighted term
// vectors over unigrams and bigrams. A vectorizer is either fitted on the
// batch it transforms or loaded from a previously saved model.
type TFIDFVectorizer struct {
	mu sync.RWMutex

	// Configuration
	maxFeatures int
	minN, maxN  int
	stop        map[string]struct{}

	// Fitted state
	terms  []string
	vocab  map[string]int
	idf    []float64
	fitted bool
}

// Option configures a TFIDFVectorizer.
type Option func(*TFIDFVectorizer)

// WithMaxFeatures caps the vocabulary at the n terms with the highest
// document frequency.
func WithMaxFeatures(n int) Option {
	return func(v *TFIDFVectorizer) {
		v.maxFeatures = n
	}
}

// WithNgramRange sets the inclusive n-gram sizes to extract. Ranges where
// min is below 1 or max is below min are ignored.
func WithNgramRange(min, max int) Option {
	return func(v *TFIDFVectorizer) {
		if min < 1 || max < min {
			return
		}
		v.minN = min
		v.maxN = max
	}
}

// WithStopWords replaces the default English stop-word list.
func WithStopWords(words []string) Option {
	return func(v *TFIDFVectorizer) {
		v.stop = make(map[string]struct{}, len(words))
		for _, w := range words {
			v.stop[strings.ToLower(w)] = struct{}{}
		}
	}
}

// New creates a TFIDFVectorizer with the given options.
func New(opts ...Option) *TFIDFVectorizer {
	v := &TFIDFVectorizer{
		maxFeatures: 1000,
		minN:        1,
		maxN:        2,
		stop:        defaultStopWords(),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Fit builds the vocabulary and inverse document frequencies from the corpus.
// Terms are kept by descending document frequency, alphabetical within ties,
// up to the configured maximum. A corpus that yields no terms at all still
// fits successfully; Transform then produces zero-width rows.
func (v *TFIDFVectorizer) Fit(docs []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(docs) == 0 {
		return errors.New("empty corpus")
	}

	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, term := range v.tokenize(doc) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if v.maxFeatures > 0 && len(terms) > v.maxFeatures {
		terms = terms[:v.maxFeatures]
	}

	// Columns are assigned in alphabetical term order so the layout does
	// not depend on frequency ranking.
	sort.Strings(terms)

	n := float64(len(docs))
	v.terms = terms
	v.vocab = make(map[string]int, len(terms))
	v.idf = make([]float64, len(terms))
	for i, term := range terms {
		v.vocab[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	v.fitted = true

	return nil
}

// Transform maps each document onto the fitted vocabulary. Rows are
// L2-normalized; a document with no known terms stays all-zero.
func (v *TFIDFVectorizer) Transform(docs []string) ([][]float64, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if !v.fitted {
		return nil, errors.New("vectorizer not fitted")
	}

	rows := make([][]float64, len(docs))
	for i, doc := range docs {
		row := make([]float64, len(v.terms))
		for _, term := range v.tokenize(doc) {
			if j, ok := v.vocab[term]; ok {
				row[j] += v.idf[j]
			}
		}
		normalizeRow(row)
		rows[i] = row
	}

	return rows, nil
}

// FitTransform fits on the corpus and transforms it in one pass.
func (v *TFIDFVectorizer) FitTransform(docs []string) ([][]float64, error) {
	if err := v.Fit(docs); err != nil {
		return nil, err
	}
	return v.Transform(docs)
}

// Fitted reports whether the vectorizer carries a usable vocabulary.
func (v *TFIDFVectorizer) Fitted() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.fitted
}

// NumFeatures returns the width of transformed rows.
func (v *TFIDFVectorizer) NumFeatures() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.terms)
}

// Vocabulary returns the fitted terms in column order.
func (v *TFIDFVectorizer) Vocabulary() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// vectorizerModel is the serialized form of a fitted vectorizer.
type vectorizerModel struct {
	MaxFeatures int       `json:"max_features"`
	NgramMin    int       `json:"ngram_min"`
	NgramMax    int       `json:"ngram_max"`
	StopWords   []string  `json:"stop_words"`
	Terms       []string  `json:"terms"`
	IDF         []float64 `json:"idf"`
}

// Save serializes the fitted vectorizer as JSON.
func (v *TFIDFVectorizer) Save() ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if !v.fitted {
		return nil, errors.New("vectorizer not fitted")
	}

	stop := make([]string, 0, len(v.stop))
	for w := range v.stop {
		stop = append(stop, w)
	}
	sort.Strings(stop)

	return json.Marshal(vectorizerModel{
		MaxFeatures: v.maxFeatures,
		NgramMin:    v.minN,
		NgramMax:    v.maxN,
		StopWords:   stop,
		Terms:       v.terms,
		IDF:         v.idf,
	})
}

// Load restores a vectorizer saved with Save.
func (v *TFIDFVectorizer) Load(data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	var m vectorizerModel
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m.Terms) != len(m.IDF) {
		return errors.New("model terms and idf lengths differ")
	}

	v.maxFeatures = m.MaxFeatures
	v.minN, v.maxN = m.NgramMin, m.NgramMax
	if v.minN < 1 || v.maxN < v.minN {
		v.minN, v.maxN = 1, 2
	}
	v.stop = make(map[string]struct{}, len(m.StopWords))
	for _, w := range m.StopWords {
		v.stop[w] = struct{}{}
	}
	v.terms = m.Terms
	v.vocab = make(map[string]int, len(m.Terms))
	for i, term := range m.Terms {
		v.vocab[term] = i
	}
	v.idf = m.IDF
	v.fitted = true

	return nil
}

// tokenize lowercases the document, splits on non-alphanumeric runes, drops
// single-character tokens and stop words, and joins surviving tokens into
// space-separated n-grams for every size in the configured range.
func (v *TFIDFVectorizer) tokenize(doc string) []string {
	fields := strings.FieldsFunc(strings.ToLower(doc), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	unigrams := make([]string, 0, len(fields))
	for _, tok := range fields {
		if utf8.RuneCountInString(tok) < 2 {
			continue
		}
		if _, ok := v.stop[tok]; ok {
			continue
		}
		unigrams = append(unigrams, tok)
	}

	terms := make([]string, 0, (v.maxN-v.minN+1)*len(unigrams))
	for n := v.minN; n <= v.maxN; n++ {
		for i := 0; i+n <= len(unigrams); i++ {
			terms = append(terms, strings.Join(unigrams[i:i+n], " "))
		}
	}

	return terms
}

func normalizeRow(row []float64) {
	var ss float64
	for _, x := range row {
		ss += x * x
	}
	if ss == 0 {
		return
	}
	inv := 1 / math.Sqrt(ss)
	for j := range row {
		row[j] *= inv
	}
}
