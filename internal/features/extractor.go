// Package features converts batches of failure records into the numeric
// feature matrices consumed by the clusterer.
package features

import (
	"errors"

	"github.com/failsift/failsift/internal/domain"
)

// TemporalFeatureWidth is the number of zero-valued columns reserved for
// time-based features. The block is fixed-width so saved models stay
// column-compatible once those features exist.
const TemporalFeatureWidth = 4

// Matrix is a batch feature matrix: TF-IDF text columns first, then the
// one-hot service block, then the reserved temporal block. Every row has
// the same width.
type Matrix struct {
	Rows      [][]float64
	TextWidth int
}

// Extractor builds feature matrices from failure records. The text block is
// fitted per batch unless a pretrained vectorizer is supplied.
type Extractor struct {
	pretrained *TFIDFVectorizer
	maxTerms   int
	services   []string
	serviceIdx map[string]int
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithVectorizer supplies a pretrained vectorizer. If it is fitted, its
// vocabulary is used instead of a batch-local fit.
func WithVectorizer(v *TFIDFVectorizer) ExtractorOption {
	return func(e *Extractor) {
		e.pretrained = v
	}
}

// WithMaxTerms caps the batch-local vocabulary size.
func WithMaxTerms(n int) ExtractorOption {
	return func(e *Extractor) {
		e.maxTerms = n
	}
}

// NewExtractor creates an Extractor. knownServices fixes the one-hot
// encoding: services outside the list map to the all-zero block.
func NewExtractor(knownServices []string, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		maxTerms:   1000,
		services:   make([]string, len(knownServices)),
		serviceIdx: make(map[string]int, len(knownServices)),
	}
	copy(e.services, knownServices)
	for i, svc := range e.services {
		e.serviceIdx[svc] = i
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Extract builds the feature matrix for a batch. The batch must contain at
// least one record; a batch whose text yields no terms still extracts, with
// TextWidth zero.
func (e *Extractor) Extract(records []domain.FailureRecord) (*Matrix, error) {
	if len(records) == 0 {
		return nil, errors.New("empty batch")
	}

	docs := make([]string, len(records))
	for i, rec := range records {
		docs[i] = rec.Text()
	}

	vec := e.pretrained
	if vec == nil || !vec.Fitted() {
		// Batch-local fit: the vocabulary lives only for this extraction.
		vec = New(WithMaxFeatures(e.maxTerms))
		if err := vec.Fit(docs); err != nil {
			return nil, err
		}
	}
	text, err := vec.Transform(docs)
	if err != nil {
		return nil, err
	}

	textWidth := vec.NumFeatures()
	width := textWidth + len(e.services) + TemporalFeatureWidth
	rows := make([][]float64, len(records))
	for i, rec := range records {
		row := make([]float64, width)
		copy(row, text[i])
		if j, ok := e.serviceIdx[rec.ServiceName]; ok {
			row[textWidth+j] = 1
		}
		rows[i] = row
	}

	return &Matrix{Rows: rows, TextWidth: textWidth}, nil
}
