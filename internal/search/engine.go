package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/fikse/fikse-agent/backend/internal/catalog"
	"github.com/fikse/fikse-agent/backend/internal/embedding"
	"github.com/fikse/fikse-agent/backend/internal/models"
	"github.com/fikse/fikse-agent/backend/internal/nlp"
	"github.com/sirupsen/logrus"
)

const (
	// Stage 1 deliberately over-fetches so keyword re-ranking has room to work
	candidateCount = 100
	// Global result cap
	maxResults = 10
	// Price filter tolerance in currency units
	priceTolerance = 50.0
)

// ErrIndexNotReady is surfaced when search is attempted before the embedding
// index has been loaded.
var ErrIndexNotReady = errors.New("search index not ready")

// Embedder turns normalized text into a vector in the catalog's space
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Engine implements the two-stage hybrid search: broad semantic candidate
// retrieval followed by keyword-priority re-ranking.
type Engine struct {
	catalog    *catalog.Catalog
	index      *embedding.Index
	normalizer *nlp.Normalizer
	embedder   Embedder
	logger     *logrus.Logger
}

var pricePattern = regexp.MustCompile(`\b(\d{2,5})\b`)

func NewEngine(
	cat *catalog.Catalog,
	index *embedding.Index,
	normalizer *nlp.Normalizer,
	embedder Embedder,
	logger *logrus.Logger,
) *Engine {
	return &Engine{
		catalog:    cat,
		index:      index,
		normalizer: normalizer,
		embedder:   embedder,
		logger:     logger,
	}
}

type scoredRecord struct {
	id     int
	score  float64
	detail string
}

// Search runs the full pipeline and returns at most 10 ranked ServiceItems.
// An unloaded index yields ErrIndexNotReady; an upstream embedding failure
// degrades to an empty result list and is logged, never propagated.
func (e *Engine) Search(ctx context.Context, query string) ([]models.ServiceItem, error) {
	if !e.index.Ready() {
		return nil, ErrIndexNotReady
	}

	corrected := e.normalizer.Correct(query)
	normalized := e.normalizer.Lemmatize(corrected)
	targetPrice, hasTargetPrice := extractPrice(corrected)

	e.logger.WithFields(logrus.Fields{
		"query":      query,
		"corrected":  corrected,
		"normalized": normalized,
	}).Debug("Starting hybrid search")

	// Stage 1: semantic candidate retrieval
	vector, err := e.embedder.Embed(ctx, normalized)
	if err != nil {
		e.logger.WithError(err).Error("Query embedding failed")
		return []models.ServiceItem{}, nil
	}

	neighbors, err := e.index.Search(vector, candidateCount)
	if err != nil {
		if errors.Is(err, embedding.ErrNotReady) {
			return nil, ErrIndexNotReady
		}
		e.logger.WithError(err).Error("Candidate retrieval failed")
		return []models.ServiceItem{}, nil
	}

	// Stage 2: keyword classification of candidates into priority buckets.
	// Terms come from the corrected (pre-lemmatization) query.
	terms := extractTerms(corrected)

	buckets := map[string][]scoredRecord{
		models.MatchExactService:   nil,
		models.MatchPartialService: nil,
		models.MatchDescription:    nil,
		models.MatchGeneral:        nil,
		models.MatchSemantic:       nil,
	}

	for _, neighbor := range neighbors {
		record := e.catalog.Record(neighbor.ID)
		bucket, detail := classify(record, terms)
		buckets[bucket] = append(buckets[bucket], scoredRecord{
			id:     neighbor.ID,
			score:  neighbor.Score,
			detail: detail,
		})
	}

	// Stage 3: per-bucket similarity sort, then priority-order assembly up
	// to the global cap.
	final := make([]models.ServiceItem, 0, maxResults)
	for _, bucket := range bucketPriority {
		if len(final) >= maxResults {
			break
		}

		group := buckets[bucket]
		sort.SliceStable(group, func(a, b int) bool {
			return group[a].score > group[b].score
		})

		remaining := maxResults - len(final)
		if remaining > len(group) {
			remaining = len(group)
		}

		for _, hit := range group[:remaining] {
			final = append(final, e.toServiceItem(hit, bucket, terms, len(final)+1))
		}
	}

	// Price filter runs after ranking and truncation; it can shrink the
	// list below the cap without backfilling.
	if hasTargetPrice {
		final = filterByPrice(final, targetPrice)
		e.logger.WithFields(logrus.Fields{
			"target_price": targetPrice,
			"tolerance":    priceTolerance,
			"results":      len(final),
		}).Debug("Price filter applied")
	}

	e.logger.WithField("results", len(final)).Debug("Hybrid search completed")
	return final, nil
}

// bucketPriority fixes the tie-break rule as data: classification and
// assembly both walk this order.
var bucketPriority = []string{
	models.MatchExactService,
	models.MatchPartialService,
	models.MatchDescription,
	models.MatchGeneral,
	models.MatchSemantic,
}

// classify puts a record into exactly one bucket. Terms are scanned in query
// order and the first matching term wins for the whole candidate.
func classify(record models.CatalogRecord, terms []string) (bucket, detail string) {
	service := strings.ToLower(record.Service)
	description := strings.ToLower(record.Description)
	garment := strings.ToLower(record.GarmentType)
	repairer := strings.ToLower(record.RepairerType)

	for _, term := range terms {
		switch {
		case term == service:
			return models.MatchExactService, models.MatchExactService + ":" + term
		case strings.Contains(service, term):
			return models.MatchPartialService, models.MatchPartialService + ":" + term
		case strings.Contains(description, term):
			return models.MatchDescription, models.MatchDescription + ":" + term
		case strings.Contains(garment, term), strings.Contains(repairer, term):
			return models.MatchGeneral, models.MatchGeneral + ":" + term
		}
	}

	return models.MatchSemantic, models.MatchSemanticOnly
}

func (e *Engine) toServiceItem(hit scoredRecord, bucket string, terms []string, position int) models.ServiceItem {
	record := e.catalog.Record(hit.id)
	return models.ServiceItem{
		ID:              fmt.Sprintf("service_%d", position),
		Service:         record.Service,
		Description:     record.Description,
		Price:           record.Price,
		GarmentType:     record.GarmentType,
		RepairerType:    record.RepairerType,
		EstimatedHours:  record.EstimatedHours,
		SimilarityScore: hit.score,
		MatchType:       bucket,
		MatchDetail:     hit.detail,
		SearchTerms:     terms,
	}
}

// extractTerms tokenizes the corrected query into lowercased terms longer
// than two characters.
func extractTerms(corrected string) []string {
	fields := strings.Fields(strings.ToLower(corrected))
	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if len(field) > 2 {
			terms = append(terms, field)
		}
	}
	return terms
}

// extractPrice scans for a 2-5 digit integer token used as a target price
func extractPrice(text string) (float64, bool) {
	match := pricePattern.FindString(text)
	if match == "" {
		return 0, false
	}
	price, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

func filterByPrice(items []models.ServiceItem, target float64) []models.ServiceItem {
	filtered := make([]models.ServiceItem, 0, len(items))
	for _, item := range items {
		if math.Abs(item.Price-target) <= priceTolerance {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
