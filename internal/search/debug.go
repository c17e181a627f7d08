package search

import (
	"context"
)

// QueryProcessing shows each stage of the text pipeline for one query
type QueryProcessing struct {
	Original   string `json:"original"`
	Corrected  string `json:"corrected"`
	Normalized string `json:"normalized"`
}

// DebugCandidate is one raw stage-1 candidate before re-ranking
type DebugCandidate struct {
	Service         string  `json:"service"`
	Description     string  `json:"description"`
	GarmentType     string  `json:"garment_type"`
	SimilarityScore float64 `json:"similarity_score"`
}

// DebugResult explains how a query moves through the pipeline
type DebugResult struct {
	QueryProcessing QueryProcessing  `json:"query_processing"`
	SearchTerms     []string         `json:"search_terms"`
	TargetPrice     *float64         `json:"target_price,omitempty"`
	SampleEntries   []DebugCandidate `json:"sample_entries"`
}

// Debug reports the query-processing stages plus the top raw semantic
// candidates, without bucket re-ranking.
func (e *Engine) Debug(ctx context.Context, query string) (*DebugResult, error) {
	if !e.index.Ready() {
		return nil, ErrIndexNotReady
	}

	corrected := e.normalizer.Correct(query)
	normalized := e.normalizer.Lemmatize(corrected)

	result := &DebugResult{
		QueryProcessing: QueryProcessing{
			Original:   query,
			Corrected:  corrected,
			Normalized: normalized,
		},
		SearchTerms: extractTerms(corrected),
	}
	if price, ok := extractPrice(corrected); ok {
		result.TargetPrice = &price
	}

	vector, err := e.embedder.Embed(ctx, normalized)
	if err != nil {
		e.logger.WithError(err).Error("Query embedding failed in debug search")
		return result, nil
	}

	neighbors, err := e.index.Search(vector, 5)
	if err != nil {
		return result, nil
	}

	for _, neighbor := range neighbors {
		record := e.catalog.Record(neighbor.ID)
		result.SampleEntries = append(result.SampleEntries, DebugCandidate{
			Service:         record.Service,
			Description:     record.Description,
			GarmentType:     record.GarmentType,
			SimilarityScore: neighbor.Score,
		})
	}

	return result, nil
}

// StrategyStage describes one stage of the search pipeline
type StrategyStage struct {
	Stage       int    `json:"stage"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Strategy describes the search design for the self-documentation endpoint
type Strategy struct {
	SearchStrategy string          `json:"search_strategy"`
	Description    string          `json:"description"`
	Stages         []StrategyStage `json:"stages"`
}

func (e *Engine) Strategy() Strategy {
	return Strategy{
		SearchStrategy: "Two-Stage Hybrid Search",
		Description:    "Semantic candidate retrieval blended with keyword-priority re-ranking",
		Stages: []StrategyStage{
			{
				Stage:       1,
				Name:        "Semantic Candidate Retrieval",
				Description: "Embed the normalized query and fetch the 100 nearest catalog vectors",
			},
			{
				Stage:       2,
				Name:        "Keyword Classification",
				Description: "Bucket each candidate by where a search term matches: service name, description, garment or repairer fields, or nowhere",
			},
			{
				Stage:       3,
				Name:        "Prioritized Assembly",
				Description: "Concatenate buckets in priority order, each sorted by similarity, capped at 10 results, then apply the optional price filter",
			},
		},
	}
}
