// Package retrieval finds supportive wellness content for a user message,
// degrading from semantic search to keyword search to an empty result
// rather than surfacing an error to the caller.
package retrieval

import (
	"context"
	"log"

	"github.com/serenlab/serenia/internal/store"
)

const (
	// DefaultThreshold is the minimum cosine similarity a semantic match
	// must reach to be returned.
	DefaultThreshold = 0.7

	// DefaultNominalRelevance is the relevance assigned to keyword matches,
	// which carry no similarity score of their own.
	DefaultNominalRelevance = 0.8

	defaultLimit = 5
)

// ContentStore is the persistence surface the service searches over.
type ContentStore interface {
	SaveContent(c *store.WellnessContent, embedding []float32) error
	SimilaritySearch(vector []float32, threshold float64, limit int, category string) ([]store.ScoredContent, error)
	KeywordSearch(query string, limit int, category string) ([]store.WellnessContent, error)
}

// Result is one retrieved document with its relevance to the query.
type Result struct {
	Content   store.WellnessContent
	Relevance float64
	// Source is "semantic" or "keyword" depending on which path matched.
	Source string
}

type Service struct {
	store            ContentStore
	embedder         Embedder
	threshold        float64
	nominalRelevance float64
}

// NewService builds a retrieval service. A nil embedder disables the
// semantic path; search then goes straight to keyword matching.
func NewService(contentStore ContentStore, embedder Embedder) *Service {
	return &Service{
		store:            contentStore,
		embedder:         embedder,
		threshold:        DefaultThreshold,
		nominalRelevance: DefaultNominalRelevance,
	}
}

// SetThreshold overrides the semantic similarity cutoff.
func (s *Service) SetThreshold(threshold float64) {
	if threshold > 0 {
		s.threshold = threshold
	}
}

// SetNominalRelevance overrides the relevance assigned to keyword matches.
func (s *Service) SetNominalRelevance(relevance float64) {
	if relevance > 0 {
		s.nominalRelevance = relevance
	}
}

// Search returns the most relevant documents for the query. Semantic search
// runs first; if it fails or matches nothing, keyword search takes over; if
// that fails too, the result is empty. Search never returns an error.
func (s *Service) Search(ctx context.Context, query string, limit int, category string) []Result {
	if limit <= 0 {
		limit = defaultLimit
	}

	if results := s.semanticSearch(ctx, query, limit, category); len(results) > 0 {
		return results
	}
	return s.keywordSearch(query, limit, category)
}

func (s *Service) semanticSearch(ctx context.Context, query string, limit int, category string) []Result {
	if s.embedder == nil {
		return nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("[retrieval] embed query failed, falling back to keyword search: %v", err)
		return nil
	}

	matches, err := s.store.SimilaritySearch(vector, s.threshold, limit, category)
	if err != nil {
		log.Printf("[retrieval] similarity search failed, falling back to keyword search: %v", err)
		return nil
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{
			Content:   m.WellnessContent,
			Relevance: m.Similarity,
			Source:    "semantic",
		})
	}
	return results
}

func (s *Service) keywordSearch(query string, limit int, category string) []Result {
	matches, err := s.store.KeywordSearch(query, limit, category)
	if err != nil {
		log.Printf("[retrieval] keyword search failed, returning empty: %v", err)
		return []Result{}
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{
			Content:   m,
			Relevance: s.nominalRelevance,
			Source:    "keyword",
		})
	}
	return results
}

// AddContent stores a document, embedding it when an embedder is available.
// A failed embedding is logged and the document is stored without one so it
// stays reachable through the keyword path.
func (s *Service) AddContent(ctx context.Context, c *store.WellnessContent) error {
	var embedding []float32
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, c.Title+"\n"+c.Body)
		if err != nil {
			log.Printf("[retrieval] embed content %q failed, storing without embedding: %v", c.Title, err)
		} else {
			embedding = vec
		}
	}
	return s.store.SaveContent(c, embedding)
}
