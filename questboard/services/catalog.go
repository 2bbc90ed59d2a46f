package services

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/luminalearn/questboard/questboard/database"
	"github.com/luminalearn/questboard/questboard/database/models"
)

// templateSource implements fuzzy.Source over the template pool.
type templateSource []models.QuestTemplate

func (s templateSource) Len() int { return len(s) }

func (s templateSource) String(i int) string {
	return strings.ToLower(s[i].Title + " " + s[i].Description + " " + s[i].Category)
}

// CatalogService exposes the static quest template pool for browsing and
// fuzzy search. Purely in-memory; the pool is fixed at construction.
type CatalogService struct {
	pool templateSource
}

func NewCatalogService(pool []models.QuestTemplate) *CatalogService {
	if len(pool) == 0 {
		pool = database.QuestTemplates
	}
	return &CatalogService{pool: templateSource(pool)}
}

// Search fuzzy-matches the query against template titles, descriptions and
// categories, best matches first. An empty query is rejected; use List.
func (s *CatalogService) Search(query string, limit int) ([]models.QuestTemplate, error) {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrValidation)
	}
	if limit <= 0 {
		limit = 10
	}

	matches := fuzzy.FindFrom(query, s.pool)
	out := make([]models.QuestTemplate, 0, limit)
	for _, m := range matches {
		out = append(out, s.pool[m.Index])
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// List returns the pool, optionally filtered by category.
func (s *CatalogService) List(category string) []models.QuestTemplate {
	if category == "" {
		out := make([]models.QuestTemplate, len(s.pool))
		copy(out, s.pool)
		return out
	}
	var out []models.QuestTemplate
	for _, t := range s.pool {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}
