package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminalearn/questboard/questboard/database/models"
)

func TestCatalog_Search(t *testing.T) {
	svc := NewCatalogService(nil)

	results, err := svc.Search("flashcard", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "edu_flashcards", results[0].TemplateID)
}

func TestCatalog_SearchLimit(t *testing.T) {
	svc := NewCatalogService(nil)

	results, err := svc.Search("study", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)
}

func TestCatalog_SearchValidation(t *testing.T) {
	svc := NewCatalogService(nil)
	_, err := svc.Search("   ", 5)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCatalog_ListByCategory(t *testing.T) {
	svc := NewCatalogService(nil)

	all := svc.List("")
	assert.NotEmpty(t, all)

	health := svc.List(models.CategoryHealth)
	require.NotEmpty(t, health)
	for _, tpl := range health {
		assert.Equal(t, models.CategoryHealth, tpl.Category)
	}
	assert.Less(t, len(health), len(all))
}
