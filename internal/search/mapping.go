package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for moderation documents.
//
// Names and addresses are full text; codes and enums are keywords for exact filters;
// timestamps are numeric for range filters and sorting.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields (full-text searchable) ---

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = en.AnalyzerName
	nameFieldMapping.Store = true
	nameFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("name", nameFieldMapping)

	// Addresses are not stemmed: "Streets" and "Street" are different things here.
	addressFieldMapping := bleve.NewTextFieldMapping()
	addressFieldMapping.Analyzer = simple.Name
	addressFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("address", addressFieldMapping)

	contributorFieldMapping := bleve.NewTextFieldMapping()
	contributorFieldMapping.Analyzer = simple.Name
	contributorFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("contributor", contributorFieldMapping)

	// --- Keyword fields (exact match, facetable) ---

	for _, field := range []string{"id", "os_id", "country", "source", "status", "request_type", "name_sort", "contributor_sort"} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = true
		docMapping.AddFieldMappingsAt(field, fm)
	}

	// --- Numeric fields (range queries, sorting) ---

	for _, field := range []string{"created_at", "updated_at", "decision_date"} {
		fm := bleve.NewNumericFieldMapping()
		fm.Store = true
		docMapping.AddFieldMappingsAt(field, fm)
	}

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
