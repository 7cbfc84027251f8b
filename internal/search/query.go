package search

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// QueueParams configures a moderation queue search.
type QueueParams struct {
	Query string // free text over name, address and contributor

	// Filters
	Statuses     []string
	Countries    []string
	Sources      []string
	RequestType  string
	CreatedAfter time.Time
	CreatedUntil time.Time

	// Pagination
	Limit  int
	Offset int

	// Sorting. SortColumn uses the queue column names; empty means relevance.
	SortColumn string
	Desc       bool

	IncludeFacets bool
}

// DefaultQueueParams returns the queue's default page: newest first, 25 per page.
func DefaultQueueParams() QueueParams {
	return QueueParams{
		Limit:      25,
		SortColumn: "created_at",
		Desc:       true,
	}
}

// QueueResult is one page of matching moderation events.
type QueueResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"took_ms"`
	Hits   []Hit       `json:"hits"`
	Facets QueueFacets `json:"facets,omitzero"`
}

// Hit is a matching moderation event with its stored display fields.
type Hit struct {
	ModerationID string    `json:"moderation_id"`
	Score        float64   `json:"score"`
	OSID         string    `json:"os_id,omitempty"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	Country      string    `json:"country"`
	Contributor  string    `json:"contributor_name"`
	Source       string    `json:"source"`
	Status       string    `json:"moderation_status"`
	RequestType  string    `json:"request_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// QueueFacets holds counts per status and country across all matches.
type QueueFacets struct {
	Statuses  []FacetCount `json:"statuses,omitempty"`
	Countries []FacetCount `json:"countries,omitempty"`
}

// FacetCount is a facet value and the number of matches carrying it.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// sortFields maps queue columns to index fields.
var sortFields = map[string]string{
	"created_at":               "created_at",
	"updated_at":               "updated_at",
	"name":                     "name_sort",
	"country":                  "country",
	"contributor":              "contributor_sort",
	"source":                   "source",
	"moderation_status":        "status",
	"moderation_decision_date": "decision_date",
}

var storedFields = []string{
	"id", "os_id", "name", "address", "country", "contributor",
	"source", "status", "request_type", "created_at",
}

// Search executes a queue search.
func (s *Index) Search(ctx context.Context, params QueueParams) (*QueueResult, error) {
	if params.Limit <= 0 {
		params.Limit = DefaultQueueParams().Limit
	}
	if params.SortColumn != "" {
		if _, ok := sortFields[params.SortColumn]; !ok {
			return nil, fmt.Errorf("unknown sort column %q", params.SortColumn)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildQueueQuery(params), params.Limit, params.Offset, false)
	addSorting(req, params)
	if params.IncludeFacets {
		req.AddFacet("status", bleve.NewFacetRequest("status", 5))
		req.AddFacet("country", bleve.NewFacetRequest("country", 20))
	}
	req.Fields = storedFields

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &QueueResult{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		hit := Hit{ModerationID: h.ID, Score: h.Score}
		hit.OSID, _ = h.Fields["os_id"].(string)
		hit.Name, _ = h.Fields["name"].(string)
		hit.Address, _ = h.Fields["address"].(string)
		hit.Country, _ = h.Fields["country"].(string)
		hit.Contributor, _ = h.Fields["contributor"].(string)
		hit.Source, _ = h.Fields["source"].(string)
		hit.Status, _ = h.Fields["status"].(string)
		hit.RequestType, _ = h.Fields["request_type"].(string)
		if ms, ok := h.Fields["created_at"].(float64); ok {
			hit.CreatedAt = time.UnixMilli(int64(ms)).UTC()
		}
		result.Hits = append(result.Hits, hit)
	}

	if params.IncludeFacets {
		result.Facets = extractFacets(res)
	}

	return result, nil
}

// buildQueueQuery combines the text query and filters with AND.
func buildQueueQuery(params QueueParams) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		nameMatch := bleve.NewMatchQuery(q)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)

		addressMatch := bleve.NewMatchQuery(q)
		addressMatch.SetField("address")

		contributorMatch := bleve.NewMatchQuery(q)
		contributorMatch.SetField("contributor")
		contributorMatch.SetBoost(1.5)

		// Typo tolerance on the name only.
		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("name")
		fuzzy.SetBoost(0.8)

		osID := bleve.NewTermQuery(strings.ToUpper(q))
		osID.SetField("os_id")
		osID.SetBoost(5.0)

		text := []query.Query{nameMatch, addressMatch, contributorMatch, fuzzy, osID}
		if len(q) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField("name")
			prefix.SetBoost(0.5)
			text = append(text, prefix)
		}
		queries = append(queries, bleve.NewDisjunctionQuery(text...))
	}

	queries = appendTerms(queries, "status", params.Statuses, strings.ToUpper)
	queries = appendTerms(queries, "country", params.Countries, strings.ToUpper)
	queries = appendTerms(queries, "source", params.Sources, strings.ToUpper)
	if params.RequestType != "" {
		queries = appendTerms(queries, "request_type", []string{params.RequestType}, strings.ToUpper)
	}

	if !params.CreatedAfter.IsZero() || !params.CreatedUntil.IsZero() {
		lo := float64(params.CreatedAfter.UnixMilli())
		hi := math.MaxFloat64
		if params.CreatedAfter.IsZero() {
			lo = 0
		}
		if !params.CreatedUntil.IsZero() {
			hi = float64(params.CreatedUntil.UnixMilli())
		}
		inclusive := true
		rq := bleve.NewNumericRangeInclusiveQuery(&lo, &hi, &inclusive, &inclusive)
		rq.SetField("created_at")
		queries = append(queries, rq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

// appendTerms adds an OR of exact terms on field, if values is non-empty.
func appendTerms(queries []query.Query, field string, values []string, norm func(string) string) []query.Query {
	if len(values) == 0 {
		return queries
	}
	terms := make([]query.Query, len(values))
	for i, v := range values {
		tq := bleve.NewTermQuery(norm(v))
		tq.SetField(field)
		terms[i] = tq
	}
	return append(queries, bleve.NewDisjunctionQuery(terms...))
}

// addSorting orders by the requested column, breaking ties by moderation id.
func addSorting(req *bleve.SearchRequest, params QueueParams) {
	field, ok := sortFields[params.SortColumn]
	if !ok {
		req.SortBy([]string{"-_score", "_id"})
		return
	}
	if params.Desc {
		field = "-" + field
	}
	req.SortBy([]string{field, "_id"})
}

func extractFacets(res *bleve.SearchResult) QueueFacets {
	var facets QueueFacets
	if f, ok := res.Facets["status"]; ok && f.Terms != nil {
		for _, term := range f.Terms.Terms() {
			facets.Statuses = append(facets.Statuses, FacetCount{Value: term.Term, Count: term.Count})
		}
	}
	if f, ok := res.Facets["country"]; ok && f.Terms != nil {
		for _, term := range f.Terms.Terms() {
			facets.Countries = append(facets.Countries, FacetCount{Value: term.Term, Count: term.Count})
		}
	}
	return facets
}
