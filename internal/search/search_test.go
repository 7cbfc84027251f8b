package search

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensupplyhub/contribute/internal/domain"
)

// setupTestIndex creates a moderation index in a temp dir.
func setupTestIndex(t *testing.T) *Index {
	t.Helper()

	index, err := Open(Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func event(name, address, country, contributor string, status domain.ModerationStatus, age time.Duration) domain.ModerationEvent {
	ev := domain.ModerationEvent{
		ModerationID:    uuid.New(),
		ContributorName: contributor,
		RequestType:     domain.RequestCreate,
		Source:          domain.SourceSLC,
		Status:          status,
		CleanedData:     domain.ContributionData{Name: name, Address: address, CountryCode: country},
		CreatedAt:       base.Add(-age),
		UpdatedAt:       base.Add(-age),
	}
	if status.Decided() {
		at := base
		ev.DecisionDate = &at
	}
	return ev
}

func seed(t *testing.T, index *Index) []domain.ModerationEvent {
	t.Helper()
	events := []domain.ModerationEvent{
		event("Azalea Garments", "12 Mill Road, Dhaka", "BD", "Brand One", domain.ModerationPending, 3*time.Hour),
		event("Blue Thread Knitting", "7 Harbour Street, Porto", "PT", "Zeta Sourcing", domain.ModerationApproved, 2*time.Hour),
		event("Café Textiles", "1 Rue de Lyon, Tunis", "TN", "Brand One", domain.ModerationRejected, time.Hour),
	}
	require.NoError(t, index.IndexEvents(events))
	return events
}

func TestOpen_Empty(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestOpen_ReopensExisting(t *testing.T) {
	dir := t.TempDir()
	index, err := Open(Options{DataPath: dir})
	require.NoError(t, err)
	ev := event("Azalea Garments", "12 Mill Road", "BD", "Brand One", domain.ModerationPending, 0)
	require.NoError(t, index.IndexEvent(&ev))
	require.NoError(t, index.Close())

	index, err = Open(Options{DataPath: dir})
	require.NoError(t, err)
	defer index.Close()

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestIndexEvent_Replaces(t *testing.T) {
	index := setupTestIndex(t)
	ev := event("Azalea Garments", "12 Mill Road", "BD", "Brand One", domain.ModerationPending, 0)
	require.NoError(t, index.IndexEvent(&ev))

	require.NoError(t, ev.Decide(domain.ModerationApproved, base))
	require.NoError(t, index.IndexEvent(&ev))

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	res, err := index.Search(context.Background(), QueueParams{Statuses: []string{"APPROVED"}})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, ev.ModerationID.String(), res.Hits[0].ModerationID)
}

func TestDeleteEvent(t *testing.T) {
	index := setupTestIndex(t)
	events := seed(t, index)

	require.NoError(t, index.DeleteEvent(events[0].ModerationID.String()))

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestSearch_Text(t *testing.T) {
	index := setupTestIndex(t)
	events := seed(t, index)
	ctx := context.Background()

	res, err := index.Search(ctx, QueueParams{Query: "garments"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, events[0].ModerationID.String(), res.Hits[0].ModerationID)
	assert.Equal(t, "Azalea Garments", res.Hits[0].Name)
	assert.Equal(t, "BD", res.Hits[0].Country)
	assert.Equal(t, events[0].CreatedAt, res.Hits[0].CreatedAt)

	res, err = index.Search(ctx, QueueParams{Query: "harbour"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "Blue Thread Knitting", res.Hits[0].Name)

	res, err = index.Search(ctx, QueueParams{Query: "zeta"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1, "contributor names are searchable")
}

func TestSearch_OSID(t *testing.T) {
	index := setupTestIndex(t)
	ev := event("Azalea Garments", "12 Mill Road", "BD", "Brand One", domain.ModerationPending, 0)
	ev.OSID = "BD2021250D1DTN7"
	require.NoError(t, index.IndexEvent(&ev))

	res, err := index.Search(context.Background(), QueueParams{Query: "bd2021250d1dtn7"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "BD2021250D1DTN7", res.Hits[0].OSID)
}

func TestSearch_Filters(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)
	ctx := context.Background()

	res, err := index.Search(ctx, QueueParams{Statuses: []string{"pending", "rejected"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Total)

	res, err = index.Search(ctx, QueueParams{Countries: []string{"pt"}})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "PT", res.Hits[0].Country)

	res, err = index.Search(ctx, QueueParams{CreatedAfter: base.Add(-150 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Total)

	res, err = index.Search(ctx, QueueParams{Query: "brand", Statuses: []string{"PENDING"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Total)
}

func TestSearch_Sorting(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)
	ctx := context.Background()

	names := func(res *QueueResult) []string {
		out := make([]string, len(res.Hits))
		for i, h := range res.Hits {
			out[i] = h.Name
		}
		return out
	}

	res, err := index.Search(ctx, DefaultQueueParams())
	require.NoError(t, err)
	assert.Equal(t, []string{"Café Textiles", "Blue Thread Knitting", "Azalea Garments"}, names(res))

	res, err = index.Search(ctx, QueueParams{SortColumn: "name"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Azalea Garments", "Blue Thread Knitting", "Café Textiles"}, names(res))

	res, err = index.Search(ctx, QueueParams{SortColumn: "country", Desc: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Café Textiles", "Blue Thread Knitting", "Azalea Garments"}, names(res))

	_, err = index.Search(ctx, QueueParams{SortColumn: "nope"})
	assert.Error(t, err)
}

func TestSearch_Pagination(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), QueueParams{SortColumn: "name", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Total)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "Café Textiles", res.Hits[0].Name)
}

func TestSearch_Facets(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), QueueParams{IncludeFacets: true})
	require.NoError(t, err)
	assert.Len(t, res.Facets.Statuses, 3)
	assert.Len(t, res.Facets.Countries, 3)
}

func TestRebuild(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	require.NoError(t, index.Rebuild())

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestFromEvent(t *testing.T) {
	ev := event("  Café Textiles", "1 Rue", "tn ", "Ünal Tekstil", domain.ModerationRejected, 0)
	doc := FromEvent(&ev)

	assert.Equal(t, "TN", doc.Country)
	assert.Equal(t, "cafe textiles", doc.NameSort)
	assert.Equal(t, "unal tekstil", doc.ContributorSort)
	assert.Equal(t, base.UnixMilli(), doc.DecisionDate)
	assert.NotContains(t, doc.ToMap(), "os_id")
}
