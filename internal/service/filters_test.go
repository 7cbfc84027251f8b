package service

import (
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensupplyhub/contribute/internal/domain"
	domainerrors "github.com/opensupplyhub/contribute/internal/errors"
)

func TestFilterService_CachesWithinTTL(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	wf := env.contributor(t)

	var calls atomic.Int32
	env.mux.HandleFunc("GET /api/countries/", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(t, w, http.StatusOK, [][2]string{{"BD", "Bangladesh"}, {"PT", "Portugal"}})
	})

	view, err := env.filters.Options(ctx, wf, domain.FilterCountries)
	require.NoError(t, err)
	assert.False(t, view.Cached)
	assert.Equal(t, []domain.FilterOption{{Value: "BD", Label: "Bangladesh"}, {Value: "PT", Label: "Portugal"}}, view.Options)

	view, err = env.filters.Options(ctx, wf, domain.FilterCountries)
	require.NoError(t, err)
	assert.True(t, view.Cached)
	assert.Len(t, view.Options, 2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFilterService_FailureKeepsPreviousList(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	wf := env.contributor(t)

	env.filters.ttl = 0
	var fail atomic.Bool
	env.mux.HandleFunc("GET /api/sectors/", func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(t, w, http.StatusOK, []string{"Apparel", "Footwear"})
	})

	_, err := env.filters.Options(ctx, wf, domain.FilterSectors)
	require.NoError(t, err)

	fail.Store(true)
	view, err := env.filters.Options(ctx, wf, domain.FilterSectors)
	require.NoError(t, err)
	require.NotNil(t, view.Error)
	assert.Equal(t, domainerrors.CodeUnavailable, view.Error.Code)
	assert.Len(t, view.Options, 2)
}

func TestFilterService_UnknownKind(t *testing.T) {
	env := newTestEnv(t)
	wf := env.contributor(t)

	_, err := env.filters.Options(t.Context(), wf, domain.FilterKind("colours"))
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}
