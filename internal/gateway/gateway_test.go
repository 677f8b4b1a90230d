package gateway

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendCall records one request the fake backend received.
type backendCall struct {
	method string
	path   string
}

// newTestBackend returns an httptest server that answers everything with
// an empty JSON object and records each call.
func newTestBackend(t *testing.T) (*httptest.Server, func() []backendCall) {
	t.Helper()

	var mu sync.Mutex
	var calls []backendCall
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, backendCall{method: r.Method, path: r.URL.Path})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))

	return ts, func() []backendCall {
		mu.Lock()
		defer mu.Unlock()
		out := make([]backendCall, len(calls))
		copy(out, calls)
		return out
	}
}

func newTestGateway(baseURL string) *Gateway {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return New(Config{
		Executor: ExecutorConfig{
			BaseURL: baseURL,
			Timeout: 2 * time.Second,
			Backoff: 5 * time.Millisecond,
		},
		Limiter: LimiterConfig{
			MaxRequests:   100,
			Window:        time.Minute,
			MaxConcurrent: 4,
			InterDelay:    time.Millisecond,
		},
		CacheTTL: time.Minute,
	}, log)
}

func TestResource_RepeatReadsServedFromCache(t *testing.T) {
	ts, calls := newTestBackend(t)
	defer ts.Close()

	gw := newTestGateway(ts.URL)
	defer gw.Close()

	res := gw.Resource("sales")
	_, err := res.GetAll(Options{})
	require.NoError(t, err)
	_, err = res.GetAll(Options{})
	require.NoError(t, err)
	_, err = res.GetByID("7", Options{})
	require.NoError(t, err)
	_, err = res.GetByID("7", Options{})
	require.NoError(t, err)

	got := calls()
	require.Len(t, got, 2, "repeat reads must not reach the backend")
	assert.Equal(t, "/sales", got[0].path)
	assert.Equal(t, "/sales/7", got[1].path)
}

func TestResource_QueryIsPartOfCacheKey(t *testing.T) {
	ts, calls := newTestBackend(t)
	defer ts.Close()

	gw := newTestGateway(ts.URL)
	defer gw.Close()

	res := gw.Resource("week")
	_, err := res.GetAll(Options{Query: url.Values{"sales_id": {"7"}}})
	require.NoError(t, err)
	_, err = res.GetAll(Options{Query: url.Values{"sales_id": {"8"}}})
	require.NoError(t, err)
	_, err = res.GetAll(Options{Query: url.Values{"sales_id": {"7"}}})
	require.NoError(t, err)

	assert.Len(t, calls(), 2, "different filters are different cache entries")
}

func TestResource_ForceRefreshSkipsCache(t *testing.T) {
	ts, calls := newTestBackend(t)
	defer ts.Close()

	gw := newTestGateway(ts.URL)
	defer gw.Close()

	res := gw.Resource("sales")
	_, err := res.GetAll(Options{})
	require.NoError(t, err)
	_, err = res.GetAll(Options{ForceRefresh: true})
	require.NoError(t, err)

	assert.Len(t, calls(), 2)
}

func TestResource_WritesBypassCacheAndInvalidate(t *testing.T) {
	ts, calls := newTestBackend(t)
	defer ts.Close()

	gw := newTestGateway(ts.URL)
	defer gw.Close()

	res := gw.Resource("week")
	_, err := res.GetAll(Options{})
	require.NoError(t, err)

	_, err = res.Create(map[string]string{"sales_id": "7"})
	require.NoError(t, err)

	// The POST went straight through, and the cached GetAll was dropped.
	_, err = res.GetAll(Options{})
	require.NoError(t, err)

	got := calls()
	require.Len(t, got, 3)
	assert.Equal(t, http.MethodGet, got[0].method)
	assert.Equal(t, http.MethodPost, got[1].method)
	assert.Equal(t, http.MethodGet, got[2].method)
}

func TestResource_UpdateAndDeleteInvalidateOnlyOwnPrefix(t *testing.T) {
	ts, calls := newTestBackend(t)
	defer ts.Close()

	gw := newTestGateway(ts.URL)
	defer gw.Close()

	weeks := gw.Resource("week")
	sales := gw.Resource("sales")
	_, err := weeks.GetAll(Options{})
	require.NoError(t, err)
	_, err = sales.GetAll(Options{})
	require.NoError(t, err)

	_, err = weeks.Update("3", map[string]int{"week_number": 4})
	require.NoError(t, err)
	require.NoError(t, weeks.Delete("4"))

	// week cache entries were dropped, sales entries were not.
	_, err = weeks.GetAll(Options{})
	require.NoError(t, err)
	_, err = sales.GetAll(Options{})
	require.NoError(t, err)

	got := calls()
	require.Len(t, got, 5)
	assert.Equal(t, http.MethodPatch, got[2].method)
	assert.Equal(t, "/week/3", got[2].path)
	assert.Equal(t, http.MethodDelete, got[3].method)
	assert.Equal(t, "/week/4", got[3].path)
	assert.Equal(t, "/week", got[4].path)
}

func TestGateway_InvalidationRuleDropsDependentPrefixes(t *testing.T) {
	ts, _ := newTestBackend(t)
	defer ts.Close()

	gw := newTestGateway(ts.URL)
	defer gw.Close()

	gw.AddInvalidationRule("week", "derived:probation:")
	gw.Cache().Set("derived:probation:7", "summary")
	gw.Cache().Set("rank:1", "bronze")

	_, err := gw.Resource("week").Create(map[string]string{"sales_id": "7"})
	require.NoError(t, err)

	_, ok := gw.Cache().Get("derived:probation:7")
	assert.False(t, ok, "dependent derived entries must be dropped on mutation")
	_, ok = gw.Cache().Get("rank:1")
	assert.True(t, ok)
}

func TestGateway_SimilarResourcePrefixesDoNotCollide(t *testing.T) {
	ts, calls := newTestBackend(t)
	defer ts.Close()

	gw := newTestGateway(ts.URL)
	defer gw.Close()

	kpi := gw.Resource("kpi")
	actions := gw.Resource("kpi_action_progress")
	_, err := kpi.GetAll(Options{})
	require.NoError(t, err)
	_, err = actions.GetAll(Options{})
	require.NoError(t, err)

	// Mutating kpi must not evict kpi_action_progress reads.
	_, err = kpi.Create(map[string]string{"name": "calls"})
	require.NoError(t, err)

	_, err = actions.GetAll(Options{})
	require.NoError(t, err)

	assert.Len(t, calls(), 3, "kpi invalidation leaked into kpi_action_progress")
}

func TestGateway_ErrorsSurfaceTyped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	gw := newTestGateway(ts.URL)
	defer gw.Close()

	_, err := gw.Resource("sales").GetAll(Options{})
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindForbidden, apiErr.Kind)
}

func TestGateway_FailedReadIsNotCached(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		n := hits
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	gw := newTestGateway(ts.URL)
	defer gw.Close()

	res := gw.Resource("sales")
	_, err := res.GetAll(Options{})
	require.Error(t, err)

	_, err = res.GetAll(Options{})
	require.NoError(t, err, "a failure must not poison the cache")
}
