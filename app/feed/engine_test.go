package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/grocery-feed/app/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchReply struct {
	page catalog.Page
	err  error
}

type fetchCall struct {
	req   catalog.PageRequest
	reply chan fetchReply
}

func (c fetchCall) respond(products ...catalog.Product) {
	c.reply <- fetchReply{page: catalog.Page{Products: products, Received: len(products)}}
}

// respondRaw answers with a page whose raw length differs from the products
// that survived normalization.
func (c fetchCall) respondRaw(received int, products ...catalog.Product) {
	c.reply <- fetchReply{page: catalog.Page{Products: products, Received: received}}
}

func (c fetchCall) fail(err error) {
	c.reply <- fetchReply{err: err}
}

// scriptedSource hands every fetch to the test, which decides when and how it
// resolves.
type scriptedSource struct {
	calls chan fetchCall
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{calls: make(chan fetchCall, 16)}
}

func (s *scriptedSource) FetchPage(ctx context.Context, req catalog.PageRequest) (catalog.Page, error) {
	call := fetchCall{req: req, reply: make(chan fetchReply, 1)}
	s.calls <- call

	select {
	case reply := <-call.reply:
		return reply.page, reply.err
	case <-ctx.Done():
		return catalog.Page{}, ctx.Err()
	}
}

func (s *scriptedSource) next(t *testing.T) fetchCall {
	t.Helper()
	select {
	case call := <-s.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("expected a page fetch to be dispatched")
		return fetchCall{}
	}
}

func (s *scriptedSource) assertIdle(t *testing.T) {
	t.Helper()
	select {
	case call := <-s.calls:
		t.Fatalf("unexpected page fetch: %+v", call.req)
	case <-time.After(20 * time.Millisecond):
	}
}

// pagedSource serves fixed pages keyed by page number.
type pagedSource struct {
	mu       sync.Mutex
	pages    map[int][]catalog.Product
	requests []catalog.PageRequest
}

func (s *pagedSource) FetchPage(ctx context.Context, req catalog.PageRequest) (catalog.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	products := s.pages[req.Page]
	return catalog.Page{Products: products, Received: len(products)}, nil
}

func (s *pagedSource) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func product(id string, price float64) catalog.Product {
	return catalog.Product{ID: id, Name: "Product " + id, Category: "fruits", Price: price}
}

func testCatalog(pageSize int) *catalog.Config {
	return &catalog.Config{
		Source:   catalog.SourceConfig{URL: "http://localhost:5000/groceries"},
		Settings: catalog.Settings{PageSize: pageSize, DefaultSort: catalog.SortDefault},
		Categories: []catalog.Category{
			{Key: "fruits", Name: "Fruits"},
			{Key: "dairy", Name: "Dairy"},
		},
	}
}

func wait(t *testing.T, dispatch *Dispatch) PageResult {
	t.Helper()
	require.NotNil(t, dispatch)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := dispatch.Wait(ctx)
	require.NoError(t, err)
	return result
}

func ids(products []catalog.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func TestEngine_MergesPagesWithoutDuplicates(t *testing.T) {
	source := &pagedSource{pages: map[int][]catalog.Product{
		1: {product("a", 3), product("b", 1)},
		2: {product("b", 1), product("c", 2)},
	}}
	engine := NewEngine(source, testCatalog(2))
	defer engine.Close()

	dispatch, err := engine.Start()
	require.NoError(t, err)
	first := wait(t, dispatch)
	assert.Equal(t, OutcomeMerged, first.Outcome)
	assert.Equal(t, 2, first.Added)

	dispatch, err = engine.RequestNextPage(engine.State().Generation)
	require.NoError(t, err)
	second := wait(t, dispatch)
	assert.Equal(t, 1, second.Added)
	assert.Equal(t, 1, second.Duplicates)

	state := engine.State()
	assert.Equal(t, 3, state.Cursor)
	assert.False(t, state.Exhausted, "a full page leaves the feed open")
	assert.False(t, state.InFlight)
	assert.Equal(t, 3, state.Products)
	assert.Equal(t, []string{"a", "b", "c"}, ids(engine.VisibleProducts().Products))
}

func TestEngine_ShortPageExhaustsFeed(t *testing.T) {
	source := &pagedSource{pages: map[int][]catalog.Product{
		1: {product("a", 1), product("b", 2)},
		2: {product("c", 3)},
	}}
	engine := NewEngine(source, testCatalog(2))
	defer engine.Close()

	dispatch, err := engine.Start()
	require.NoError(t, err)
	wait(t, dispatch)

	result := wait(t, engine.OnViewportNearEnd())
	assert.True(t, result.Exhausted)
	assert.True(t, engine.State().Exhausted)
	assert.Equal(t, 2, source.requestCount())

	assert.Nil(t, engine.OnViewportNearEnd())
	_, err = engine.RequestNextPage(engine.State().Generation)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 2, source.requestCount(), "no fetch after exhaustion")

	dispatch, err = engine.SetFilters(Filters{Category: "fruits"})
	require.NoError(t, err)
	wait(t, dispatch)
	assert.False(t, engine.State().Exhausted, "a filter change reopens the feed")
	assert.Equal(t, 3, source.requestCount())
}

func TestEngine_SkippedRecordsDoNotExhaustFeed(t *testing.T) {
	source := newScriptedSource()
	engine := NewEngine(source, testCatalog(2))
	defer engine.Close()

	dispatch, err := engine.Start()
	require.NoError(t, err)

	// Two records arrived; one was dropped by the source adapter.
	source.next(t).respondRaw(2, product("a", 1))
	result := wait(t, dispatch)

	assert.Equal(t, OutcomeMerged, result.Outcome)
	assert.Equal(t, 2, result.Received)
	assert.Equal(t, 1, result.Added)
	assert.False(t, result.Exhausted)

	state := engine.State()
	assert.False(t, state.Exhausted, "a full raw page leaves the feed open")
	assert.Equal(t, 2, state.Cursor)

	next := engine.OnViewportNearEnd()
	require.NotNil(t, next)
	call := source.next(t)
	assert.Equal(t, 2, call.req.Page)

	// A short raw page still exhausts, even when nothing in it survived.
	call.respondRaw(1)
	result = wait(t, next)
	assert.Equal(t, 0, result.Added)
	assert.True(t, result.Exhausted)
	assert.True(t, engine.State().Exhausted)
	assert.Equal(t, []string{"a"}, ids(engine.VisibleProducts().Products))
}

func TestEngine_ViewReadsProductsAndStateTogether(t *testing.T) {
	source := &pagedSource{pages: map[int][]catalog.Product{
		1: {product("a", 2), {ID: "f", Price: 1, IsFeatured: true}},
	}}
	engine := NewEngine(source, testCatalog(2))
	defer engine.Close()

	dispatch, err := engine.Start()
	require.NoError(t, err)
	wait(t, dispatch)

	visible, state := engine.View()
	assert.Equal(t, []string{"a"}, ids(visible.Products))
	assert.Equal(t, []string{"f"}, ids(visible.Featured))
	assert.Equal(t, uint64(1), state.Generation)
	assert.Equal(t, len(visible.Products)+len(visible.Featured), state.Products)
}

func TestEngine_RequestsCarryFilters(t *testing.T) {
	source := newScriptedSource()
	engine := NewEngine(source, testCatalog(4))
	defer engine.Close()

	dispatch, err := engine.SetFilters(Filters{Search: "  apple ", Category: "Fruits", Sort: "price-high-low"})
	require.NoError(t, err)

	call := source.next(t)
	assert.Equal(t, catalog.PageRequest{Page: 1, Limit: 4, Search: "apple", Category: "fruits"}, call.req)
	call.respond()
	wait(t, dispatch)

	filters := engine.Filters()
	assert.Equal(t, catalog.SortPriceDesc, filters.Sort)
	assert.Equal(t, "fruits", filters.Category)
}

func TestEngine_RejectsSecondFetchWhileInFlight(t *testing.T) {
	source := newScriptedSource()
	engine := NewEngine(source, testCatalog(2))
	defer engine.Close()

	dispatch, err := engine.Start()
	require.NoError(t, err)
	call := source.next(t)

	generation := engine.State().Generation
	_, err = engine.RequestNextPage(generation)
	assert.ErrorIs(t, err, ErrInFlight)
	assert.Nil(t, engine.OnViewportNearEnd())
	assert.True(t, engine.State().InFlight)
	source.assertIdle(t)

	call.respond(product("a", 1), product("b", 2))
	wait(t, dispatch)
	assert.False(t, engine.State().InFlight)

	next := engine.OnViewportNearEnd()
	require.NotNil(t, next)
	assert.Equal(t, 2, source.next(t).req.Page)
}

func TestEngine_RejectsStaleGenerationRequest(t *testing.T) {
	source := &pagedSource{pages: map[int][]catalog.Product{1: {product("a", 1), product("b", 1)}}}
	engine := NewEngine(source, testCatalog(2))
	defer engine.Close()

	dispatch, err := engine.Start()
	require.NoError(t, err)
	wait(t, dispatch)

	stale := engine.State().Generation
	dispatch, err = engine.SetFilters(Filters{Category: "dairy"})
	require.NoError(t, err)
	wait(t, dispatch)

	_, err = engine.RequestNextPage(stale)
	assert.ErrorIs(t, err, ErrStaleGeneration)
}

func TestEngine_FilterChangeDiscardsInFlightPage(t *testing.T) {
	source := newScriptedSource()
	engine := NewEngine(source, testCatalog(2))
	defer engine.Close()

	oldDispatch, err := engine.Start()
	require.NoError(t, err)
	oldCall := source.next(t)
	assert.Equal(t, catalog.AllCategories, oldCall.req.Category)

	newDispatch, err := engine.SetFilters(Filters{Category: "fruits"})
	require.NoError(t, err)

	state := engine.State()
	assert.Equal(t, 0, state.Products)
	assert.Equal(t, 1, state.Cursor)
	assert.Equal(t, uint64(2), state.Generation)

	newCall := source.next(t)
	assert.Equal(t, "fruits", newCall.req.Category)
	assert.Equal(t, 1, newCall.req.Page)

	// The stale page lands first and must leave the new generation untouched.
	oldCall.respond(product("x", 9), product("y", 9))
	stale := wait(t, oldDispatch)
	assert.Equal(t, OutcomeDiscarded, stale.Outcome)

	state = engine.State()
	assert.True(t, state.InFlight, "stale resolution must not clear the current in-flight flag")
	assert.Equal(t, 0, state.Products)
	assert.Equal(t, 1, state.Cursor)

	newCall.respond(product("f1", 1), product("f2", 2))
	fresh := wait(t, newDispatch)
	assert.Equal(t, OutcomeMerged, fresh.Outcome)

	assert.Equal(t, []string{"f1", "f2"}, ids(engine.VisibleProducts().Products))
	assert.Equal(t, 2, engine.State().Cursor)
}

func TestEngine_StalePageAfterNewGenerationMerged(t *testing.T) {
	source := newScriptedSource()
	engine := NewEngine(source, testCatalog(2))
	defer engine.Close()

	oldDispatch, err := engine.Start()
	require.NoError(t, err)
	oldCall := source.next(t)

	newDispatch, err := engine.SetFilters(Filters{Category: "fruits"})
	require.NoError(t, err)
	source.next(t).respond(product("f1", 1))
	wait(t, newDispatch)

	oldCall.respond(product("x", 9), product("y", 9))
	assert.Equal(t, OutcomeDiscarded, wait(t, oldDispatch).Outcome)

	state := engine.State()
	assert.Equal(t, []string{"f1"}, ids(engine.VisibleProducts().Products))
	assert.True(t, state.Exhausted)
	assert.Equal(t, 2, state.Cursor)
}

func TestEngine_FailedFetchLeavesStateUnchanged(t *testing.T) {
	source := newScriptedSource()
	engine := NewEngine(source, testCatalog(2))
	defer engine.Close()

	dispatch, err := engine.Start()
	require.NoError(t, err)
	source.next(t).respond(product("a", 1), product("b", 2))
	wait(t, dispatch)

	dispatch = engine.OnViewportNearEnd()
	require.NotNil(t, dispatch)
	source.next(t).fail(errors.New("connection refused"))
	result := wait(t, dispatch)

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Error(t, result.Err)

	state := engine.State()
	assert.False(t, state.InFlight)
	assert.False(t, state.Exhausted)
	assert.Equal(t, 2, state.Cursor)
	assert.Equal(t, 2, state.Products)
	source.assertIdle(t)

	// No automatic retry; the next signal asks for the same page again.
	require.NotNil(t, engine.OnViewportNearEnd())
	assert.Equal(t, 2, source.next(t).req.Page)
}

func TestEngine_InvalidFiltersKeepState(t *testing.T) {
	source := &pagedSource{pages: map[int][]catalog.Product{}}
	engine := NewEngine(source, testCatalog(2))
	defer engine.Close()

	dispatch, err := engine.Start()
	require.NoError(t, err)
	wait(t, dispatch)
	before := engine.State()

	_, err = engine.SetFilters(Filters{Category: "meat"})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = engine.SetFilters(Filters{Sort: "popularity"})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	assert.Equal(t, before, engine.State())
	assert.Equal(t, 1, source.requestCount())
}

func TestEngine_ProductLookup(t *testing.T) {
	source := &pagedSource{pages: map[int][]catalog.Product{1: {product("a", 1)}}}
	engine := NewEngine(source, testCatalog(2))
	defer engine.Close()

	dispatch, err := engine.Start()
	require.NoError(t, err)
	wait(t, dispatch)

	found, ok := engine.Product("a")
	assert.True(t, ok)
	assert.Equal(t, "a", found.ID)

	_, ok = engine.Product("missing")
	assert.False(t, ok)
}

func TestEngine_CloseCancelsPendingFetch(t *testing.T) {
	source := newScriptedSource()
	engine := NewEngine(source, testCatalog(2))

	dispatch, err := engine.Start()
	require.NoError(t, err)
	source.next(t)

	engine.Close()

	result := wait(t, dispatch)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.ErrorIs(t, result.Err, context.Canceled)

	_, err = engine.SetFilters(Filters{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, engine.OnViewportNearEnd())
}
