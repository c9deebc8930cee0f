package feed

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/lysyi3m/grocery-feed/app/catalog"
	"golang.org/x/text/language"
)

// Engine reconciles paginated product pages into a single deduplicated list.
// It is the sole owner of the feed state; every entry point serializes on mu.
// Page fetches run in their own goroutine and re-enter the engine to merge,
// where the generation token decides whether the result still applies.
type Engine struct {
	source        Source
	catalogConfig *catalog.Config
	sorter        *Sorter
	pageSize      int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	generation uint64
	cursor     int
	exhausted  bool
	inFlight   bool
	filters    Filters
	products   []catalog.Product
	index      map[string]int // id -> position in products
}

func NewEngine(source Source, catalogConfig *catalog.Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		source:        source,
		catalogConfig: catalogConfig,
		sorter:        NewSorter(language.English),
		pageSize:      catalogConfig.Settings.PageSize,
		ctx:           ctx,
		cancel:        cancel,
		cursor:        1,
		filters: Filters{
			Category: catalog.AllCategories,
			Sort:     catalogConfig.Settings.DefaultSort,
		},
		index: make(map[string]int),
	}
}

// Start loads the first page under the default filters.
func (e *Engine) Start() (*Dispatch, error) {
	return e.SetFilters(e.Filters())
}

// SetFilters starts a new generation: the accumulated list is cleared, the
// cursor goes back to 1 and page 1 is requested for the new filters. Any fetch
// still in flight for an older generation is discarded when it resolves.
func (e *Engine) SetFilters(filters Filters) (*Dispatch, error) {
	filters, err := e.normalizeFilters(filters)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}

	e.generation++
	e.filters = filters
	e.products = nil
	e.index = make(map[string]int)
	e.cursor = 1
	e.exhausted = false
	e.inFlight = false

	slog.Debug("Feed filters changed",
		"generation", e.generation,
		"search", filters.Search,
		"category", filters.Category,
		"sort", filters.Sort)

	return e.requestNextPageLocked(e.generation)
}

// RequestNextPage fetches the page at the cursor for generation. It fails with
// ErrStaleGeneration when generation is not current, ErrInFlight while a fetch
// for the generation is pending and ErrExhausted after a short page.
func (e *Engine) RequestNextPage(generation uint64) (*Dispatch, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.requestNextPageLocked(generation)
}

// OnViewportNearEnd advances pagination when the end of the rendered list
// comes into view. It returns nil when a fetch is pending or the feed is
// exhausted.
func (e *Engine) OnViewportNearEnd() *Dispatch {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.inFlight || e.exhausted {
		return nil
	}

	dispatch, err := e.requestNextPageLocked(e.generation)
	if err != nil {
		slog.Debug("Near-end signal ignored", "generation", e.generation, "error", err)
		return nil
	}
	return dispatch
}

func (e *Engine) VisibleProducts() Visible {
	visible, _ := e.View()
	return visible
}

// View returns the visible products together with the state they were
// derived from, both read under one lock.
func (e *Engine) View() (Visible, State) {
	e.mu.Lock()
	products := slices.Clone(e.products)
	state := e.stateLocked()
	e.mu.Unlock()

	return e.sorter.Run(products, state.Filters.Sort), state
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() State {
	return State{
		Generation: e.generation,
		Cursor:     e.cursor,
		PageSize:   e.pageSize,
		Exhausted:  e.exhausted,
		InFlight:   e.inFlight,
		Filters:    e.filters,
		Products:   len(e.products),
	}
}

func (e *Engine) Filters() Filters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filters
}

// Product returns the accumulated product with the given id.
func (e *Engine) Product(id string) (catalog.Product, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	position, ok := e.index[id]
	if !ok {
		return catalog.Product{}, false
	}
	return e.products[position], true
}

// Close cancels pending fetches and waits for their goroutines to return.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}

func (e *Engine) normalizeFilters(filters Filters) (Filters, error) {
	filters.Search = strings.TrimSpace(filters.Search)

	filters.Category = strings.ToLower(strings.TrimSpace(filters.Category))
	if filters.Category == "" {
		filters.Category = catalog.AllCategories
	}
	if !e.catalogConfig.HasCategory(filters.Category) {
		return Filters{}, fmt.Errorf("%w: unknown category '%s'", ErrInvalidFilter, filters.Category)
	}

	sortKey, err := catalog.ParseSortKey(string(filters.Sort))
	if err != nil {
		return Filters{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	filters.Sort = sortKey

	return filters, nil
}

func (e *Engine) requestNextPageLocked(generation uint64) (*Dispatch, error) {
	switch {
	case e.closed:
		return nil, ErrClosed
	case generation != e.generation:
		return nil, ErrStaleGeneration
	case e.inFlight:
		return nil, ErrInFlight
	case e.exhausted:
		return nil, ErrExhausted
	}

	e.inFlight = true

	req := catalog.PageRequest{
		Page:     e.cursor,
		Limit:    e.pageSize,
		Search:   e.filters.Search,
		Category: e.filters.Category,
	}
	dispatch := newDispatch(generation, req.Page)

	e.wg.Add(1)
	go e.fetch(dispatch, req)

	return dispatch, nil
}

func (e *Engine) fetch(dispatch *Dispatch, req catalog.PageRequest) {
	defer e.wg.Done()

	page, err := e.source.FetchPage(e.ctx, req)

	e.mu.Lock()
	result := e.resolveLocked(dispatch, req, page, err)
	e.mu.Unlock()

	switch result.Outcome {
	case OutcomeMerged:
		slog.Debug("Page merged",
			"generation", result.Generation,
			"page", result.Page,
			"received", result.Received,
			"added", result.Added,
			"duplicates", result.Duplicates,
			"exhausted", result.Exhausted)
	case OutcomeFailed:
		slog.Warn("Page fetch failed", "generation", result.Generation, "page", result.Page, "error", result.Err)
	case OutcomeDiscarded:
		slog.Debug("Stale page discarded", "generation", result.Generation, "page", result.Page)
	}

	dispatch.finish(result)
}

func (e *Engine) resolveLocked(dispatch *Dispatch, req catalog.PageRequest, page catalog.Page, err error) PageResult {
	result := PageResult{
		Generation: dispatch.Generation,
		Page:       dispatch.Page,
		Received:   max(page.Received, len(page.Products)),
	}

	// The in-flight flag belongs to the current generation; a stale fetch
	// must not clear it.
	if dispatch.Generation != e.generation {
		result.Outcome = OutcomeDiscarded
		return result
	}

	e.inFlight = false

	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}

	for _, product := range page.Products {
		if _, ok := e.index[product.ID]; ok {
			result.Duplicates++
			continue
		}
		e.index[product.ID] = len(e.products)
		e.products = append(e.products, product)
		result.Added++
	}

	e.cursor++
	// Exhaustion follows the raw page length, not the records that survived
	// normalization. A full page leaves the feed open even if it was the last
	// one; the source does not report a total.
	if result.Received < req.Limit {
		e.exhausted = true
	}

	result.Outcome = OutcomeMerged
	result.Exhausted = e.exhausted
	return result
}
