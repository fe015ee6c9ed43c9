package crawlstate

import "sync"

type searchCounters struct {
	enqueued int
	scraped  int
}

// BudgetTracker enforces the global and per-search caps on places enqueued or
// pushed during one crawl run. A cap <= 0 means unlimited. Safe for concurrent use.
type BudgetTracker struct {
	maxTotal     int
	maxPerSearch int

	mu            sync.Mutex
	enqueuedTotal int
	scrapedTotal  int
	perSearch     map[string]*searchCounters
}

func NewBudgetTracker(maxTotal, maxPerSearch int) *BudgetTracker {
	return &BudgetTracker{
		maxTotal:     maxTotal,
		maxPerSearch: maxPerSearch,
		perSearch:    make(map[string]*searchCounters),
	}
}

func (b *BudgetTracker) counters(searchKey string) *searchCounters {
	c, ok := b.perSearch[searchKey]
	if !ok {
		c = &searchCounters{}
		b.perSearch[searchKey] = c
	}
	return c
}

func reached(count, limit int) bool {
	return limit > 0 && count >= limit
}

func (b *BudgetTracker) canEnqueueLocked(searchKey string) bool {
	if reached(b.enqueuedTotal, b.maxTotal) {
		return false
	}
	if searchKey != "" && reached(b.counters(searchKey).enqueued, b.maxPerSearch) {
		return false
	}
	return true
}

// CanEnqueueMore reports whether both the global and the per-search enqueue caps have room.
func (b *BudgetTracker) CanEnqueueMore(searchKey string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.canEnqueueLocked(searchKey)
}

// SetEnqueued consumes one enqueue unit unconditionally and reports whether
// more can be enqueued afterwards.
func (b *BudgetTracker) SetEnqueued(searchKey string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enqueuedTotal++
	if searchKey != "" {
		b.counters(searchKey).enqueued++
	}
	return b.canEnqueueLocked(searchKey)
}

// TryEnqueue consumes one enqueue unit only if the caps still have room.
func (b *BudgetTracker) TryEnqueue(searchKey string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.canEnqueueLocked(searchKey) {
		return false
	}
	b.enqueuedTotal++
	if searchKey != "" {
		b.counters(searchKey).enqueued++
	}
	return true
}

// UnsetEnqueued returns one enqueue unit, e.g. when the queue already held the request.
// Counters never go below zero.
func (b *BudgetTracker) UnsetEnqueued(searchKey string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.enqueuedTotal > 0 {
		b.enqueuedTotal--
	}
	if searchKey != "" {
		if c := b.counters(searchKey); c.enqueued > 0 {
			c.enqueued--
		}
	}
}

// CanScrapeMore reports whether the global scrape cap has room.
func (b *BudgetTracker) CanScrapeMore() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !reached(b.scrapedTotal, b.maxTotal)
}

// SetScraped consumes one scrape unit and reports whether more can be scraped afterwards.
func (b *BudgetTracker) SetScraped(searchKey string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scrapedTotal++
	if searchKey != "" {
		b.counters(searchKey).scraped++
	}
	return !reached(b.scrapedTotal, b.maxTotal)
}

// TryScrape consumes one scrape unit only if the global cap still has room.
func (b *BudgetTracker) TryScrape(searchKey string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if reached(b.scrapedTotal, b.maxTotal) {
		return false
	}
	b.scrapedTotal++
	if searchKey != "" {
		b.counters(searchKey).scraped++
	}
	return true
}

// UnsetScraped returns one scrape unit.
func (b *BudgetTracker) UnsetScraped(searchKey string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.scrapedTotal > 0 {
		b.scrapedTotal--
	}
	if searchKey != "" {
		if c := b.counters(searchKey); c.scraped > 0 {
			c.scraped--
		}
	}
}

// EnqueuedTotal returns the number of enqueue units consumed across all searches.
func (b *BudgetTracker) EnqueuedTotal() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enqueuedTotal
}

// ScrapedTotal returns the number of scrape units consumed across all searches.
func (b *BudgetTracker) ScrapedTotal() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scrapedTotal
}

// EnqueuedFor returns the enqueue units consumed by one search.
func (b *BudgetTracker) EnqueuedFor(searchKey string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.perSearch[searchKey]; ok {
		return c.enqueued
	}
	return 0
}

// ScrapedFor returns the scrape units consumed by one search.
func (b *BudgetTracker) ScrapedFor(searchKey string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.perSearch[searchKey]; ok {
		return c.scraped
	}
	return 0
}
