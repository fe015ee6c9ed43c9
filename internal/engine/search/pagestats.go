package search

// DeferredError is a failure detected while handling a network response. It
// reaches the scroll loop through PageStats and is consumed exactly once.
type DeferredError struct {
	Message        string
	ResponseStatus int
	ResponseBody   string
}

// PageStats tracks one search. It is owned by the goroutine running the
// search: responses are handled on that goroutine between scroll steps, so no
// locking is needed.
type PageStats struct {
	PageNum       int
	Found         int
	TotalFound    int
	Enqueued      int
	TotalEnqueued int
	Pushed        int
	TotalPushed   int
	IsDataPage    bool

	deferred *DeferredError
}

func NewPageStats() *PageStats {
	return &PageStats{PageNum: 1}
}

// Defer arms the deferred error. The first failure wins until it is taken.
func (s *PageStats) Defer(e DeferredError) {
	if s.deferred != nil {
		return
	}
	s.deferred = &e
}

// HasError reports whether a deferred error is waiting.
func (s *PageStats) HasError() bool {
	return s.deferred != nil
}

// TakeError returns the deferred error and disarms it.
func (s *PageStats) TakeError() *DeferredError {
	e := s.deferred
	s.deferred = nil
	return e
}
