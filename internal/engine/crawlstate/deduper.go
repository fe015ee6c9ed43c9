package crawlstate

import "sync"

// ExportDeduper remembers place IDs already exported during the run.
type ExportDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewExportDeduper() *ExportDeduper {
	return &ExportDeduper{seen: make(map[string]struct{})}
}

// TestDuplicateAndAdd reports whether id was already exported and records it otherwise.
func (d *ExportDeduper) TestDuplicateAndAdd(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	return false
}

// Forget drops id so it can be exported again.
func (d *ExportDeduper) Forget(id string) {
	d.mu.Lock()
	delete(d.seen, id)
	d.mu.Unlock()
}

func (d *ExportDeduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
