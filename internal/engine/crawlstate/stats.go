package crawlstate

import (
	"sync"
	"sync/atomic"

	"github.com/rendis/mapcrawl/internal/model"
)

// Stats aggregates counters for a whole crawl run.
type Stats struct {
	SearchesTotal  int
	SearchesDone   atomic.Int64
	SearchesFailed atomic.Int64
	Retries        atomic.Int64
	PlacesFound    atomic.Int64
	PlacesEnqueued atomic.Int64
	PlacesPushed   atomic.Int64
	OutOfPolygon   atomic.Int64
	ResponseErrors atomic.Int64

	mu                 sync.Mutex
	outOfPolygonPlaces []model.OutOfPolygonPlace
}

// AddOutOfPolygonPlace records a place dropped by the geo filter.
func (s *Stats) AddOutOfPolygonPlace(p model.OutOfPolygonPlace) {
	s.OutOfPolygon.Add(1)
	s.mu.Lock()
	s.outOfPolygonPlaces = append(s.outOfPolygonPlaces, p)
	s.mu.Unlock()
}

// OutOfPolygonPlaces returns a copy of the recorded out-of-polygon places.
func (s *Stats) OutOfPolygonPlaces() []model.OutOfPolygonPlace {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.OutOfPolygonPlace, len(s.outOfPolygonPlaces))
	copy(out, s.outOfPolygonPlaces)
	return out
}

// Summary is a JSON friendly snapshot of Stats.
type Summary struct {
	SearchesTotal      int                       `json:"searchesTotal"`
	SearchesDone       int64                     `json:"searchesDone"`
	SearchesFailed     int64                     `json:"searchesFailed"`
	Retries            int64                     `json:"retries"`
	PlacesFound        int64                     `json:"placesFound"`
	PlacesEnqueued     int64                     `json:"placesEnqueued"`
	PlacesPushed       int64                     `json:"placesPushed"`
	OutOfPolygon       int64                     `json:"outOfPolygon"`
	ResponseErrors     int64                     `json:"responseErrors"`
	OutOfPolygonPlaces []model.OutOfPolygonPlace `json:"outOfPolygonPlaces"`
}

func (s *Stats) Summary() Summary {
	return Summary{
		SearchesTotal:      s.SearchesTotal,
		SearchesDone:       s.SearchesDone.Load(),
		SearchesFailed:     s.SearchesFailed.Load(),
		Retries:            s.Retries.Load(),
		PlacesFound:        s.PlacesFound.Load(),
		PlacesEnqueued:     s.PlacesEnqueued.Load(),
		PlacesPushed:       s.PlacesPushed.Load(),
		OutOfPolygon:       s.OutOfPolygon.Load(),
		ResponseErrors:     s.ResponseErrors.Load(),
		OutOfPolygonPlaces: s.OutOfPolygonPlaces(),
	}
}
