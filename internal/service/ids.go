package service

import (
	"sync/atomic"
	"time"
)

// idSource hands out message ids that are unique and strictly increasing for
// the life of the process. Ids track wall-clock milliseconds but never repeat
// when two messages land in the same millisecond or the clock steps back.
type idSource struct {
	last atomic.Int64
	now  func() time.Time
}

func newIDSource(now func() time.Time) *idSource {
	return &idSource{now: now}
}

func (s *idSource) next() int64 {
	for {
		last := s.last.Load()
		id := s.now().UnixMilli()
		if id <= last {
			id = last + 1
		}
		if s.last.CompareAndSwap(last, id) {
			return id
		}
	}
}
