package internal

import (
	"bytes"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Stats is a struct containing internal counters
type Stats struct {
	startedAt time.Time

	counts  map[string]int64
	countMu sync.Mutex
}

var allStatKeys = []string{
	"dropped",
	"emitted",
	"flush_errors",
	"flushes",
	"sent",
}

// NewStats returns a new instance of Stats
func NewStats() *Stats {
	s := &Stats{
		startedAt: time.Now().UTC(),
		counts:    make(map[string]int64),
	}

	for _, k := range allStatKeys {
		s.counts[k] = 0
	}

	return s
}

func (s *Stats) Set(key string, val int64) {
	s.countMu.Lock()
	defer s.countMu.Unlock()

	s.counts[key] = val
}

func (s *Stats) Add(key string, val int64) {
	s.countMu.Lock()
	defer s.countMu.Unlock()

	s.counts[key] += val
}

func (s *Stats) Incr(key string) {
	s.Add(key, 1)
}

func (s *Stats) Get(key string) int64 {
	s.countMu.Lock()
	defer s.countMu.Unlock()

	return s.counts[key]
}

func (s *Stats) Bytes() []byte {
	s.countMu.Lock()
	defer s.countMu.Unlock()

	buf := bytes.NewBuffer([]byte{})
	var keys []string

	for k := range s.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteString(": ")
		buf.WriteString(strconv.FormatInt(s.counts[k], 10))
		buf.WriteString("\n")
	}

	return buf.Bytes()
}
