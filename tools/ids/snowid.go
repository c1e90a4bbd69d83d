package ids

import (
	"strconv"
	"sync"
	"time"
)

// Connection ids are snowflake-style int64s: millisecond timestamp, node
// part and a per-millisecond counter. Message ids are storage-assigned and
// never come from here.

const (
	nodeBits  = 10
	stepBits  = 12
	nodeMax   = (1 << nodeBits) - 1
	stepMask  = (1 << stepBits) - 1
	timeShift = nodeBits + stepBits
)

var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// Source hands out ids; safe for concurrent use.
type Source struct {
	mu   sync.Mutex
	node int64
	last int64
	step int64
}

func NewSource(node int64) *Source {
	if node < 0 || node > nodeMax {
		node = 1
	}
	return &Source{node: node}
}

func (s *Source) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	for now < s.last {
		// clock went backwards, wait it out
		time.Sleep(time.Millisecond)
		now = time.Now().UnixMilli()
	}
	if now == s.last {
		s.step = (s.step + 1) & stepMask
		if s.step == 0 {
			// counter exhausted within this millisecond
			for now <= s.last {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.step = 0
	}
	s.last = now

	return (now-epoch)<<timeShift | s.node<<stepBits | s.step
}

var (
	std     *Source
	stdOnce sync.Once
)

func get() *Source {
	stdOnce.Do(func() { std = NewSource(1) })
	return std
}

// Generate returns a new id from the process-wide source.
func Generate() int64 { return get().Next() }

func GenerateString() string {
	return strconv.FormatInt(Generate(), 10)
}

// SetNodeID sets the node part (0~1023); call once from main() if needed.
func SetNodeID(node int64) {
	s := get()
	s.mu.Lock()
	defer s.mu.Unlock()
	if node < 0 || node > nodeMax {
		node = 1
	}
	s.node = node
}
