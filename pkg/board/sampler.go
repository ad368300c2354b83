package board

import (
	"fmt"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/srg/wbb/internal/calibration"
)

// DefaultSamples is the window size used by the weigh command.
const DefaultSamples = 200

// Sampler averages the total mass over a fixed window of readings.
type Sampler struct {
	size   int
	count  int
	buffer mpmc.RichOverlappedRingBuffer[float64]
}

// NewSampler creates a sampler averaging over size readings.
func NewSampler(size int) (*Sampler, error) {
	if size <= 0 {
		return nil, fmt.Errorf("sampler size must be positive, got %d", size)
	}
	return &Sampler{
		size: size,
		// one spare slot: the ring keeps a slot free to tell full from empty
		buffer: mpmc.NewOverlappedRingBuffer[float64](uint32(size + 1)),
	}, nil
}

// Size returns the window size
func (s *Sampler) Size() int {
	return s.size
}

// Count returns how many readings the current window holds
func (s *Sampler) Count() int {
	return s.count
}

// Add records one reading. When the window is full it returns the mean total
// mass and true, and starts a new window.
func (s *Sampler) Add(r calibration.Reading) (float64, bool, error) {
	if _, err := s.buffer.EnqueueM(r.Total()); err != nil {
		return 0, false, fmt.Errorf("sampler enqueue: %w", err)
	}
	s.count++
	if s.count < s.size {
		return 0, false, nil
	}

	avg, err := s.drain()
	if err != nil {
		return 0, false, err
	}
	return avg, true, nil
}

// Reset discards the current window.
func (s *Sampler) Reset() {
	_, _ = s.drain()
}

func (s *Sampler) drain() (float64, error) {
	var sum float64
	n := 0
	for !s.buffer.IsEmpty() {
		v, err := s.buffer.Dequeue()
		if err != nil {
			return 0, fmt.Errorf("sampler dequeue: %w", err)
		}
		sum += v
		n++
	}
	s.count = 0
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}
