package hardware

import (
	"sync"

	"github.com/gammazero/deque"
)

// Recorder is a byte sink that keeps the frames written to it instead of
// transmitting them. Only the last capacity frames are retained.
type Recorder struct {
	mu       sync.Mutex
	frames   deque.Deque[[]byte]
	capacity int
	count    int
	err      error
}

func NewRecorder(capacity int) *Recorder {
	if capacity < 1 {
		capacity = 1
	}
	return &Recorder{capacity: capacity}
}

func (r *Recorder) WriteBytes(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	r.frames.PushBack(frame)
	if r.frames.Len() > r.capacity {
		r.frames.PopFront()
	}
	r.count++
	return nil
}

// FailWith makes every following write return err. Pass nil to recover.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Last returns the most recent frame or nil.
func (r *Recorder) Last() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frames.Len() == 0 {
		return nil
	}
	return r.frames.Back()
}

// Frames returns the retained frames, oldest first.
func (r *Recorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([][]byte, r.frames.Len())
	for i := range ret {
		ret[i] = r.frames.At(i)
	}
	return ret
}

// Count returns the number of successful writes since the last Reset,
// including frames no longer retained.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames.Clear()
	r.count = 0
	r.err = nil
}
