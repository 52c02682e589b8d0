package worker

import (
	"sync"

	"github.com/gammazero/deque"
)

// queue is the state shared by every Sender and the Receiver of one work
// queue.  Messages are stored in a single deque, so delivery order is one
// strict FIFO across all producers combined.
type queue struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	items    *deque.Deque[Message]
	senders  int  // open Sender handles
	rxClosed bool // Receiver.Close has been called
}

// Sender is a producing handle onto a work queue.  It is safe for concurrent
// use; Clone hands out additional handles that keep the queue open.
type Sender struct {
	q    *queue
	once sync.Once
	mu   sync.RWMutex
	done bool
}

// Receiver is the single consuming end of a work queue.  Workers never use
// it directly: they share it through a SharedReceiver.
type Receiver struct {
	q *queue
}

// NewWorkQueue creates an unbounded FIFO queue and returns its first Sender
// and its Receiver.
func NewWorkQueue() (*Sender, *Receiver) {
	q := &queue{
		items:   deque.New[Message](),
		senders: 1,
	}
	q.nonEmpty = sync.NewCond(&q.mu)
	return &Sender{q: q}, &Receiver{q: q}
}

// Send appends msg to the queue.  It never waits for a consumer; it fails
// with ErrChannelClosed when the receiver has been closed or when this
// handle has already been closed.
func (s *Sender) Send(msg Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.done {
		return ErrChannelClosed
	}

	q := s.q
	q.mu.Lock()
	if q.rxClosed {
		q.mu.Unlock()
		return ErrChannelClosed
	}
	q.items.PushBack(msg)
	q.mu.Unlock()
	q.nonEmpty.Signal()
	return nil
}

// Clone returns a new Sender on the same queue.  Cloning a closed Sender
// returns ErrChannelClosed.
func (s *Sender) Clone() (*Sender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.done {
		return nil, ErrChannelClosed
	}
	s.q.mu.Lock()
	s.q.senders++
	s.q.mu.Unlock()
	return &Sender{q: s.q}, nil
}

// Close releases this handle.  When the last Sender is closed, a blocked
// Recv drains the remaining messages and then reports ErrChannelClosed.
// Close is idempotent.
func (s *Sender) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.done = true
		s.mu.Unlock()

		s.q.mu.Lock()
		s.q.senders--
		s.q.mu.Unlock()
		s.q.nonEmpty.Broadcast()
	})
}

// Recv blocks until a message is available and returns it.  It returns
// ErrChannelClosed once the receiver is closed, or once every sender is
// closed and nothing is left to deliver.
func (r *Receiver) Recv() (Message, error) {
	q := r.q
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Len() == 0 && q.senders > 0 && !q.rxClosed {
		q.nonEmpty.Wait()
	}
	if q.rxClosed || q.items.Len() == 0 {
		return Message{}, ErrChannelClosed
	}
	return q.items.PopFront(), nil
}

// Len reports the number of queued messages.
func (r *Receiver) Len() int {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()
	return r.q.items.Len()
}

// Close drops the receiving end.  Subsequent sends fail and anything still
// queued is discarded.
func (r *Receiver) Close() {
	q := r.q
	q.mu.Lock()
	q.rxClosed = true
	for q.items.Len() > 0 {
		q.items.PopFront()
	}
	q.mu.Unlock()
	q.nonEmpty.Broadcast()
}

// SharedReceiver lets several workers consume from one Receiver.  Only one
// caller at a time may be waiting for and removing a message; the others
// queue up on mu.  The lock covers the dequeue only, never the work that
// follows it.
type SharedReceiver struct {
	mu sync.Mutex
	rx *Receiver
}

// NewSharedReceiver wraps rx for shared use.
func NewSharedReceiver(rx *Receiver) *SharedReceiver {
	return &SharedReceiver{rx: rx}
}

// Recv takes exclusive access, waits for the next message and gives access
// back before returning.
func (s *SharedReceiver) Recv() (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rx.Recv()
}

// Len reports the number of queued messages without taking the dequeue lock.
func (s *SharedReceiver) Len() int {
	return s.rx.Len()
}

// Close closes the wrapped Receiver.
func (s *SharedReceiver) Close() {
	s.rx.Close()
}
