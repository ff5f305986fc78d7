package pubsub

import (
	"errors"
	"sync"

	sync_ "github.com/alanbriolat/download-manager/internal/sync"
)

const (
	DefaultPublisherBufSize  = 1
	DefaultSubscriberBufSize = 16
)

var (
	ErrPublisherClosed = errors.New("publisher closed")
)

type Publisher[T any] interface {
	SenderCloser[T]
	// AddSubscriber attaches an existing sender; if closeOnExit is true it is closed along with the publisher.
	AddSubscriber(s SenderCloser[T], closeOnExit bool) error
	Subscribe() (ReceiverCloser[T], error)
	SubscribeBufSize(int) (ReceiverCloser[T], error)
	// SubscribeFiltered creates a subscriber that only receives messages accepted by f.
	SubscribeFiltered(f func(T) bool) (ReceiverCloser[T], error)
}

type subscriber[T any] struct {
	SenderCloser[T]
	closeOnExit bool
}

type publisher[T any] struct {
	mu          sync.Mutex
	ch          Channel[T]
	running     sync.WaitGroup // Goroutines in progress
	pending     sync.WaitGroup // Messages not yet sent to all subscribers
	subscribers *sync_.Mutexed[map[SenderCloser[T]]bool]
	closed      bool
}

func NewPublisher[T any]() Publisher[T] {
	return NewPublisherBufSize[T](DefaultPublisherBufSize)
}

func NewPublisherBufSize[T any](bufSize int) Publisher[T] {
	p := &publisher[T]{
		ch:          NewChannel[T](bufSize),
		subscribers: sync_.NewMutexed(make(map[SenderCloser[T]]bool)),
	}
	p.running.Add(1)
	go func() {
		defer p.running.Done()
		for v := range p.ch.Receive() {
			// Copy the subscriber list so that slow subscribers don't block new subscriptions
			for _, s := range p.snapshot() {
				if ok := s.Send(v); !ok {
					p.unsubscribe(s.SenderCloser)
				}
			}
			p.pending.Done()
		}
	}()
	return p
}

// Send will publish the value to all subscribers. It only blocks while the publisher's buffer is full.
func (p *publisher[T]) Send(msg T) bool {
	p.pending.Add(1)
	if ok := p.ch.Send(msg); !ok {
		// Message was not sent, so don't wait for it
		p.pending.Done()
		return false
	}
	return true
}

func (p *publisher[T]) Subscribe() (ReceiverCloser[T], error) {
	return p.SubscribeBufSize(DefaultSubscriberBufSize)
}

func (p *publisher[T]) SubscribeBufSize(bufSize int) (ReceiverCloser[T], error) {
	s := NewChannel[T](bufSize)
	if err := p.AddSubscriber(s, true); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *publisher[T]) SubscribeFiltered(f func(T) bool) (ReceiverCloser[T], error) {
	s := NewChannel[T](DefaultSubscriberBufSize)
	if err := p.AddSubscriber(NewFilteredSender[T](s, f), true); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *publisher[T]) AddSubscriber(s SenderCloser[T], closeOnExit bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	return p.subscribers.Locked(func(subscribers *map[SenderCloser[T]]bool) error {
		(*subscribers)[s] = closeOnExit
		return nil
	})
}

func (p *publisher[T]) snapshot() []subscriber[T] {
	var list []subscriber[T]
	_ = p.subscribers.Locked(func(subscribers *map[SenderCloser[T]]bool) error {
		list = make([]subscriber[T], 0, len(*subscribers))
		for s, closeOnExit := range *subscribers {
			list = append(list, subscriber[T]{s, closeOnExit})
		}
		return nil
	})
	return list
}

func (p *publisher[T]) unsubscribe(s SenderCloser[T]) {
	_ = p.subscribers.Locked(func(subscribers *map[SenderCloser[T]]bool) error {
		delete(*subscribers, s)
		return nil
	})
}

// Close idempotently shuts down the publisher, flushing pending messages and then closing subscribers that were
// added with closeOnExit.
func (p *publisher[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.ch.Close()
	p.pending.Wait()
	p.running.Wait()
	for _, s := range p.snapshot() {
		p.unsubscribe(s.SenderCloser)
		if s.closeOnExit {
			s.Close()
		}
	}
	p.closed = true
}

func (p *publisher[T]) Closed() <-chan struct{} {
	return p.ch.Closed()
}
