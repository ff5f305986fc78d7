package pubsub

import (
	"sync"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

var _ Publisher[int] = &publisher[int]{}

func assertWaiting[T any](assert *assert_.Assertions, r Receiver[T]) {
	select {
	case <-r.Receive():
		assert.Fail("subscriber should be waiting")
	default:
	}
}

func TestPublisher(t *testing.T) {
	assert := assert_.New(t)
	pub := NewPublisher[int]().(*publisher[int])

	// Sending to a publisher with no subscribers should just succeed
	assert.True(pub.Send(1))
	assert.True(pub.Send(2))
	pub.pending.Wait()

	// A single subscriber gets each value once
	s1, err := pub.Subscribe()
	assert.Nil(err)
	assertWaiting[int](assert, s1)
	assert.True(pub.Send(3))
	assert.Equal(3, <-s1.Receive())
	assertWaiting[int](assert, s1)
	pub.pending.Wait()

	// Two subscribers both get the same value
	s2, err := pub.Subscribe()
	assert.Nil(err)
	var wg sync.WaitGroup
	var v1, v2 int
	wg.Add(2)
	go func() { v1 = <-s1.Receive(); wg.Done() }()
	go func() { v2 = <-s2.Receive(); wg.Done() }()
	assert.True(pub.Send(4))
	wg.Wait()
	assert.Equal(4, v1)
	assert.Equal(4, v2)
	pub.pending.Wait()

	// A closed subscriber is dropped, the other keeps receiving
	s1.Close()
	assert.True(pub.Send(5))
	assert.Equal(5, <-s2.Receive())
	_, ok := <-s1.Receive()
	assert.False(ok, "expected closed subscriber to return closed channel")
	s1.Close()
	pub.pending.Wait()

	// Once the publisher is closed, subscribing or sending should fail
	pub.Close()
	_, err = pub.Subscribe()
	assert.ErrorIs(err, ErrPublisherClosed)
	assert.False(pub.Send(6))
	_, ok = <-s2.Receive()
	assert.False(ok, "expected subscriber to be closed by publisher")
	<-pub.Closed()
	pub.Close()
}

func TestPublisher_AddSubscriber_Close(t *testing.T) {
	assert := assert_.New(t)

	pub := NewPublisher[int]()
	c1 := NewChannel[int](1)
	c2 := NewChannel[int](1)
	assert.Nil(pub.AddSubscriber(c1, true))
	assert.Nil(pub.AddSubscriber(c2, false))
	// When the publisher is closed, it should obey the "close" flag for each of its subscribers
	pub.Close()
	assert.False(c1.Send(1), "expected closeOnExit=true subscriber to be closed")
	assert.True(c2.Send(1), "expected closeOnExit=false subscriber to not be closed")
	assert.ErrorIs(pub.AddSubscriber(c2, false), ErrPublisherClosed)
}
