package events

import (
	"errors"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/alanbriolat/download-manager/internal/pubsub"
)

func TestMulti(t *testing.T) {
	assert := assert_.New(t)
	var a, b []Event
	sink := Multi{
		SinkFunc(func(e Event) { a = append(a, e) }),
		Nil,
		SinkFunc(func(e Event) { b = append(b, e) }),
	}
	e := Event{Kind: Finished, TaskID: "x", Path: "/tmp/x"}
	sink.Notify(e)
	assert.Equal([]Event{e}, a)
	assert.Equal([]Event{e}, b)
}

func TestLog(t *testing.T) {
	assert := assert_.New(t)
	core, logs := observer.New(zap.DebugLevel)
	sink := Log{Logger: zap.New(core).Sugar()}

	sink.Notify(Event{Kind: SignificantProgress, TaskID: "a", Progress: 0.5})
	sink.Notify(Event{Kind: Finished, TaskID: "a", Path: "/tmp/a"})
	sink.Notify(Event{Kind: Failed, TaskID: "a", Err: errors.New("boom")})

	entries := logs.AllUntimed()
	if assert.Len(entries, 3) {
		assert.Equal("download progress", entries[0].Message)
		assert.Equal("50%", entries[0].ContextMap()["progress"])
		assert.Equal("/tmp/a", entries[1].ContextMap()["path"])
		assert.Equal(zap.WarnLevel, entries[2].Level)
	}
}

func TestPublisher(t *testing.T) {
	assert := assert_.New(t)
	p := pubsub.NewPublisher[Event]()
	defer p.Close()
	finished, err := p.SubscribeFiltered(func(e Event) bool { return e.Kind == Finished })
	assert.Nil(err)

	sink := NewPublisher(p)
	sink.Notify(Event{Kind: SignificantProgress, TaskID: "a"})
	sink.Notify(Event{Kind: Finished, TaskID: "a"})

	select {
	case e := <-finished.Receive():
		assert.Equal(Finished, e.Kind)
	case <-time.After(time.Second):
		assert.Fail("timed out waiting for event")
	}
}

func TestKindString(t *testing.T) {
	assert_.Equal(t, "finished", Finished.String())
	assert_.Equal(t, "Kind(9)", Kind(9).String())
}
