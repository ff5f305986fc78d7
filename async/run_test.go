package async

import (
	"errors"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
)

func TestRunDoesNotBlock(t *testing.T) {
	assert := assert_.New(t)
	release := make(chan struct{})
	result := Run(func() string {
		<-release
		return "done"
	})
	select {
	case <-result:
		assert.Fail("result delivered before the function returned")
	default:
	}
	close(release)
	select {
	case v := <-result:
		assert.Equal("done", v)
	case <-time.After(5 * time.Second):
		assert.Fail("no result")
	}
}

func TestRunResult(t *testing.T) {
	assert := assert_.New(t)
	ok := <-RunResult(func() (int64, error) {
		return 1024, nil
	})
	assert.True(ok.IsOk())
	assert.Equal(int64(1024), ok.Unwrap())

	errFailed := errors.New("failed")
	failed := <-RunResult(func() (int64, error) {
		return 0, errFailed
	})
	assert.True(failed.IsErr())
	_, err := failed.Parts()
	assert.ErrorIs(err, errFailed)
}
