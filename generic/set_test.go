package generic

import (
	"sort"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	assert := assert_.New(t)

	s := NewSet[string]()
	assert.Equal(0, s.Count())
	assert.False(s.Contains("a"))
	assert.True(s.Add("a"))
	assert.False(s.Add("a"))
	assert.Equal(1, s.Count())
	assert.True(s.Contains("a"))
	assert.True(s.Remove("a"))
	assert.False(s.Remove("a"))
	assert.Equal(0, s.Count())

	s2 := NewSet("c", "a", "b")
	assert.True(s2.Contains("a", "b"))
	assert.False(s2.Contains("a", "z"))
	items := s2.ToSlice()
	sort.Strings(items)
	assert.Equal([]string{"a", "b", "c"}, items)

	s2.Clear()
	assert.Equal(0, s2.Count())
	assert.False(s2.Contains("a"))
}
