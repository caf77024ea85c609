package id

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_UniqueAndSorted(t *testing.T) {
	ids := make([]string, 0, 1000)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		v := New()
		assert.False(t, seen[v], "duplicate id %s", v)
		seen[v] = true
		ids = append(ids, v)
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(New()))
	assert.True(t, Valid(NewAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))))
	assert.False(t, Valid(""))
	assert.False(t, Valid("not-a-ulid"))
}
