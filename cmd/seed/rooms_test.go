package main

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampusRoomsUpsertable(t *testing.T) {
	require.Len(t, campusRooms, 37)

	seen := map[string]bool{}
	for _, r := range campusRooms {
		assert.NotEmpty(t, r.Number)
		assert.NotEmpty(t, r.Name, r.Number)
		assert.LessOrEqual(t, utf8.RuneCountInString(r.Number), 32, r.Number)
		assert.False(t, seen[r.Number], "duplicate room number %s", r.Number)
		seen[r.Number] = true
	}
	assert.True(t, seen["B101(L)"])
}
