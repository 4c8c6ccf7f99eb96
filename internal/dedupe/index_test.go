// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dedupe

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/content-aggregator/pkg/types"
)

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", "10.1234/ABC.5", "10.1234/abc.5"},
		{"https resolver", "https://doi.org/10.1234/abc", "10.1234/abc"},
		{"dx resolver", "http://dx.doi.org/10.1234/abc", "10.1234/abc"},
		{"doi scheme", "doi:10.1234/abc", "10.1234/abc"},
		{"whitespace", "  10.1234/abc  ", "10.1234/abc"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeDOI(tt.in); got != tt.want {
				t.Errorf("NormalizeDOI(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRegisterIdempotent(t *testing.T) {
	ix := New()
	ix.Register("10.1/x", "Some Title")
	n := ix.Len()

	ix.Register("10.1/x", "Some Title")
	assert.Equal(t, n, ix.Len(), "second register must not add keys")
	assert.True(t, ix.IsDuplicate("10.1/x", ""))
	assert.True(t, ix.IsDuplicate("", "some title"))
}

func TestDOIMatchDecisiveOverTitles(t *testing.T) {
	ix := New()
	ix.Register("10.1/x", "Original Title")

	// Same DOI, different title: duplicate.
	assert.True(t, ix.IsDuplicate("10.1/x", "Completely Different Title"))
	// Resolver-prefixed and upper-case form of the same DOI: duplicate.
	assert.True(t, ix.IsDuplicate("https://doi.org/10.1/X", "Another"))
}

func TestTitleMatchOnlyWhenEitherLacksDOI(t *testing.T) {
	ix := New()
	ix.Register("10.1/x", "Shared Title")

	// Both have DOIs, DOIs differ: not a duplicate despite equal titles.
	assert.False(t, ix.IsDuplicate("10.2/y", "Shared Title"))
	// Incoming record lacks a DOI: title match counts.
	assert.True(t, ix.IsDuplicate("", "shared title"))

	// Prior record lacked a DOI: incoming DOI-bearing record collides.
	ix.Register("", "Orphan Title")
	assert.True(t, ix.IsDuplicate("10.3/z", "Orphan Title"))
}

func TestTitleMatchCaseInsensitive(t *testing.T) {
	ix := New()
	ix.Register("", "Health Systems In Transition")
	assert.True(t, ix.IsDuplicate("", "health systems in transition"))
	assert.True(t, ix.IsDuplicate("", "  Health Systems In Transition "))
	assert.False(t, ix.IsDuplicate("", "health systems"))
}

func TestSeedSkipsEmptyFields(t *testing.T) {
	ix := New()
	ix.Seed([]types.UnifiedRecord{
		{Title: "A", DOI: "10.1/x"},
		{Title: "B"},
		{DOI: "10.2/y"},
		{},
	})
	assert.Equal(t, 4, ix.Len()) // two DOIs + two titles, empty record adds nothing
	assert.True(t, ix.IsDuplicate("", "b"))
	assert.True(t, ix.IsDuplicate("10.2/y", ""))
}

func TestAdmitAtomicCheckThenRegister(t *testing.T) {
	ix := New()
	assert.True(t, ix.Admit("10.1/x", "Title"))
	assert.False(t, ix.Admit("10.1/x", "Other Title"))
	assert.False(t, ix.Admit("", "title"))
}

// Concurrent admits of the same key must admit exactly one record.
func TestAdmitConcurrentSingleWinner(t *testing.T) {
	ix := New()
	const workers = 32

	var wg sync.WaitGroup
	admitted := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ix.Admit("10.9/race", "Raced Title") {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	count := 0
	for range admitted {
		count++
	}
	assert.Equal(t, 1, count)
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	ix := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			ix.Register(fmt.Sprintf("10.5/%d", n), fmt.Sprintf("Title %d", n))
		}(i)
		go func(n int) {
			defer wg.Done()
			ix.IsDuplicate(fmt.Sprintf("10.5/%d", n), "")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 32, ix.Len())
}
