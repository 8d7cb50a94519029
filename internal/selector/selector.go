package selector

import (
	"errors"
	"math/rand/v2"
	"strings"

	"github.com/LJTian/TheNews/internal/news"
)

// ErrNoEligibleStory is returned when every candidate was filtered out.
var ErrNoEligibleStory = errors.New("selector: no eligible story")

// Rand is the subset of *rand.Rand the selector needs, so tests can seed it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Default draws from the process-wide math/rand/v2 source.
var Default Rand = globalRand{}

// PickRandom returns min(n, len(items)) distinct elements of items using a
// Durstenfeld shuffle that stops once the trailing n positions are filled.
// items is not modified.
func PickRandom[T any](n int, items []T, rng Rand) []T {
	if n <= 0 || len(items) == 0 {
		return []T{}
	}
	if rng == nil {
		rng = Default
	}
	work := make([]T, len(items))
	copy(work, items)

	last := len(work) - n
	if last < 0 {
		last = 0
	}
	for i := len(work) - 1; i > 0 && i >= last; i-- {
		j := rng.IntN(i + 1)
		work[i], work[j] = work[j], work[i]
	}
	return work[last:]
}

// Filter decides which headlines are not worth showing.
type Filter struct {
	Exact    []string
	Contains []string
}

// DefaultFilter skips recurring columns that are not news.
func DefaultFilter() Filter {
	return Filter{
		Exact:    []string{"Letters to the Editor", "Reactions"},
		Contains: []string{"Evening Briefing", "Review: "},
	}
}

// Uninteresting reports whether title matches the denylist.
func (f Filter) Uninteresting(title string) bool {
	for _, e := range f.Exact {
		if title == e {
			return true
		}
	}
	for _, c := range f.Contains {
		if strings.Contains(title, c) {
			return true
		}
	}
	return false
}

// Selector picks one displayable story out of a result set.
type Selector struct {
	Filter Filter
	Rand   Rand
}

// New returns a Selector with the default filter and random source.
func New() *Selector {
	return &Selector{Filter: DefaultFilter(), Rand: Default}
}

// Pick draws a random index in [0, min(MaxStories-1, len)) and discards
// filtered stories until an eligible one turns up. The input is not modified.
func (s *Selector) Pick(stories []news.Story) (news.Story, error) {
	rng := s.Rand
	if rng == nil {
		rng = Default
	}
	work := make([]news.Story, len(stories))
	copy(work, stories)

	for attempts := len(stories); attempts > 0 && len(work) > 0; attempts-- {
		bound := min(news.MaxStories-1, len(work))
		if bound <= 0 {
			break
		}
		idx := rng.IntN(bound)
		if !s.Filter.Uninteresting(work[idx].Title) {
			return work[idx], nil
		}
		work = append(work[:idx], work[idx+1:]...)
	}
	return news.Story{}, ErrNoEligibleStory
}

// RandomStory is Pick with the default filter and the given random source.
func RandomStory(stories []news.Story, rng Rand) (news.Story, error) {
	return (&Selector{Filter: DefaultFilter(), Rand: rng}).Pick(stories)
}
