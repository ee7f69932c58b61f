package liveview

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/userdesk/backend/internal/models"
)

// SortOrder selects the username sort direction of a projection.
type SortOrder int

const (
	SortAscending SortOrder = iota
	SortDescending
)

// ParseSortOrder reads the wire form ("asc"/"desc"); anything unrecognized
// falls back to ascending.
func ParseSortOrder(s string) SortOrder {
	if strings.EqualFold(strings.TrimSpace(s), "desc") {
		return SortDescending
	}
	return SortAscending
}

// Project filters list by a case-insensitive substring match on username and
// sorts by username with a locale-aware, case-insensitive collation. The input
// slice is not modified; the result is deterministic in (list, search, order).
func Project(list []models.UserProfile, search string, order SortOrder) []models.UserProfile {
	kw := strings.ToLower(strings.TrimSpace(search))

	out := make([]models.UserProfile, 0, len(list))
	for _, p := range list {
		if kw == "" || strings.Contains(strings.ToLower(p.Username), kw) {
			out = append(out, p)
		}
	}

	// Collators carry internal buffers, so build one per call rather than
	// sharing across goroutines.
	c := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(out, func(i, j int) bool {
		cmp := c.CompareString(out[i].Username, out[j].Username)
		if order == SortDescending {
			return cmp > 0
		}
		return cmp < 0
	})
	return out
}

// projectionCache memoizes the last projection so repeated reads with the same
// search and order recompute nothing until a new snapshot arrives.
type projectionCache struct {
	valid  bool
	gen    uint64
	search string
	order  SortOrder
	result []models.UserProfile
}

// Project returns the filtered and sorted materialized list, memoized on
// (snapshot generation, search, order).
func (v *CollectionView) Project(search string, order SortOrder) []models.UserProfile {
	v.mu.Lock()
	if v.proj.valid && v.proj.gen == v.gen && v.proj.search == search && v.proj.order == order {
		res := append([]models.UserProfile(nil), v.proj.result...)
		v.mu.Unlock()
		return res
	}
	list := append([]models.UserProfile(nil), v.profiles...)
	gen := v.gen
	v.mu.Unlock()

	res := Project(list, search, order)

	v.mu.Lock()
	v.proj = projectionCache{valid: true, gen: gen, search: search, order: order, result: res}
	v.mu.Unlock()
	return append([]models.UserProfile(nil), res...)
}
