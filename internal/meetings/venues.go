package meetings

import (
	"strings"

	"leadify-meeting-orchestrator/internal/types"
)

// Rule selects an invitation variant when every keyword occurs in the
// meeting location, ignoring case
type Rule struct {
	Keywords []string
	Variant  types.EventKind
}

// VenueTable is an ordered rule list. The first matching rule wins.
type VenueTable struct {
	rules   []Rule
	virtual []string
}

// NewVenueTable builds a table from rules (most specific first) and the
// location markers that denote an online meeting
func NewVenueTable(rules []Rule, virtualMarkers []string) *VenueTable {
	t := &VenueTable{}
	for _, r := range rules {
		var keywords []string
		for _, k := range r.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				keywords = append(keywords, k)
			}
		}
		if len(keywords) == 0 {
			continue
		}
		t.rules = append(t.rules, Rule{Keywords: keywords, Variant: r.Variant})
	}
	for _, m := range virtualMarkers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			t.virtual = append(t.virtual, m)
		}
	}
	return t
}

// Variant returns the invitation kind for a location
func (t *VenueTable) Variant(location string) types.EventKind {
	loc := strings.ToLower(location)
	for _, r := range t.rules {
		if containsAll(loc, r.Keywords) {
			return r.Variant
		}
	}
	return types.KindInvitationDefault
}

// IsVirtual reports whether the location is an online venue
func (t *VenueTable) IsVirtual(location string) bool {
	loc := strings.ToLower(location)
	for _, m := range t.virtual {
		if strings.Contains(loc, m) {
			return true
		}
	}
	return false
}

func containsAll(s string, keywords []string) bool {
	for _, k := range keywords {
		if !strings.Contains(s, k) {
			return false
		}
	}
	return true
}
