// Package aggregator groups one collection pass's observations by token.
package aggregator

import (
	"sort"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// Snapshot is the per-token grouping of a collection pass. The zero value is
// empty and ready to use; a Snapshot is not safe for concurrent mutation.
type Snapshot struct {
	byToken map[string][]domain.Observation
	dropped int
}

// Merge groups every observation in parts by token. Within a token,
// observations are ordered by (timestamp, venue key) with arrival order
// breaking ties, so merging the same disjoint inputs in any order yields the
// same snapshot. Observations outside the accepted price range are dropped.
func Merge(parts ...[]domain.Observation) *Snapshot {
	s := &Snapshot{}
	for _, p := range parts {
		s.Add(p...)
	}
	return s
}

// Add merges more observations into the snapshot.
func (s *Snapshot) Add(obs ...domain.Observation) {
	if s.byToken == nil {
		s.byToken = make(map[string][]domain.Observation)
	}
	touched := make(map[string]struct{})
	for _, o := range obs {
		if o.Token == "" || !domain.PriceInBounds(o.Price) {
			s.dropped++
			continue
		}
		s.byToken[o.Token] = append(s.byToken[o.Token], o)
		touched[o.Token] = struct{}{}
	}
	for tok := range touched {
		list := s.byToken[tok]
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Timestamp != list[j].Timestamp {
				return list[i].Timestamp < list[j].Timestamp
			}
			return list[i].VenueKey() < list[j].VenueKey()
		})
	}
}

// Tokens returns the grouped token symbols in sorted order.
func (s *Snapshot) Tokens() []string {
	out := make([]string, 0, len(s.byToken))
	for t := range s.byToken {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Get returns the observations for token.
func (s *Snapshot) Get(token string) []domain.Observation {
	return s.byToken[token]
}

// Len returns the total number of grouped observations.
func (s *Snapshot) Len() int {
	n := 0
	for _, l := range s.byToken {
		n += len(l)
	}
	return n
}

// Dropped returns how many observations were rejected on merge.
func (s *Snapshot) Dropped() int { return s.dropped }

// All flattens the snapshot in token order.
func (s *Snapshot) All() []domain.Observation {
	out := make([]domain.Observation, 0, s.Len())
	for _, t := range s.Tokens() {
		out = append(out, s.byToken[t]...)
	}
	return out
}
