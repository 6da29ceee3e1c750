package tempo

import (
	"fmt"
	"slices"
)

// NamePrefix is shared by every generated range name. Re-runs recognize earlier playlists by it.
const NamePrefix = "auto-playlist-by-tempo"

// Range is a closed interval of integer tempos with the set of tracks assigned to it.
type Range struct {
	Low     int
	High    int
	Name    string
	ID      string // remote playlist id, set during reconciliation
	Members map[string]struct{}
}

// NewRange creates a [Range] named by [RangeName].
func NewRange(low, high int) *Range {
	return &Range{
		Low:     low,
		High:    high,
		Name:    RangeName(low, high),
		Members: make(map[string]struct{}),
	}
}

// RangeName returns the deterministic playlist name for [low, high].
func RangeName(low, high int) string {
	return fmt.Sprintf("%s [%d, %d]", NamePrefix, low, high)
}

// Contains reports whether low <= t <= high.
func (r *Range) Contains(t float64) bool {
	return float64(r.Low) <= t && t <= float64(r.High)
}

// Add records a track as a member. Adding the same id twice is a no-op.
func (r *Range) Add(trackID string) {
	r.Members[trackID] = struct{}{}
}

// TrackIDs returns the members in ascending order.
func (r *Range) TrackIDs() []string {
	ids := make([]string, 0, len(r.Members))
	for id := range r.Members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.Low, r.High)
}

// Params are the inputs of [BuildPartition].
type Params struct {
	Start     int
	End       int
	Increment int
	Max       int
}

// DefaultParams mirrors the defaults in config.example.toml.
func DefaultParams() Params {
	return Params{Start: 50, End: 155, Increment: 15, Max: 300}
}

// Validate checks 0 <= start < end <= max and increment > 0.
func (p Params) Validate() error {
	switch {
	case p.Start < 0:
		return &ConfigurationError{Field: "start_tempo", Reason: fmt.Sprintf("must be >= 0, got %d", p.Start)}
	case p.Start >= p.End:
		return &ConfigurationError{Field: "start_tempo", Reason: fmt.Sprintf("must be below end_tempo %d, got %d", p.End, p.Start)}
	case p.Increment <= 0:
		return &ConfigurationError{Field: "increment", Reason: fmt.Sprintf("must be > 0, got %d", p.Increment)}
	case p.End > p.Max:
		return &ConfigurationError{Field: "end_tempo", Reason: fmt.Sprintf("must be <= max_tempo %d, got %d", p.Max, p.End)}
	}
	return nil
}

// Partition is the ordered set of ranges for one run. Boundaries are fixed after construction;
// only membership changes.
type Partition struct {
	ranges []*Range
	max    int
}

// BuildPartition splits [0, max) into ranges. See the package documentation for the layout.
//
// A start of 0 or an end equal to max would produce an empty bookend range; those are omitted.
func BuildPartition(p Params) (*Partition, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var ranges []*Range
	if p.Start > 0 {
		ranges = append(ranges, NewRange(0, p.Start-1))
	}
	for t := p.Start; t < p.End; t += p.Increment {
		ranges = append(ranges, NewRange(t, t+p.Increment-1))
	}
	if p.End < p.Max {
		ranges = append(ranges, NewRange(p.End, p.Max-1))
	}

	return &Partition{ranges: ranges, max: p.Max}, nil
}

// Ranges returns the ranges in ascending order of Low.
func (p *Partition) Ranges() []*Range {
	return p.ranges
}

// Max returns the exclusive upper bound of the partition.
func (p *Partition) Max() int {
	return p.max
}

// Names returns every range name, in order.
func (p *Partition) Names() []string {
	names := make([]string, len(p.ranges))
	for i, r := range p.ranges {
		names[i] = r.Name
	}
	return names
}

// Lookup returns the first range containing t, or nil.
func (p *Partition) Lookup(t float64) *Range {
	for _, r := range p.ranges {
		if r.Contains(t) {
			return r
		}
	}
	return nil
}

// MemberCount sums the members of every range.
func (p *Partition) MemberCount() int {
	n := 0
	for _, r := range p.ranges {
		n += len(r.Members)
	}
	return n
}
