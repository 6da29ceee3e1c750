package tempo

// DefaultEnergyThreshold is the energy below which a track's tempo is treated as double time.
const DefaultEnergyThreshold = 0.6

// EffectiveTempo returns rawTempo/2 when energy < threshold, otherwise rawTempo.
func EffectiveTempo(rawTempo, energy, threshold float64) float64 {
	if energy < threshold {
		return rawTempo / 2
	}
	return rawTempo
}

// Classify adds trackID to the first range containing the energy-corrected tempo.
//
// It returns the matched range, or nil when the tempo falls between integer ranges (a halved odd
// tempo such as 49.5) or below zero. A tempo at or above the partition maximum returns a
// [*TempoOutOfRangeError] and leaves the partition untouched.
func (p *Partition) Classify(trackID string, rawTempo, energy, threshold float64) (*Range, error) {
	return p.assign(trackID, EffectiveTempo(rawTempo, energy, threshold))
}

// ClassifyRaw behaves like [Partition.Classify] without energy correction.
func (p *Partition) ClassifyRaw(trackID string, rawTempo float64) (*Range, error) {
	return p.assign(trackID, rawTempo)
}

func (p *Partition) assign(trackID string, t float64) (*Range, error) {
	if t >= float64(p.max) {
		return nil, &TempoOutOfRangeError{TrackID: trackID, Tempo: t, Max: p.max}
	}

	r := p.Lookup(t)
	if r == nil {
		return nil, nil
	}
	r.Add(trackID)
	return r, nil
}
