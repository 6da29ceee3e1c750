// Package tempo partitions the tempo axis into fixed-width ranges and classifies tracks into them.
//
// # Partitioning
//
// [BuildPartition] produces an ordered, gapless set of [Range] values covering [0, max):
//
//   - a leading range [0, start-1]
//   - one range [t, t+increment-1] for each t = start, start+increment, ... while t < end
//   - a trailing catch-all range [end, max-1]
//
// When (end - start) is not a multiple of increment, the last stepped range ends past end-1 and
// overlaps the catch-all range. The catch-all still begins at end. Lookups scan in ascending order
// and stop at the first match, so the stepped range wins the overlap.
//
// # Classification
//
// Streaming services often report tempo in double time. [EffectiveTempo] halves the raw tempo when
// the track's energy is below a threshold. [Partition.Classify] applies that correction,
// [Partition.ClassifyRaw] does not. Both fail with [*TempoOutOfRangeError] when the tempo is at or
// above the configured maximum.
package tempo
