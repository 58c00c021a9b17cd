package engine

// DefaultChunkSize is the primary-key range width used to page through
// numeric-keyed tables.
const DefaultChunkSize = 100

// Config carries the run-wide settings. It is passed explicitly to every
// component constructor; there is no process-wide state.
type Config struct {
	ChunkSize      int
	DryRun         bool
	StrictEncoding bool
}
