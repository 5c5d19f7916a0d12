// Package trackpool provides pooled, position-aware access to genomic
// annotation tracks.
//
// A track is a file of records placed on a reference (BED, JSON lines). Many
// readers want to walk the same track at different places at once, and
// opening a fresh reader for every request is expensive, so every track is
// served by a pool of positioned iterators. A request names the region it
// wants; the pool hands back the iterator that can reach it most cheaply,
// creating one only when nothing reusable exists.
//
// # Architecture
//
// Two storage kinds back a track:
//
//   - stream: one forward-only reader over the whole file (compressed files,
//     standard input). Requests must move forward; a short flashback history
//     allows rewinding within what was already read.
//   - indexed: a plain file with a sidecar interval index (.tpi). Any number
//     of iterators may be open, each bounded to its query.
//
// Packages:
//
//   - pkg/pool: the generic resource pool (segments, leases, selection)
//   - pkg/track: track sources, stream and index policies, iterators
//   - pkg/genome: sequence dictionaries and 1-based locations
//   - pkg/codec: line codecs and compressed stream readers
//   - pkg/index: interval index build, sidecar persistence, cache, queries
//   - pkg/builder: turns configuration into ready track sources
//   - internal/traversal: walks the reference shard by shard over all tracks
//
// # Quick Start
//
//	tracks:
//	  - name: calls
//	    format: bed
//	    path: calls.bed
//	traversal:
//	  shard_size: 1000000
//
//	trackpool index calls.bed --format bed
//	trackpool run --config tracks.yaml --workers 8 --names
//
// Each result line reports the distinct records and covered sites one track
// holds over one shard.
package trackpool
