// Package region owns the memory-mapped backing file for an htriedb
// database: creation, the fixed header, and the mapping itself.
//
// A Region exposes its mapping as a single contiguous []byte (the "arena")
// that pkg/htrie addresses by byte offset and pkg/blockalloc carves extents
// out of. Persistence across process restarts is limited to header
// validation — recovering in-flight writes after a crash is out of scope,
// matching spec.md's explicit exclusion of "persistence/recovery".
package region
