// Package htriedb is the public façade: it wires pkg/region,
// pkg/blockalloc, pkg/dcache, and pkg/htrie into a single Open/Close
// handle, mirroring the teacher's Cache façade over its own mmap-backed
// format.
package htriedb
