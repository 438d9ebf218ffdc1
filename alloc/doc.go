// Package alloc provides aligned buffer allocators for bulk file loads.
//
// Both allocators track every live buffer by the address of its first byte, so a
// buffer is freed exactly once and buffers the allocator never produced are
// rejected. Aligned allocates a fresh block per call; Pool recycles blocks of a few
// fixed size classes to reduce allocations for workloads that load many small
// files.
package alloc
