// Package session provides the session resumption cache attached to
// compiled server contexts.
//
// The cache is an opaque key/value store from the core's point of view:
// the engine decides what goes in. Two backends exist, selected by the
// session_cache configuration spec ("none", "memory:<n>",
// "sqlite:<path>"):
//
//   - MemoryCache: bounded LRU map
//   - SQLiteCache: file-backed, survives restarts
//
// Both are independently synchronized; every other structure in the
// core is read-only after startup.
package session
