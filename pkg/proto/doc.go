// Package proto holds the protocol capability table: the TLS versions
// and cipher suites the engine supports, their names, and the helpers
// the policy compiler uses to order, filter, and render them.
//
// The table is built once at startup from the engine enumeration and is
// read-only afterwards, safe for unsynchronized concurrent reads.
package proto
