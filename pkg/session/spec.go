package session

import (
	"fmt"
	"strconv"
	"strings"
)

// Open creates a session cache from a backend spec string:
//
//	"none"            no resumption
//	"default"         in-memory with the default capacity
//	"memory:<n>"      in-memory, at most n sessions
//	"sqlite:<path>"   persisted in a SQLite file
//
// A nil cache means resumption is disabled.
func Open(spec string) (Cache, error) {
	kind, arg := spec, ""
	if i := strings.IndexByte(spec, ':'); i >= 0 {
		kind, arg = spec[:i], spec[i+1:]
	}

	switch kind {
	case "", "none":
		return nil, nil
	case "default":
		return NewMemoryCache(0), nil
	case "memory":
		maxEntries := 0
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil {
				return nil, fmt.Errorf("invalid memory cache size %q: %w", arg, err)
			}
			maxEntries = n
		}
		return NewMemoryCache(maxEntries), nil
	case "sqlite":
		return NewSQLiteCache(arg)
	default:
		return nil, fmt.Errorf("unknown session cache backend %q", kind)
	}
}
