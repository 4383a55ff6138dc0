package ocsp

import (
	"fmt"
	"strings"
)

// Open creates a response cache from a backend spec string:
//
//	"memory"          in-process cache
//	"sqlite:<path>"   persisted in a SQLite file
func Open(spec string) (Cache, error) {
	kind, arg := spec, ""
	if i := strings.IndexByte(spec, ':'); i >= 0 {
		kind, arg = spec[:i], spec[i+1:]
	}

	switch kind {
	case "", "memory":
		return NewMemoryCache(), nil
	case "sqlite":
		return NewSQLiteCache(arg)
	default:
		return nil, fmt.Errorf("unknown ocsp cache backend %q", kind)
	}
}
