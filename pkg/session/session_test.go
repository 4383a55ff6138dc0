package session

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache(4)

	if _, ok := c.Get("absent"); ok {
		t.Error("Get on empty cache reported a hit")
	}
	if err := c.Put("k1", []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := c.Get("k1")
	if !ok || !bytes.Equal(got, []byte("v1")) {
		t.Fatalf("Get(k1) = %q, %v", got, ok)
	}

	// overwrite keeps a single entry
	if err := c.Put("k1", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.Get("k1"); !bytes.Equal(got, []byte("v2")) {
		t.Errorf("Get after overwrite = %q", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}

	c.Remove("k1")
	if _, ok := c.Get("k1"); ok {
		t.Error("Get after Remove reported a hit")
	}
}

func TestMemoryCacheEvictsLRU(t *testing.T) {
	c := NewMemoryCache(3)
	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("k%d", i), []byte{byte(i)})
	}

	// touch k0 so k1 becomes the eviction candidate
	c.Get("k0")
	c.Put("k3", []byte{3})

	if _, ok := c.Get("k1"); ok {
		t.Error("least recently used entry survived eviction")
	}
	for _, key := range []string{"k0", "k2", "k3"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("entry %s evicted, want kept", key)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
}

func TestSQLiteCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	c, err := NewSQLiteCache(path)
	if err != nil {
		t.Fatalf("NewSQLiteCache: %v", err)
	}
	defer c.Close()

	if err := c.Put("session-a", []byte("ticket-a")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := c.Get("session-a")
	if !ok || !bytes.Equal(got, []byte("ticket-a")) {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	c.Remove("session-a")
	if _, ok := c.Get("session-a"); ok {
		t.Error("Get after Remove reported a hit")
	}
}

func TestOpenSpecs(t *testing.T) {
	tests := []struct {
		spec    string
		wantNil bool
		wantErr bool
	}{
		{"none", true, false},
		{"", true, false},
		{"default", false, false},
		{"memory", false, false},
		{"memory:128", false, false},
		{"memory:not-a-number", false, true},
		{"redis:localhost", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			c, err := Open(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if (c == nil) != tt.wantNil {
				t.Errorf("Open(%q) = %v, wantNil %v", tt.spec, c, tt.wantNil)
			}
			if c != nil {
				c.Close()
			}
		})
	}
}
