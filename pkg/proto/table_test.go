package proto_test

import (
	"testing"

	"github.com/TaIos/mod-tls/internal/enginetest"
	"github.com/TaIos/mod-tls/pkg/proto"
)

func newTable(t *testing.T) *proto.Table {
	t.Helper()
	return proto.NewTable(enginetest.NewEngine(nil))
}

func TestVersionsAtLeast(t *testing.T) {
	table := newTable(t)

	tests := []struct {
		name string
		min  uint16
		want []uint16
	}{
		{"zero returns everything ascending", 0, []uint16{0x0303, 0x0304}},
		{"floor at 1.2", proto.VersionTLS12, []uint16{0x0303, 0x0304}},
		{"floor at 1.3", proto.VersionTLS13, []uint16{0x0304}},
		{"floor above everything", 0x0305, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := table.VersionsAtLeast(tt.min)
			if len(got) != len(tt.want) {
				t.Fatalf("VersionsAtLeast(0x%04x) = %v, want %v", tt.min, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("VersionsAtLeast(0x%04x)[%d] = 0x%04x, want 0x%04x", tt.min, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{"", 0, false},
		{"auto", 0, false},
		{"1.2", proto.VersionTLS12, false},
		{"TLSv1.3", proto.VersionTLS13, false},
		{"tls1.2", proto.VersionTLS12, false},
		{"0x0304", proto.VersionTLS13, false},
		{"1.1", 0, true},
		{"bogus", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := proto.ParseVersion(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVersion(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseVersion(%q) = 0x%04x, want 0x%04x", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseCipher(t *testing.T) {
	table := newTable(t)

	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{"TLS_AES_128_GCM_SHA256", 0x1301, false},
		{"tls_aes_256_gcm_sha384", 0x1302, false},
		{"0x1301", 0x1301, false},
		{"TLS_NOT_A_SUITE", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := table.ParseCipher(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCipher(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCipher(%q) = 0x%04x, want 0x%04x", tt.in, got, tt.want)
			}
		})
	}
}

func TestRemoveAndContains(t *testing.T) {
	in := []uint16{1, 2, 3, 4}
	got := proto.Remove(in, []uint16{2, 4})
	want := []uint16{1, 3}
	if len(got) != len(want) {
		t.Fatalf("Remove = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("Remove[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if !proto.Contains(in, 3) {
		t.Error("Contains(in, 3) = false, want true")
	}
	if proto.Contains(got, 2) {
		t.Error("Contains(got, 2) = true, want false")
	}
}

func TestCipherNameFallback(t *testing.T) {
	table := newTable(t)
	if name := table.CipherName(0xffff); name == "" {
		t.Error("CipherName for unknown id returned empty string")
	}
	if !table.SupportsCipher(0x1301) {
		t.Error("SupportsCipher(0x1301) = false, want true")
	}
	if table.SupportsCipher(0xffff) {
		t.Error("SupportsCipher(0xffff) = true, want false")
	}
}
