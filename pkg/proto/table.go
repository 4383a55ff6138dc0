package proto

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/TaIos/mod-tls/pkg/engine"
)

// TLS protocol version ids (wire values).
const (
	VersionTLS12 uint16 = 0x0303
	VersionTLS13 uint16 = 0x0304
)

// Table is the protocol capability table: the versions and cipher
// suites the engine supports and their display names. Built once at
// startup from the engine enumeration, read-only afterwards.
type Table struct {
	versions []uint16
	ciphers  []uint16

	versionNames map[uint16]string
	cipherNames  map[uint16]string
	cipherIDs    map[string]uint16
}

// NewTable builds the capability table from the engine enumeration.
func NewTable(e engine.Engine) *Table {
	t := &Table{
		versions:     append([]uint16(nil), e.SupportedVersions()...),
		ciphers:      append([]uint16(nil), e.SupportedCiphers()...),
		versionNames: make(map[uint16]string),
		cipherNames:  make(map[uint16]string),
		cipherIDs:    make(map[string]uint16),
	}
	for _, v := range t.versions {
		t.versionNames[v] = e.VersionName(v)
	}
	for _, c := range t.ciphers {
		name := e.CipherName(c)
		t.cipherNames[c] = name
		t.cipherIDs[strings.ToUpper(name)] = c
	}
	return t
}

// SupportedVersions returns the supported protocol version ids,
// newest first.
func (t *Table) SupportedVersions() []uint16 {
	return append([]uint16(nil), t.versions...)
}

// SupportedCiphers returns the supported cipher suite ids in the
// engine's default preference order.
func (t *Table) SupportedCiphers() []uint16 {
	return append([]uint16(nil), t.ciphers...)
}

// SupportsCipher reports whether the engine implements the cipher.
func (t *Table) SupportsCipher(id uint16) bool {
	_, ok := t.cipherNames[id]
	return ok
}

// VersionsAtLeast returns the supported versions greater than or equal
// to min, in ascending order. An empty result means the floor cannot
// be satisfied.
func (t *Table) VersionsAtLeast(min uint16) []uint16 {
	var out []uint16
	for _, v := range t.versions {
		if v >= min {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// VersionName returns the display name for a version id.
func (t *Table) VersionName(id uint16) string {
	if name, ok := t.versionNames[id]; ok {
		return name
	}
	return fmt.Sprintf("TLS-0x%04x", id)
}

// CipherName returns the IANA name for a cipher suite id.
func (t *Table) CipherName(id uint16) string {
	if name, ok := t.cipherNames[id]; ok {
		return name
	}
	return fmt.Sprintf("TLS_CIPHER_0x%04x", id)
}

// CipherNames renders a cipher id list for logging.
func (t *Table) CipherNames(ids []uint16) string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, t.CipherName(id))
	}
	return strings.Join(names, ":")
}

// ParseCipher resolves a configured cipher, either an IANA name or a
// hex id such as "0x1301". Unknown-but-parseable ids are returned as
// is; the policy compiler decides whether they are preferred (warning)
// or suppressed (no-op).
func (t *Table) ParseCipher(s string) (uint16, error) {
	if id, ok := t.cipherIDs[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return id, nil
	}
	if v, ok := parseHexID(s); ok {
		return v, nil
	}
	return 0, fmt.Errorf("unknown cipher suite %q", s)
}

// ParseVersion resolves a configured minimum protocol version.
// Accepted forms: "1.2", "1.3", "TLSv1.2", "TLSv1.3", hex ids.
func ParseVersion(s string) (uint16, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "default":
		return 0, nil
	case "1.2", "v1.2", "tlsv1.2", "tls1.2":
		return VersionTLS12, nil
	case "1.3", "v1.3", "tlsv1.3", "tls1.3":
		return VersionTLS13, nil
	}
	if v, ok := parseHexID(s); ok {
		return v, nil
	}
	return 0, fmt.Errorf("unknown protocol version %q", s)
}

func parseHexID(s string) (uint16, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return 0, false
	}
	v, err := strconv.ParseUint(s[2:], 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}

// Remove returns the ids in list that are not in drop, keeping the
// relative order of list.
func Remove(list, drop []uint16) []uint16 {
	out := make([]uint16, 0, len(list))
	for _, id := range list {
		if !Contains(drop, id) {
			out = append(out, id)
		}
	}
	return out
}

// Contains reports whether the id list holds the given id.
func Contains(list []uint16, id uint16) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
