package store

import "sync"

// Key prefixes.
const (
	sessionPrefix       = "session:"
	snapshotPrefix      = "snapshot:"
	sessionByRolePrefix = "idx:sessions:role:"
)

// keyPool provides reusable byte slices for building database keys.
var keyPool = sync.Pool{
	New: func() any {
		// Prefix plus a 21-character NanoID with room to spare.
		return make([]byte, 0, 64)
	},
}

// buildKey constructs a database key from prefix and suffix using a pooled buffer.
// The returned slice is valid until releaseKey is called.
func buildKey(prefix, suffix string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, suffix...)
	return buf
}

// buildRoleIndexKey constructs idx:sessions:role:<role>:<id>.
func buildRoleIndexKey(role, sessionID string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, sessionByRolePrefix...)
	buf = append(buf, role...)
	buf = append(buf, ':')
	buf = append(buf, sessionID...)
	return buf
}

// releaseKey returns a key buffer to the pool for reuse.
func releaseKey(key []byte) {
	if cap(key) <= 256 {
		keyPool.Put(key[:0]) //nolint:staticcheck // slice header allocation is acceptable here
	}
}
