package engine

import (
	"crypto/rand"
	"os"
)

var emptyPeerID [20]byte

// GetOrCreatePeerID reads an existing peer ID from path or creates and
// persists a new random one. Persisting it gives the client a stable
// identity across restarts.
func GetOrCreatePeerID(path string) ([20]byte, error) {
	idb, err := os.ReadFile(path)
	if err == nil && len(idb) >= 20 {
		var out [20]byte
		copy(out[:], idb)
		return out, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return emptyPeerID, err
	}

	var out [20]byte
	if _, err := rand.Read(out[:]); err != nil {
		return emptyPeerID, err
	}
	if err := os.WriteFile(path, out[:], 0644); err != nil {
		return emptyPeerID, err
	}
	return out, nil
}
