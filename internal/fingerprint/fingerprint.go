package fingerprint

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/pgschema/viewmig/internal/ir"
)

// Fingerprint is a content hash of migration operations or recorded state
type Fingerprint struct {
	Hash string `json:"hash"` // SHA256 of the JSON encoding
}

// ComputeFingerprint generates a fingerprint for a list of operations. It is
// stored as the checksum of a history record.
func ComputeFingerprint(ops []ir.Operation) (*Fingerprint, error) {
	if ops == nil {
		ops = []ir.Operation{}
	}
	hash, err := hashObject(ops)
	if err != nil {
		return nil, fmt.Errorf("failed to compute operations hash: %w", err)
	}
	return &Fingerprint{Hash: hash}, nil
}

// StateFingerprint generates a fingerprint of every recorded view state,
// ordered by table and engine
func StateFingerprint(states *ir.StateSet) (*Fingerprint, error) {
	ordered := make([]ir.RecordedState, 0, states.Len())
	for _, key := range states.Keys() {
		st, ok := states.Lookup(key.Table, key.Engine)
		if !ok {
			continue
		}
		ordered = append(ordered, *st)
	}

	hash, err := hashObject(ordered)
	if err != nil {
		return nil, fmt.Errorf("failed to compute state hash: %w", err)
	}
	return &Fingerprint{Hash: hash}, nil
}

// hashObject computes a SHA256 hash of any object
func hashObject(obj interface{}) (string, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}

// String returns a human-readable representation of the fingerprint
func (f *Fingerprint) String() string {
	if len(f.Hash) >= 8 {
		return fmt.Sprintf("Fingerprint: %s", f.Hash[:8])
	}
	return fmt.Sprintf("Fingerprint: %s", f.Hash)
}
