package opon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("opon: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot is a portable copy of the recorder taken at a point in time.
type Snapshot struct {
	ReportID    string  `cbor:"1,keyasint"`
	CreatedUnix int64   `cbor:"2,keyasint"`
	Cause       string  `cbor:"3,keyasint,omitempty"`
	Size        string  `cbor:"4,keyasint"`
	MemoryUsed  int     `cbor:"5,keyasint"`
	Capacity    int     `cbor:"6,keyasint"`
	Events      []Event `cbor:"7,keyasint"`
}

// Snapshot captures the current recorder state under a fresh report id.
func (o *Opon) Snapshot(cause string) *Snapshot {
	return &Snapshot{
		ReportID:    uuid.New().String(),
		CreatedUnix: time.Now().Unix(),
		Cause:       cause,
		Size:        o.size.String(),
		MemoryUsed:  o.MemoryUsed(),
		Capacity:    o.capacity,
		Events:      o.History(),
	}
}

// MarshalSnapshot serializes a Snapshot to canonical CBOR.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// WriteSnapshot stores a snapshot of o as dir/opon-<report id>.cbor and
// returns the file path.
func (o *Opon) WriteSnapshot(dir, cause string) (string, error) {
	snap := o.Snapshot(cause)
	data, err := MarshalSnapshot(snap)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "opon-"+snap.ReportID+".cbor")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("opon: unmarshal snapshot: %w", err)
	}
	return &s, nil
}
