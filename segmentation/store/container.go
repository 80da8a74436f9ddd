package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/RioBao/CTViewerV2-sub000/viewer"
)

// WriteSnapshotFile persists a snapshot as checksummed, compressed JSON.
func WriteSnapshotFile(filename string, snap *Snapshot, compress viewer.Compression) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("could not marshal snapshot %s: %v", snap.ID, err)
	}
	serialized, err := viewer.SerializeData(data, compress, viewer.CRC32)
	if err != nil {
		return fmt.Errorf("could not serialize snapshot %s: %v", snap.ID, err)
	}
	if err := os.WriteFile(filename, serialized, 0644); err != nil {
		return fmt.Errorf("could not write snapshot file %q: %v", filename, err)
	}
	viewer.Infof("Wrote snapshot %s to %q: %s raw, %s on disk\n", snap.ID, filename,
		humanize.Bytes(uint64(len(data))), humanize.Bytes(uint64(len(serialized))))
	return nil
}

// ReadSnapshotFile loads a snapshot written by WriteSnapshotFile.  The
// checksum is verified before the JSON is decoded.
func ReadSnapshotFile(filename string) (*Snapshot, error) {
	serialized, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read snapshot file %q: %v", filename, err)
	}
	data, _, err := viewer.DeserializeData(serialized, true)
	if err != nil {
		return nil, fmt.Errorf("could not deserialize snapshot file %q: %v", filename, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("could not unmarshal snapshot file %q: %v", filename, err)
	}
	if snap.Format != SnapshotFormat {
		return nil, fmt.Errorf("snapshot file %q has format %q, expected %q",
			filename, snap.Format, SnapshotFormat)
	}
	return &snap, nil
}
