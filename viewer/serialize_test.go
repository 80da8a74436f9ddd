package viewer

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestSerializationFormat(t *testing.T) {
	for _, compress := range []Compression{Uncompressed, Snappy, Zstd} {
		for _, checksum := range []Checksum{NoChecksum, CRC32} {
			format := EncodeSerializationFormat(compress, checksum)
			gotCompress, gotChecksum := DecodeSerializationFormat(format)
			if gotCompress != compress || gotChecksum != checksum {
				t.Errorf("format byte round trip changed (%s, %s) to (%s, %s)\n",
					compress, checksum, gotCompress, gotChecksum)
			}
		}
	}
}

func TestSerializeDeserialize(t *testing.T) {
	rnd := rand.New(rand.NewSource(17))
	data := make([]byte, 10000)
	for i := range data {
		// Compressible structure with noise mixed in.
		if i%3 == 0 {
			data[i] = byte(rnd.Intn(256))
		} else {
			data[i] = 42
		}
	}

	for _, compress := range []Compression{Uncompressed, Snappy, Zstd} {
		for _, checksum := range []Checksum{NoChecksum, CRC32} {
			s, err := SerializeData(data, compress, checksum)
			if err != nil {
				t.Fatalf("unable to serialize with (%s, %s): %v\n", compress, checksum, err)
			}
			got, gotCompress, err := DeserializeData(s, true)
			if err != nil {
				t.Fatalf("unable to deserialize with (%s, %s): %v\n", compress, checksum, err)
			}
			if gotCompress != compress {
				t.Errorf("deserialization reported %s, expected %s\n", gotCompress, compress)
			}
			if !bytes.Equal(got, data) {
				t.Fatalf("round trip with (%s, %s) corrupted data\n", compress, checksum)
			}
		}
	}
}

func TestSerializeEmpty(t *testing.T) {
	s, err := SerializeData(nil, Zstd, CRC32)
	if err != nil {
		t.Fatalf("unable to serialize empty data: %v\n", err)
	}
	got, _, err := DeserializeData(s, true)
	if err != nil {
		t.Fatalf("unable to deserialize empty data: %v\n", err)
	}
	if len(got) != 0 {
		t.Errorf("empty round trip produced %d bytes\n", len(got))
	}
}

func TestChecksumDetectsCorruption(t *testing.T) {
	data := []byte("segmentation snapshot payload")
	s, err := SerializeData(data, Snappy, CRC32)
	if err != nil {
		t.Fatalf("unable to serialize: %v\n", err)
	}
	// Flip a payload bit past the format and checksum header.
	s[len(s)-1] ^= 0x80
	if _, _, err := DeserializeData(s, true); err == nil {
		t.Errorf("corrupted data deserialized without error\n")
	}
}
