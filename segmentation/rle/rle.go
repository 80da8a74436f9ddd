/*
	Package rle implements the run-length codecs used to persist
	segmentation masks: a binary codec for one class against the rest,
	and a label codec for full multi-class snapshots.  Both codecs
	allocate proportional to run count, not voxel count, and round-trip
	exactly.
*/
package rle

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// BinaryMask is the run-length encoding of a 0/1 voxel sequence in scan
// order.  Only the first run's bit is stored; runs alternate thereafter.
type BinaryMask struct {
	NumVoxels  int64   `json:"numVoxels"`
	StartsWith uint8   `json:"startsWith"` // bit of the first run, 0 or 1
	Runs       []int64 `json:"runs"`
}

// EncodeBinaryMaskBits encodes a bit array (any nonzero byte counts as 1).
func EncodeBinaryMaskBits(bits []uint8) BinaryMask {
	m := BinaryMask{NumVoxels: int64(len(bits))}
	if len(bits) == 0 {
		return m
	}
	cur := bits[0] != 0
	if cur {
		m.StartsWith = 1
	}
	run := int64(1)
	for _, b := range bits[1:] {
		if (b != 0) == cur {
			run++
			continue
		}
		m.Runs = append(m.Runs, run)
		cur = !cur
		run = 1
	}
	m.Runs = append(m.Runs, run)
	return m
}

// OneCount returns the number of set voxels in the encoded mask.
func (m BinaryMask) OneCount() int64 {
	var ones int64
	bit := m.StartsWith != 0
	for _, run := range m.Runs {
		if bit {
			ones += run
		}
		bit = !bit
	}
	return ones
}

// Decode expands the mask back to one byte per voxel (0 or 1).
func (m BinaryMask) Decode() ([]uint8, error) {
	var total int64
	for i, run := range m.Runs {
		if run < 0 {
			return nil, fmt.Errorf("binary mask run %d has negative length %d", i, run)
		}
		total += run
	}
	if total != m.NumVoxels {
		return nil, fmt.Errorf("binary mask runs cover %d voxels, expected %d", total, m.NumVoxels)
	}
	bits := make([]uint8, m.NumVoxels)
	bit := m.StartsWith != 0
	var pos int64
	for _, run := range m.Runs {
		if bit {
			for i := int64(0); i < run; i++ {
				bits[pos+i] = 1
			}
		}
		pos += run
		bit = !bit
	}
	return bits, nil
}

// LabelChunk is the run-length encoding of an arbitrary label sequence:
// parallel arrays of run values and run lengths.
type LabelChunk struct {
	Values  []uint16 `json:"values"`
	Lengths []int64  `json:"lengths"`
}

// EncodeLabelValues encodes a label sequence.
func EncodeLabelValues(values []uint16) LabelChunk {
	var c LabelChunk
	if len(values) == 0 {
		return c
	}
	cur := values[0]
	run := int64(1)
	for _, v := range values[1:] {
		if v == cur {
			run++
			continue
		}
		c.Values = append(c.Values, cur)
		c.Lengths = append(c.Lengths, run)
		cur = v
		run = 1
	}
	c.Values = append(c.Values, cur)
	c.Lengths = append(c.Lengths, run)
	return c
}

// NumVoxels returns the total voxel count covered by the chunk's runs.
func (c LabelChunk) NumVoxels() int64 {
	var n int64
	for _, run := range c.Lengths {
		n += run
	}
	return n
}

// Decode expands the chunk back to one value per voxel.  Zero-length runs
// are a no-op, not an error.
func (c LabelChunk) Decode() ([]uint16, error) {
	if len(c.Values) != len(c.Lengths) {
		return nil, fmt.Errorf("label chunk has %d values but %d lengths", len(c.Values), len(c.Lengths))
	}
	for i, run := range c.Lengths {
		if run < 0 {
			return nil, fmt.Errorf("label chunk run %d has negative length %d", i, run)
		}
	}
	out := make([]uint16, c.NumVoxels())
	var pos int64
	for i, run := range c.Lengths {
		v := c.Values[i]
		for j := int64(0); j < run; j++ {
			out[pos+j] = v
		}
		pos += run
	}
	return out, nil
}

// ForEachRun calls fn for every non-empty run with the run's starting
// offset in decoded voxel order.  This is the partial-decode primitive:
// chunked restores walk runs instead of materializing whole tiles.
func (c LabelChunk) ForEachRun(fn func(start int64, length int64, value uint16)) error {
	if len(c.Values) != len(c.Lengths) {
		return fmt.Errorf("label chunk has %d values but %d lengths", len(c.Values), len(c.Lengths))
	}
	var pos int64
	for i, run := range c.Lengths {
		if run < 0 {
			return fmt.Errorf("label chunk run %d has negative length %d", i, run)
		}
		if run > 0 {
			fn(pos, run, c.Values[i])
		}
		pos += run
	}
	return nil
}

// DecodeRange decodes the sub-region [offset, offset+len(dst)) of the
// chunk's voxel sequence into dst.
func (c LabelChunk) DecodeRange(dst []uint16, offset int64) error {
	if offset < 0 {
		return fmt.Errorf("negative decode offset %d", offset)
	}
	end := offset + int64(len(dst))
	if total := c.NumVoxels(); end > total {
		return fmt.Errorf("decode range [%d,%d) exceeds %d encoded voxels", offset, end, total)
	}
	return c.ForEachRun(func(start, length int64, v uint16) {
		lo, hi := start, start+length
		if lo < offset {
			lo = offset
		}
		if hi > end {
			hi = end
		}
		for i := lo; i < hi; i++ {
			dst[i-offset] = v
		}
	})
}

// MarshalBinary fulfills the encoding.BinaryMarshaler interface.
func (m BinaryMask) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, m.NumVoxels); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, m.StartsWith); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, int32(len(m.Runs))); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, m.Runs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary fulfills the encoding.BinaryUnmarshaler interface.
func (m *BinaryMask) UnmarshalBinary(b []byte) error {
	buf := bytes.NewBuffer(b)
	if err := binary.Read(buf, binary.LittleEndian, &m.NumVoxels); err != nil {
		return err
	}
	if err := binary.Read(buf, binary.LittleEndian, &m.StartsWith); err != nil {
		return err
	}
	var numRuns int32
	if err := binary.Read(buf, binary.LittleEndian, &numRuns); err != nil {
		return err
	}
	if numRuns < 0 {
		return fmt.Errorf("binary mask encoding declares %d runs", numRuns)
	}
	m.Runs = make([]int64, numRuns)
	return binary.Read(buf, binary.LittleEndian, &m.Runs)
}

// MarshalBinary fulfills the encoding.BinaryMarshaler interface.
func (c LabelChunk) MarshalBinary() ([]byte, error) {
	if len(c.Values) != len(c.Lengths) {
		return nil, fmt.Errorf("label chunk has %d values but %d lengths", len(c.Values), len(c.Lengths))
	}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, int32(len(c.Values))); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, c.Values); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, c.Lengths); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary fulfills the encoding.BinaryUnmarshaler interface.
func (c *LabelChunk) UnmarshalBinary(b []byte) error {
	buf := bytes.NewBuffer(b)
	var numRuns int32
	if err := binary.Read(buf, binary.LittleEndian, &numRuns); err != nil {
		return err
	}
	if numRuns < 0 {
		return fmt.Errorf("label chunk encoding declares %d runs", numRuns)
	}
	c.Values = make([]uint16, numRuns)
	if err := binary.Read(buf, binary.LittleEndian, &c.Values); err != nil {
		return err
	}
	c.Lengths = make([]int64, numRuns)
	return binary.Read(buf, binary.LittleEndian, &c.Lengths)
}
