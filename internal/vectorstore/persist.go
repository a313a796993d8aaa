package vectorstore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// Vector artifact layout, little-endian:
//
//	magic "FXVI" | version uint16 | dim uint32 | count uint32 | count*dim float32
//
// The fixed header makes the exact file size computable, so truncated and
// padded files are both detectable on load.
var vectorMagic = [4]byte{'F', 'X', 'V', 'I'}

const (
	vectorFormatVersion = uint16(1)
	vectorHeaderSize    = 14
)

// Save writes the vector array and metadata mapping into dir as the index's
// two paired artifacts. Each file is written to a temp path and renamed so
// a crash never leaves a half-written artifact behind.
func (ix *FlatIndex[M]) Save(dir string) error {
	if !ix.built {
		return ErrNotInitialized
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if err := writeAtomic(filepath.Join(dir, ix.artifacts.Vectors), ix.encodeVectors()); err != nil {
		return err
	}
	mapping, err := ix.encodeMapping()
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, ix.artifacts.Mapping), mapping)
}

// Load reads both artifacts from dir into a fresh index. The two must
// agree on cardinality; a mismatch, truncation or malformed mapping fails
// with ErrStore rather than loading a partial collection.
func Load[M any](dim int, artifacts Artifacts, dir string) (*FlatIndex[M], error) {
	ix, err := New[M](dim, artifacts)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(filepath.Join(dir, artifacts.Vectors))
	if err != nil {
		return nil, fmt.Errorf("%w: reading vectors: %v", ErrStore, err)
	}
	vectors, count, err := decodeVectors(raw, dim)
	if err != nil {
		return nil, err
	}

	rawMapping, err := os.ReadFile(filepath.Join(dir, artifacts.Mapping))
	if err != nil {
		return nil, fmt.Errorf("%w: reading mapping: %v", ErrStore, err)
	}
	meta, err := decodeMapping[M](rawMapping, count)
	if err != nil {
		return nil, err
	}

	ix.vectors = vectors
	ix.meta = meta
	ix.built = true
	return ix, nil
}

func (ix *FlatIndex[M]) encodeVectors() []byte {
	buf := make([]byte, vectorHeaderSize, vectorHeaderSize+len(ix.vectors)*4)
	copy(buf[0:4], vectorMagic[:])
	binary.LittleEndian.PutUint16(buf[4:6], vectorFormatVersion)
	binary.LittleEndian.PutUint32(buf[6:10], uint32(ix.dim))
	binary.LittleEndian.PutUint32(buf[10:14], uint32(len(ix.meta)))
	for _, v := range ix.vectors {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

func decodeVectors(raw []byte, dim int) ([]float32, int, error) {
	if len(raw) < vectorHeaderSize {
		return nil, 0, fmt.Errorf("%w: vector artifact too short (%d bytes)", ErrStore, len(raw))
	}
	if !bytes.Equal(raw[0:4], vectorMagic[:]) {
		return nil, 0, fmt.Errorf("%w: bad magic %q", ErrStore, raw[0:4])
	}
	if v := binary.LittleEndian.Uint16(raw[4:6]); v != vectorFormatVersion {
		return nil, 0, fmt.Errorf("%w: unsupported format version %d", ErrStore, v)
	}
	storedDim := int(binary.LittleEndian.Uint32(raw[6:10]))
	if storedDim != dim {
		return nil, 0, fmt.Errorf("%w: artifact has dimension %d, index configured for %d", ErrDimensionMismatch, storedDim, dim)
	}
	count := int(binary.LittleEndian.Uint32(raw[10:14]))
	want := vectorHeaderSize + count*dim*4
	if len(raw) != want {
		return nil, 0, fmt.Errorf("%w: vector artifact is %d bytes, header implies %d", ErrStore, len(raw), want)
	}
	vectors := make([]float32, count*dim)
	for i := range vectors {
		off := vectorHeaderSize + i*4
		vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off : off+4]))
	}
	return vectors, count, nil
}

// encodeMapping writes a JSON object whose keys are base-10 slot strings in
// ascending slot order.
func (ix *FlatIndex[M]) encodeMapping() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for slot, m := range ix.meta {
		if slot > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:", strconv.Itoa(slot))
		record, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding metadata for slot %d: %v", ErrStore, slot, err)
		}
		buf.Write(record)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decodeMapping rebuilds the slot-ordered metadata slice. Slots must be
// exactly 0..count-1; anything missing, extra or non-numeric is corruption.
func decodeMapping[M any](raw []byte, count int) ([]M, error) {
	var byID map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byID); err != nil {
		return nil, fmt.Errorf("%w: parsing mapping: %v", ErrStore, err)
	}
	if len(byID) != count {
		return nil, fmt.Errorf("%w: mapping has %d records, vector artifact has %d", ErrStore, len(byID), count)
	}
	meta := make([]M, count)
	for slot := 0; slot < count; slot++ {
		record, ok := byID[strconv.Itoa(slot)]
		if !ok {
			return nil, fmt.Errorf("%w: mapping is missing slot %d", ErrStore, slot)
		}
		if err := json.Unmarshal(record, &meta[slot]); err != nil {
			return nil, fmt.Errorf("%w: decoding metadata for slot %d: %v", ErrStore, slot, err)
		}
	}
	return meta, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}
