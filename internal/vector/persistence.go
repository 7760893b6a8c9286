package vector

import (
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
)

// Index file layout: 4-byte magic, format version (4), type tag length (4) and
// bytes, then the gob-encoded index structure. The tag lets ReadIndex rebuild
// the right concrete type from a single opaque file.
var indexMagic = [4]byte{'K', 'I', 'D', 'X'}

const indexFormatVersion uint32 = 1

// TypeOf returns the index type string for a concrete index.
func TypeOf(idx Index) string {
	switch idx.(type) {
	case *FlatIndex:
		return TypeFlat
	case *IVFFlatIndex:
		return TypeIVFFlat
	case *IVFPQIndex:
		return TypeIVFPQ
	case *HNSWIndex:
		return TypeHNSW
	default:
		return ""
	}
}

// WriteIndex serializes idx to w.
func WriteIndex(w io.Writer, idx Index) error {
	tag := TypeOf(idx)
	if tag == "" {
		return fmt.Errorf("vector: cannot serialize index of type %T", idx)
	}
	if _, err := w.Write(indexMagic[:]); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, indexFormatVersion); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(tag))); err != nil {
		return fmt.Errorf("write type tag length: %w", err)
	}
	if _, err := w.Write([]byte(tag)); err != nil {
		return fmt.Errorf("write type tag: %w", err)
	}
	if err := gob.NewEncoder(w).Encode(idx); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	return nil
}

// ReadIndex deserializes an index written by WriteIndex.
func ReadIndex(r io.Reader) (Index, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != indexMagic {
		return nil, fmt.Errorf("vector: not an index file")
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version != indexFormatVersion {
		return nil, fmt.Errorf("vector: unsupported index format version %d", version)
	}
	var tagLen uint32
	if err := binary.Read(r, binary.LittleEndian, &tagLen); err != nil {
		return nil, fmt.Errorf("read type tag length: %w", err)
	}
	tagBytes := make([]byte, tagLen)
	if _, err := io.ReadFull(r, tagBytes); err != nil {
		return nil, fmt.Errorf("read type tag: %w", err)
	}

	dec := gob.NewDecoder(r)
	switch string(tagBytes) {
	case TypeFlat:
		idx := &FlatIndex{}
		if err := dec.Decode(idx); err != nil {
			return nil, fmt.Errorf("decode flat index: %w", err)
		}
		return idx, nil
	case TypeIVFFlat:
		idx := &IVFFlatIndex{}
		if err := dec.Decode(idx); err != nil {
			return nil, fmt.Errorf("decode ivfflat index: %w", err)
		}
		return idx, nil
	case TypeIVFPQ:
		idx := &IVFPQIndex{}
		if err := dec.Decode(idx); err != nil {
			return nil, fmt.Errorf("decode ivfpq index: %w", err)
		}
		return idx, nil
	case TypeHNSW:
		idx := &HNSWIndex{}
		if err := dec.Decode(idx); err != nil {
			return nil, fmt.Errorf("decode hnsw index: %w", err)
		}
		idx.ensureRng()
		return idx, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedIndexType, string(tagBytes))
	}
}
