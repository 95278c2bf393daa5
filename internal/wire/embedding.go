// Package wire implements the on-disk encodings mandated by the persisted
// state layout: little-endian float32 embedding blobs prefixed by a 4-byte
// dimension field, and the JSON metadata schemas for the model cache and
// device-profile cache. Byte order is fixed across platforms.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// EncodeEmbedding writes dim (uint32 LE) followed by len(vec) float32 LE
// values, matching "little-endian IEEE-754 float32 for embedding blobs,
// prefixed by a 4-byte dim field".
func EncodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4+4*len(vec))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(vec)))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4+4*i:8+4*i], float32bits(v))
	}
	return buf
}

// DecodeEmbedding parses a blob produced by EncodeEmbedding. It returns an
// error if the declared dimension doesn't match the remaining byte count.
func DecodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob) < 4 {
		return nil, fmt.Errorf("wire: embedding blob too short: %d bytes", len(blob))
	}
	dim := binary.LittleEndian.Uint32(blob[0:4])
	want := 4 + 4*int(dim)
	if len(blob) != want {
		return nil, fmt.Errorf("wire: embedding blob length mismatch: dim=%d expects %d bytes, got %d", dim, want, len(blob))
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = float32frombits(binary.LittleEndian.Uint32(blob[4+4*i : 8+4*i]))
	}
	return vec, nil
}

// WriteEmbedding streams EncodeEmbedding's output to w.
func WriteEmbedding(w io.Writer, vec []float32) error {
	_, err := w.Write(EncodeEmbedding(vec))
	return err
}

// ReadEmbedding reads exactly one embedding blob from r, using the leading
// dimension field to know how much to read.
func ReadEmbedding(r io.Reader) ([]float32, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	dim := binary.LittleEndian.Uint32(header[:])
	body := make([]byte, 4*dim)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = float32frombits(binary.LittleEndian.Uint32(body[4*i : 4*i+4]))
	}
	return vec, nil
}
