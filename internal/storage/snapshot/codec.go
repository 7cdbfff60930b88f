package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// Magic bytes identify snapshot record frames.
var magicBytes = []byte("WSNAPREC")

const (
	checksumSize = sha256.Size
	frameVersion = 1
)

// Frame errors.
var (
	ErrInvalidMagic       = errors.New("snapshot: invalid magic bytes")
	ErrChecksumMismatch   = errors.New("snapshot: checksum mismatch")
	ErrTruncated          = errors.New("snapshot: truncated frame")
	ErrUnsupportedVersion = errors.New("snapshot: unsupported frame version")
)

type frameHeader struct {
	Version   int    `json:"version"`
	SessionID string `json:"session_id"`
	CreatedAt int64  `json:"created_at"`
	FileCount int    `json:"file_count"`
	Encrypted bool   `json:"encrypted"`
	Algorithm string `json:"algorithm,omitempty"`
}

// encodeFrame lays out magic, header, data and the SHA-256 trailer.
func encodeFrame(hdr frameHeader, data []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal header: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(magicBytes) + 8 + len(hdrJSON) + len(data) + checksumSize)
	buf.Write(magicBytes)

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(hdrJSON)))
	buf.Write(lenBuf[:])
	buf.Write(hdrJSON)

	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf.Write(lenBuf[:])
	buf.Write(data)

	sum := sha256.Sum256(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes(), nil
}

// decodeFrame verifies the checksum and splits the frame.
func decodeFrame(frame []byte) (frameHeader, []byte, error) {
	var hdr frameHeader

	if len(frame) < len(magicBytes)+8+checksumSize {
		return hdr, nil, ErrTruncated
	}

	body, trailer := frame[:len(frame)-checksumSize], frame[len(frame)-checksumSize:]
	sum := sha256.Sum256(body)
	if !bytes.Equal(sum[:], trailer) {
		return hdr, nil, ErrChecksumMismatch
	}
	if !bytes.Equal(body[:len(magicBytes)], magicBytes) {
		return hdr, nil, ErrInvalidMagic
	}
	rest := body[len(magicBytes):]

	hdrJSON, rest, err := readSection(rest)
	if err != nil {
		return hdr, nil, err
	}
	if len(hdrJSON) == 0 {
		return hdr, nil, fmt.Errorf("snapshot: empty header")
	}
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return hdr, nil, fmt.Errorf("snapshot: unmarshal header: %w", err)
	}
	if hdr.Version != frameVersion {
		return hdr, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, hdr.Version)
	}

	data, rest, err := readSection(rest)
	if err != nil {
		return hdr, nil, err
	}
	if len(rest) != 0 {
		return hdr, nil, fmt.Errorf("snapshot: %d trailing bytes", len(rest))
	}
	return hdr, data, nil
}

// decodeHeader verifies a frame and returns only its header.
func decodeHeader(frame []byte) (frameHeader, error) {
	hdr, _, err := decodeFrame(frame)
	return hdr, err
}

func readSection(b []byte) (section, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, ErrTruncated
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint64(len(b)) < uint64(n) {
		return nil, nil, ErrTruncated
	}
	return b[:n], b[n:], nil
}
