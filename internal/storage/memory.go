package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// memoryBackupMagic prefixes MemoryEngine backup streams.
const memoryBackupMagic = "WSNAPKV1"

// MemoryEngine implements KVEngine with a map guarded by a RWMutex.
// Contents are lost on Close.
type MemoryEngine struct {
	mu     sync.RWMutex
	items  map[string][]byte
	closed bool
}

// NewMemoryEngine creates an empty in-memory engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{items: make(map[string][]byte)}
}

// Get retrieves a copy of the value stored under key.
func (m *MemoryEngine) Get(ctx context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.items[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(v), nil
}

// Set stores a copy of value under key.
func (m *MemoryEngine) Set(ctx context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.items[string(key)] = bytes.Clone(value)
	return nil
}

// Delete removes key.
func (m *MemoryEngine) Delete(ctx context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.items, string(key))
	return nil
}

// Scan visits keys with the given prefix in lexical order.
// fn runs on a consistent copy, so it may call back into the engine.
func (m *MemoryEngine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	type kv struct {
		k string
		v []byte
	}

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	p := string(prefix)
	matched := make([]kv, 0)
	for k, v := range m.items {
		if strings.HasPrefix(k, p) {
			matched = append(matched, kv{k, bytes.Clone(v)})
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].k < matched[j].k })
	for _, item := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn([]byte(item.k), item.v) {
			break
		}
	}
	return nil
}

// Backup writes all pairs as length-prefixed records after a magic header.
func (m *MemoryEngine) Backup(ctx context.Context, w io.Writer) error {
	var pairs [][2][]byte
	if err := m.Scan(ctx, nil, func(k, v []byte) bool {
		pairs = append(pairs, [2][]byte{k, v})
		return true
	}); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(memoryBackupMagic); err != nil {
		return err
	}
	var lenBuf [4]byte
	for _, p := range pairs {
		for _, b := range p {
			binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
			if _, err := bw.Write(lenBuf[:]); err != nil {
				return err
			}
			if _, err := bw.Write(b); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Load replaces all contents with a stream written by Backup.
func (m *MemoryEngine) Load(ctx context.Context, r io.Reader) error {
	br := bufio.NewReader(r)
	magic := make([]byte, len(memoryBackupMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return fmt.Errorf("memory: read backup magic: %w", err)
	}
	if string(magic) != memoryBackupMagic {
		return errors.New("memory: invalid backup magic")
	}

	items := make(map[string][]byte)
	for {
		key, err := readChunk(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("memory: read key: %w", err)
		}
		value, err := readChunk(br)
		if err != nil {
			return fmt.Errorf("memory: read value: %w", err)
		}
		items[string(key)] = value
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.items = items
	return nil
}

func readChunk(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	buf := make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

// GC is a no-op for the memory engine.
func (m *MemoryEngine) GC(ctx context.Context) (uint64, error) {
	return 0, nil
}

// Stats returns key count and summed key+value size.
func (m *MemoryEngine) Stats(ctx context.Context) (*KVStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	var size uint64
	for k, v := range m.items {
		size += uint64(len(k) + len(v))
	}
	return &KVStats{
		Engine:    "memory",
		TotalKeys: uint64(len(m.items)),
		TotalSize: size,
	}, nil
}

// Close drops all contents. Further calls return ErrClosed.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.items = nil
	return nil
}
