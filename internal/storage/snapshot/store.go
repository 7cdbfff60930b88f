package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/AgenciaV10/wsnap/internal/core/domain"
	"github.com/AgenciaV10/wsnap/internal/storage"
	"github.com/AgenciaV10/wsnap/internal/telemetry/metric"
)

// Key layout.
const (
	prefixRecord       = "snap/"
	prefixStartCommand = "cmd/"
	keySalt            = "meta/salt"
)

// Store persists snapshot records in a KV engine.
// It is safe for concurrent use; each operation is a single KV transaction.
type Store struct {
	kv      storage.KVEngine
	cipher  Cipher
	logger  *slog.Logger
	metrics *metric.Registry
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics records store operation results.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Store) { s.metrics = m }
}

// WithCipher enables record encryption.
func WithCipher(c Cipher) Option {
	return func(s *Store) { s.cipher = c }
}

// New creates a store over kv.
func New(kv storage.KVEngine, opts ...Option) *Store {
	s := &Store{kv: kv, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a store and sets up encryption from enc. For passphrase
// keys the Argon2id salt is read from the store, or generated and
// persisted on first use.
func Open(ctx context.Context, kv storage.KVEngine, enc EncryptionConfig, opts ...Option) (*Store, error) {
	s := New(kv, opts...)
	if !enc.Enabled() {
		return s, nil
	}
	if err := enc.Validate(); err != nil {
		return nil, err
	}

	master := enc.Key
	if len(enc.Passphrase) > 0 {
		salt, err := s.loadOrCreateSalt(ctx)
		if err != nil {
			return nil, err
		}
		master, err = DeriveKeyFromPassphrase(enc.Passphrase, salt)
		if err != nil {
			return nil, err
		}
		defer ZeroKey(master)
	}

	c, err := NewCipher(enc.Algorithm, master)
	if err != nil {
		return nil, err
	}
	s.cipher = c
	s.logger.Info("snapshot encryption enabled", "algorithm", c.Algorithm(), "passphrase", len(enc.Passphrase) > 0)
	return s, nil
}

func (s *Store) loadOrCreateSalt(ctx context.Context) ([]byte, error) {
	salt, err := s.kv.Get(ctx, []byte(keySalt))
	if err == nil {
		if len(salt) != SaltLength {
			return nil, fmt.Errorf("snapshot: stored salt has %d bytes, want %d", len(salt), SaltLength)
		}
		return salt, nil
	}
	if !errors.Is(err, storage.ErrKeyNotFound) {
		return nil, fmt.Errorf("snapshot: read salt: %w", err)
	}

	salt, err = NewSalt()
	if err != nil {
		return nil, err
	}
	if err := s.kv.Set(ctx, []byte(keySalt), salt); err != nil {
		return nil, fmt.Errorf("snapshot: persist salt: %w", err)
	}
	return salt, nil
}

// Encrypted reports whether new records are sealed.
func (s *Store) Encrypted() bool {
	return s.cipher != nil
}

// Put inserts or replaces the record for rec.SessionID.
func (s *Store) Put(ctx context.Context, rec *domain.Record) domain.Result[struct{}] {
	if err := rec.Validate(); err != nil {
		return s.fail("put", sessionOf(rec), err)
	}

	frame, err := s.encode(rec)
	if err != nil {
		return s.fail("put", rec.SessionID, err)
	}
	if err := s.kv.Set(ctx, recordKey(rec.SessionID), frame); err != nil {
		return s.fail("put", rec.SessionID, domain.ErrStorage.Wrap(err))
	}

	s.metrics.RecordStoreOp("put", domain.StatusOK.String())
	s.logger.Debug("snapshot stored",
		"session_id", rec.SessionID,
		"files", rec.FileCount(),
		"bytes", len(frame))
	return domain.OK(struct{}{})
}

// Get returns the record for id, or NotFound if none is stored.
func (s *Store) Get(ctx context.Context, id string) domain.Result[*domain.Record] {
	if err := domain.ValidateSessionID(id); err != nil {
		return failed[*domain.Record](s, "get", id, err)
	}

	frame, err := s.kv.Get(ctx, recordKey(id))
	if errors.Is(err, storage.ErrKeyNotFound) {
		s.metrics.RecordStoreOp("get", domain.StatusNotFound.String())
		return domain.NotFound[*domain.Record]()
	}
	if err != nil {
		return failed[*domain.Record](s, "get", id, domain.ErrStorage.Wrap(err))
	}

	rec, err := s.decode(id, frame)
	if err != nil {
		return failed[*domain.Record](s, "get", id, err)
	}

	s.metrics.RecordStoreOp("get", domain.StatusOK.String())
	return domain.OK(rec)
}

// Delete removes the record for id. Deleting a missing record succeeds.
func (s *Store) Delete(ctx context.Context, id string) domain.Result[struct{}] {
	if err := domain.ValidateSessionID(id); err != nil {
		return s.fail("delete", id, err)
	}
	if err := s.kv.Delete(ctx, recordKey(id)); err != nil {
		return s.fail("delete", id, domain.ErrStorage.Wrap(err))
	}
	s.metrics.RecordStoreOp("delete", domain.StatusOK.String())
	return domain.OK(struct{}{})
}

// List returns a summary of every stored record in session id order.
// Frames that fail verification are logged and left out.
func (s *Store) List(ctx context.Context) domain.Result[[]domain.Summary] {
	out := make([]domain.Summary, 0)
	err := s.kv.Scan(ctx, []byte(prefixRecord), func(key, value []byte) bool {
		id := strings.TrimPrefix(string(key), prefixRecord)
		hdr, err := decodeHeader(value)
		if err != nil {
			s.logger.Warn("skipping unreadable snapshot", "session_id", id, "error", err)
			return true
		}
		out = append(out, domain.Summary{
			SessionID: id,
			CreatedAt: hdr.CreatedAt,
			FileCount: hdr.FileCount,
			Size:      len(value),
			Encrypted: hdr.Encrypted,
		})
		return true
	})
	if err != nil {
		return failed[[]domain.Summary](s, "list", "", domain.ErrStorage.Wrap(err))
	}
	s.metrics.RecordStoreOp("list", domain.StatusOK.String())
	return domain.OK(out)
}

// PutStartCommand records the launch command for id. An empty command
// removes it.
func (s *Store) PutStartCommand(ctx context.Context, id, command string) domain.Result[struct{}] {
	if err := domain.ValidateSessionID(id); err != nil {
		return s.fail("put_command", id, err)
	}
	command = strings.TrimSpace(command)

	var err error
	if command == "" {
		err = s.kv.Delete(ctx, commandKey(id))
	} else {
		err = s.kv.Set(ctx, commandKey(id), []byte(command))
	}
	if err != nil {
		return s.fail("put_command", id, domain.ErrStorage.Wrap(err))
	}
	s.metrics.RecordStoreOp("put_command", domain.StatusOK.String())
	return domain.OK(struct{}{})
}

// GetStartCommand returns the launch command recorded for id.
func (s *Store) GetStartCommand(ctx context.Context, id string) domain.Result[string] {
	if err := domain.ValidateSessionID(id); err != nil {
		return failed[string](s, "get_command", id, err)
	}
	v, err := s.kv.Get(ctx, commandKey(id))
	if errors.Is(err, storage.ErrKeyNotFound) {
		s.metrics.RecordStoreOp("get_command", domain.StatusNotFound.String())
		return domain.NotFound[string]()
	}
	if err != nil {
		return failed[string](s, "get_command", id, domain.ErrStorage.Wrap(err))
	}
	s.metrics.RecordStoreOp("get_command", domain.StatusOK.String())
	return domain.OK(string(v))
}

// Backup writes a dump of the whole store, including launch commands and
// the passphrase salt, to w.
func (s *Store) Backup(ctx context.Context, w io.Writer) domain.Result[struct{}] {
	if err := s.kv.Backup(ctx, w); err != nil {
		return s.fail("backup", "", domain.ErrStorage.Wrap(err))
	}
	s.metrics.RecordStoreOp("backup", domain.StatusOK.String())
	return domain.OK(struct{}{})
}

// LoadBackup replaces the store contents with a dump written by Backup.
func (s *Store) LoadBackup(ctx context.Context, r io.Reader) domain.Result[struct{}] {
	if err := s.kv.Load(ctx, r); err != nil {
		return s.fail("load_backup", "", domain.ErrStorage.Wrap(err))
	}
	s.metrics.RecordStoreOp("load_backup", domain.StatusOK.String())
	return domain.OK(struct{}{})
}

// Stats returns engine statistics.
func (s *Store) Stats(ctx context.Context) (*storage.KVStats, error) {
	return s.kv.Stats(ctx)
}

func (s *Store) encode(rec *domain.Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal record: %w", err)
	}

	hdr := frameHeader{
		Version:   frameVersion,
		SessionID: rec.SessionID,
		CreatedAt: rec.CreatedAt,
		FileCount: len(rec.Files),
	}
	if s.cipher != nil {
		data, err = s.cipher.Seal(data, []byte(rec.SessionID))
		if err != nil {
			return nil, fmt.Errorf("snapshot: encrypt: %w", err)
		}
		hdr.Encrypted = true
		hdr.Algorithm = s.cipher.Algorithm()
	}
	return encodeFrame(hdr, data)
}

func (s *Store) decode(id string, frame []byte) (*domain.Record, error) {
	hdr, data, err := decodeFrame(frame)
	if err != nil {
		return nil, domain.ErrSnapshotCorrupted.Wrap(err)
	}

	if hdr.Encrypted {
		if s.cipher == nil {
			return nil, domain.ErrSnapshotCorrupted.Wrap(ErrNoCipher)
		}
		data, err = s.cipher.Open(data, []byte(hdr.SessionID))
		if err != nil {
			return nil, domain.ErrSnapshotCorrupted.Wrap(err)
		}
	}

	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, domain.ErrSnapshotCorrupted.Wrap(fmt.Errorf("unmarshal record: %w", err))
	}
	if rec.SessionID != id || hdr.SessionID != id {
		return nil, domain.ErrSnapshotCorrupted.WithDetails(
			fmt.Sprintf("record for %q stored under %q", rec.SessionID, id))
	}
	if rec.Files == nil {
		rec.Files = []domain.FileEntry{}
	}
	return &rec, nil
}

func (s *Store) fail(op, id string, err error) domain.Result[struct{}] {
	return failed[struct{}](s, op, id, err)
}

// failed logs and counts a failed operation.
func failed[T any](s *Store, op, id string, err error) domain.Result[T] {
	s.metrics.RecordStoreOp(op, domain.StatusFailed.String())
	s.logger.Error("snapshot store operation failed",
		"op", op,
		"session_id", id,
		"error", err)
	return domain.Failed[T](err)
}

func sessionOf(rec *domain.Record) string {
	if rec == nil {
		return ""
	}
	return rec.SessionID
}

func recordKey(id string) []byte  { return []byte(prefixRecord + id) }
func commandKey(id string) []byte { return []byte(prefixStartCommand + id) }
