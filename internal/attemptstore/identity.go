package attemptstore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"quiz-taker/internal/quiz"
	"quiz-taker/internal/storage"
)

// IdentityStore holds the StudentIdentity for the current session. Back it
// with a storage.MemoryKV to get "cleared when the session ends".
type IdentityStore struct {
	kv  storage.KV
	key string
	log *slog.Logger
}

func NewIdentityStore(kv storage.KV, prefix string, logger *slog.Logger) *IdentityStore {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &IdentityStore{kv: kv, key: prefix + identityKey, log: logger}
}

func (s *IdentityStore) Save(ctx context.Context, identity quiz.StudentIdentity) {
	encoded, err := json.Marshal(identity)
	if err != nil {
		s.log.Error("encode student identity", "error", err)
		return
	}
	if err := s.kv.Set(ctx, s.key, encoded); err != nil {
		s.log.Warn("persist student identity", "error", err)
	}
}

func (s *IdentityStore) Load(ctx context.Context) (quiz.StudentIdentity, bool) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.log.Warn("student identity unavailable", "error", err)
		return quiz.StudentIdentity{}, false
	}
	if !ok {
		return quiz.StudentIdentity{}, false
	}

	var identity quiz.StudentIdentity
	if err := json.Unmarshal(raw, &identity); err != nil {
		s.log.Warn("student identity corrupted", "error", err)
		return quiz.StudentIdentity{}, false
	}
	if strings.TrimSpace(identity.Name) == "" {
		return quiz.StudentIdentity{}, false
	}
	return identity, true
}

func (s *IdentityStore) Clear(ctx context.Context) {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		s.log.Warn("clear student identity", "error", err)
	}
}
