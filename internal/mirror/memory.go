package mirror

import (
	"context"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/scribe/internal/model"
)

// Memory keeps the list in process. It survives store reloads, not restarts.
type Memory struct {
	cache *cache.Cache
	key   string
}

func NewMemory(key string) *Memory {
	if key == "" {
		key = DefaultKey
	}
	return &Memory{
		cache: cache.New(cache.NoExpiration, 0),
		key:   key,
	}
}

func (m *Memory) Driver() string { return "memory" }

func (m *Memory) Load(_ context.Context) ([]*model.PatientRecord, error) {
	v, ok := m.cache.Get(m.key)
	if !ok {
		return nil, nil
	}
	return decode(v.([]byte))
}

func (m *Memory) Save(_ context.Context, records []*model.PatientRecord) error {
	data, err := encode(records)
	if err != nil {
		return err
	}
	m.cache.Set(m.key, data, cache.NoExpiration)
	return nil
}
