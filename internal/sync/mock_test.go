package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mboard/photoboard/internal/gphotos"
	"github.com/mboard/photoboard/internal/model"
	"github.com/mboard/photoboard/internal/state"
)

// --- Mock Provider -----------------------------------------------------------

type mockProvider struct {
	mu            sync.Mutex
	items         []gphotos.MediaItem
	listErr       error
	downloadErrs  map[string]error // item ID → error
	listCalls     int
	downloadCalls int
}

func newMockProvider(items ...gphotos.MediaItem) *mockProvider {
	return &mockProvider{items: items, downloadErrs: make(map[string]error)}
}

func (m *mockProvider) setItems(items ...gphotos.MediaItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

func (m *mockProvider) failDownload(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadErrs[id] = err
}

func (m *mockProvider) ListMediaItems(_ context.Context, _ string) ([]gphotos.MediaItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	result := make([]gphotos.MediaItem, len(m.items))
	copy(result, m.items)
	return result, nil
}

func (m *mockProvider) Download(_ context.Context, item gphotos.MediaItem) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadCalls++
	if err := m.downloadErrs[item.ID]; err != nil {
		return nil, err
	}
	return []byte("content-" + item.ID), nil
}

// --- Mock Cache --------------------------------------------------------------

type cacheEntry struct {
	photo   *model.Photo
	content []byte
}

type mockCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string // insertion order
	st      state.SyncState

	upsertErr error
	deleteErr error

	upserts int
	deletes int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]*cacheEntry)}
}

func (m *mockCache) seed(photos ...*model.Photo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range photos {
		cp := *p
		m.entries[p.ID] = &cacheEntry{photo: &cp}
		m.order = append(m.order, p.ID)
	}
}

func (m *mockCache) seedState(st state.SyncState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = st
}

func (m *mockCache) Photos(_ context.Context) ([]*model.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*model.Photo, 0, len(m.order))
	for _, id := range m.order {
		cp := *m.entries[id].photo
		result = append(result, &cp)
	}
	return result, nil
}

func (m *mockCache) UpsertPhoto(_ context.Context, p *model.Photo, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts++
	cp := *p
	if _, exists := m.entries[p.ID]; !exists {
		m.order = append(m.order, p.ID)
	}
	m.entries[p.ID] = &cacheEntry{photo: &cp, content: content}
	return nil
}

func (m *mockCache) DeletePhoto(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, exists := m.entries[id]; !exists {
		return nil
	}
	m.deletes++
	delete(m.entries, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockCache) SetSyncSuccess(_ context.Context, knownIDs []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.KnownIDs = append([]string(nil), knownIDs...)
	m.st.LastSyncAt = at
	m.st.LastError = ""
	return nil
}

func (m *mockCache) SetSyncError(_ context.Context, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.LastError = message
	return nil
}

func (m *mockCache) get(id string) *model.Photo {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil
	}
	cp := *e.photo
	return &cp
}

func (m *mockCache) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *mockCache) knownIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.st.KnownIDs...)
}

func (m *mockCache) lastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.LastError
}

func (m *mockCache) lastSyncAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.LastSyncAt
}

// --- test item helpers -------------------------------------------------------

func newMediaItem(id, description, version string) gphotos.MediaItem {
	return gphotos.MediaItem{
		ID:          id,
		Description: description,
		BaseURL:     fmt.Sprintf("https://photos.example/%s", id),
		MimeType:    "image/jpeg",
		Filename:    id + ".jpg",
		MediaMetadata: gphotos.MediaMetadata{
			CreationTime: version, // varies to model a remote edit
			Width:        "800",
			Height:       "600",
		},
	}
}

func cachedPhoto(item gphotos.MediaItem) *model.Photo {
	name, extra := model.ParseDescription(item.Description)
	return &model.Photo{
		ID:          item.ID,
		Name:        name,
		ExtraLines:  extra,
		Fingerprint: item.Fingerprint(),
		FileName:    item.ID + ".jpg",
		FetchedAt:   time.Now().UTC(),
	}
}
