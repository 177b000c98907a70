package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/duette-app/duette/cmd/server/models"
	"github.com/google/uuid"
)

// MemoryCatalog keeps videos and duettes in process memory, for local runs and tests
type MemoryCatalog struct {
	mu      sync.RWMutex
	videos  map[uuid.UUID]models.Video
	duettes map[uuid.UUID][]models.Duette // by video id
	now     func() time.Time
}

// NewMemoryCatalog creates an empty catalog
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		videos:  make(map[uuid.UUID]models.Video),
		duettes: make(map[uuid.UUID][]models.Duette),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Videos returns the VideoRepository view
func (m *MemoryCatalog) Videos() VideoRepository { return (*memoryVideos)(m) }

// Duettes returns the DuetteRepository view
func (m *MemoryCatalog) Duettes() DuetteRepository { return (*memoryDuettes)(m) }

type memoryVideos MemoryCatalog

func (m *memoryVideos) Create(ctx context.Context, video *models.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	video.CreatedAt, video.UpdatedAt = now, now
	m.videos[video.ID] = *video
	return nil
}

func (m *memoryVideos) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (m *memoryVideos) List(ctx context.Context, search string) ([]*models.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	videos := make([]*models.Video, 0, len(m.videos))
	for _, v := range m.videos {
		v := v
		if matchesSearch(&v, search) {
			videos = append(videos, &v)
		}
	}
	sortNewestFirst(videos)
	return videos, nil
}

func (m *memoryVideos) Update(ctx context.Context, video *models.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.videos[video.ID]
	if !ok {
		return ErrNotFound
	}
	video.CreatedAt = existing.CreatedAt
	video.UpdatedAt = m.now()
	m.videos[video.ID] = *video
	return nil
}

func (m *memoryVideos) Delete(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.videos[id]; !ok {
		return nil, ErrNotFound
	}
	delete(m.videos, id)

	ids := make([]uuid.UUID, 0, len(m.duettes[id]))
	for _, d := range m.duettes[id] {
		ids = append(ids, d.ID)
	}
	delete(m.duettes, id)
	return ids, nil
}

type memoryDuettes MemoryCatalog

func (m *memoryDuettes) Create(ctx context.Context, duette *models.Duette) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	duette.CreatedAt = m.now()
	duette.WithObjectKey()
	m.duettes[duette.VideoID] = append(m.duettes[duette.VideoID], *duette)
	return nil
}

func (m *memoryDuettes) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*models.Duette, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	duettes := make([]*models.Duette, 0, len(m.duettes[videoID]))
	for _, d := range m.duettes[videoID] {
		d := d
		duettes = append(duettes, &d)
	}
	sort.SliceStable(duettes, func(i, j int) bool {
		return duettes[i].CreatedAt.Before(duettes[j].CreatedAt)
	})
	return duettes, nil
}

func (m *memoryDuettes) Delete(ctx context.Context, videoID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.duettes[videoID]
	for i, d := range list {
		if d.ID == id {
			m.duettes[videoID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
