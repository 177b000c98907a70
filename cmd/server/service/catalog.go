package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/duette-app/duette/cmd/server/models"
	"github.com/duette-app/duette/cmd/server/repository"
	"github.com/duette-app/duette/common/cache"
	"github.com/duette-app/duette/common/logger"
	"github.com/duette-app/duette/common/queue"
	"github.com/google/uuid"
)

// TopicCatalogEvents is the queue topic every catalog mutation is published on
const TopicCatalogEvents = "catalog.events"

const (
	listGenerationKey = "videos:gen"
	listKeyPrefix     = "videos:list:"
)

// CatalogService owns video and duette metadata
type CatalogService struct {
	videos  repository.VideoRepository
	duettes repository.DuetteRepository
	filter  *FilterEvaluator
	cache   cache.Cache // nil disables list caching
	queue   queue.Queue // nil disables events
	ttl     time.Duration
	log     *logger.Logger
}

// NewCatalogService creates a catalog service
func NewCatalogService(
	videos repository.VideoRepository,
	duettes repository.DuetteRepository,
	filter *FilterEvaluator,
	c cache.Cache,
	q queue.Queue,
	ttl time.Duration,
	log *logger.Logger,
) *CatalogService {
	return &CatalogService{
		videos:  videos,
		duettes: duettes,
		filter:  filter,
		cache:   c,
		queue:   q,
		ttl:     ttl,
		log:     log,
	}
}

// ListVideos returns videos newest first, matching search and the optional CEL filter
func (s *CatalogService) ListVideos(ctx context.Context, search, filter string) ([]*models.Video, error) {
	if filter != "" {
		// reject bad filters before touching storage
		if _, err := s.filter.Compile(filter); err != nil {
			return nil, err
		}
	}

	videos, err := s.listCached(ctx, search)
	if err != nil {
		return nil, err
	}

	return s.filter.Apply(filter, videos)
}

func (s *CatalogService) listCached(ctx context.Context, search string) ([]*models.Video, error) {
	if s.cache == nil {
		return s.videos.List(ctx, search)
	}

	key := s.listKey(ctx, search)
	if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var videos []*models.Video
		if err := json.Unmarshal(data, &videos); err == nil {
			s.log.Debug("video list cache hit", "key", key)
			return videos, nil
		}
	}

	videos, err := s.videos.List(ctx, search)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(videos); err == nil {
		if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
			s.log.Warn("failed to cache video list", "key", key, "error", err)
		}
	}
	return videos, nil
}

// listKey embeds the current generation, so bumping it orphans every cached list
func (s *CatalogService) listKey(ctx context.Context, search string) string {
	gen := "0"
	if data, ok, err := s.cache.Get(ctx, listGenerationKey); err == nil && ok {
		gen = string(data)
	}
	return listKeyPrefix + gen + ":" + search
}

func (s *CatalogService) invalidateLists(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Incr(ctx, listGenerationKey); err != nil {
		s.log.Warn("failed to bump video list generation", "error", err)
	}
}

// GetVideo returns one video or repository.ErrNotFound
func (s *CatalogService) GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	return s.videos.GetByID(ctx, id)
}

// CreateVideo validates and stores a new video
func (s *CatalogService) CreateVideo(ctx context.Context, req *models.CreateVideoRequest) (*models.Video, error) {
	video := req.ToVideo()
	if err := ValidateVideo(video); err != nil {
		return nil, err
	}

	video.ID = uuid.New()
	if err := s.videos.Create(ctx, video); err != nil {
		return nil, err
	}

	s.log.WithVideoID(video.ID.String()).Info("video created", "title", video.Title)
	s.afterMutation(ctx, models.EventVideoCreated, video.ID, nil)
	return video, nil
}

// PatchVideo applies an RFC 6902 patch to the editable fields
func (s *CatalogService) PatchVideo(ctx context.Context, id uuid.UUID, patchJSON []byte) (*models.Video, error) {
	current, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := ApplyVideoPatch(current, patchJSON)
	if err != nil {
		return nil, err
	}
	if err := ValidateVideo(updated); err != nil {
		return nil, err
	}

	if err := s.videos.Update(ctx, updated); err != nil {
		return nil, err
	}

	s.afterMutation(ctx, models.EventVideoUpdated, id, nil)
	return updated, nil
}

// DeleteVideo removes the video and its duette records, returning the removed duette ids
func (s *CatalogService) DeleteVideo(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	duetteIDs, err := s.videos.Delete(ctx, id)
	if err != nil {
		// removed duettes still need their objects cleaned up
		if len(duetteIDs) > 0 {
			s.log.WithVideoID(id.String()).Warn("video delete incomplete", "duettes_removed", len(duetteIDs), "error", err)
			s.afterMutation(ctx, models.EventDuetteDeleted, id, duetteIDs)
		}
		return nil, err
	}

	s.log.WithVideoID(id.String()).Info("video deleted", "duettes", len(duetteIDs))
	s.afterMutation(ctx, models.EventVideoDeleted, id, duetteIDs)
	return duetteIDs, nil
}

// CreateDuette registers a new take for an existing video
func (s *CatalogService) CreateDuette(ctx context.Context, videoID uuid.UUID) (*models.Duette, error) {
	if _, err := s.videos.GetByID(ctx, videoID); err != nil {
		return nil, err
	}

	duette := &models.Duette{ID: uuid.New(), VideoID: videoID}
	if err := s.duettes.Create(ctx, duette); err != nil {
		return nil, err
	}

	s.afterMutation(ctx, models.EventDuetteCreated, videoID, []uuid.UUID{duette.ID})
	return duette, nil
}

// ListDuettes lists the takes of an existing video
func (s *CatalogService) ListDuettes(ctx context.Context, videoID uuid.UUID) ([]*models.Duette, error) {
	if _, err := s.videos.GetByID(ctx, videoID); err != nil {
		return nil, err
	}
	return s.duettes.ListByVideo(ctx, videoID)
}

// DeleteDuette removes one take record
func (s *CatalogService) DeleteDuette(ctx context.Context, videoID, id uuid.UUID) error {
	if err := s.duettes.Delete(ctx, videoID, id); err != nil {
		return err
	}

	s.afterMutation(ctx, models.EventDuetteDeleted, videoID, []uuid.UUID{id})
	return nil
}

// afterMutation invalidates cached lists and publishes the event. Both are
// best effort since the mutation is already committed.
func (s *CatalogService) afterMutation(ctx context.Context, typ models.EventType, videoID uuid.UUID, duetteIDs []uuid.UUID) {
	s.invalidateLists(ctx)

	if s.queue == nil {
		return
	}

	event := models.CatalogEvent{
		Type:      typ,
		VideoID:   videoID,
		DuetteIDs: duetteIDs,
		At:        time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.log.Error("failed to marshal catalog event", "type", typ, "error", err)
		return
	}

	// the request context may be cancelled right after the response
	if err := s.queue.Publish(context.WithoutCancel(ctx), TopicCatalogEvents, videoID.String(), data); err != nil {
		s.log.Warn("failed to publish catalog event", "type", typ, "video_id", videoID, "error", err)
	}
}

// IsNotFound reports whether err is a missing video or duette
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
