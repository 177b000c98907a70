package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CatalogClient talks to the /api/video routes
type CatalogClient struct {
	baseURL string
	http    *HTTPClient
	logger  Logger
}

// NewCatalogClient creates a catalog client for the server at baseURL
func NewCatalogClient(baseURL string, logger Logger) *CatalogClient {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	return NewCatalogClientWithHTTP(baseURL, httpClient, logger)
}

// NewCatalogClientWithHTTP uses the given http.Client, e.g. one from httptest
func NewCatalogClientWithHTTP(baseURL string, httpClient *http.Client, logger Logger) *CatalogClient {
	return &CatalogClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    NewHTTPClient(httpClient, logger),
		logger:  logger,
	}
}

// ListOption tweaks a ListVideos call
type ListOption func(url.Values)

// WithFilter adds a CEL filter expression over `video`
func WithFilter(expr string) ListOption {
	return func(q url.Values) {
		if expr != "" {
			q.Set("filter", expr)
		}
	}
}

// ListVideos returns the catalog. A non-empty search is sent as a single
// `val` parameter; an empty search sends no query string at all.
func (c *CatalogClient) ListVideos(ctx context.Context, search string, opts ...ListOption) ([]Video, error) {
	q := url.Values{}
	if search != "" {
		q.Set("val", search)
	}
	for _, opt := range opts {
		opt(q)
	}

	u := c.baseURL + "/api/video"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	resp, err := c.http.DoRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}

	var videos []Video
	if err := decodeJSON(resp, http.StatusOK, &videos); err != nil {
		return nil, err
	}

	c.logger.Debug("listed videos", "search", search, "count", len(videos))
	return videos, nil
}

// GetVideo fetches one video
func (c *CatalogClient) GetVideo(ctx context.Context, id string) (*Video, error) {
	resp, err := c.http.DoRequest(ctx, http.MethodGet, c.videoURL(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video: %w", err)
	}

	var video Video
	if err := decodeJSON(resp, http.StatusOK, &video); err != nil {
		return nil, err
	}
	return &video, nil
}

// CreateVideo posts new video metadata
func (c *CatalogClient) CreateVideo(ctx context.Context, details VideoDetails) (*Video, error) {
	resp, err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/api/video", details)
	if err != nil {
		return nil, fmt.Errorf("failed to create video: %w", err)
	}

	var video Video
	if err := decodeJSON(resp, http.StatusCreated, &video); err != nil {
		return nil, err
	}

	c.logger.Info("video created", "video_id", video.ID)
	return &video, nil
}

// PatchVideo applies a JSON Patch to a video
func (c *CatalogClient) PatchVideo(ctx context.Context, id string, ops []PatchOp) (*Video, error) {
	resp, err := c.http.DoJSON(ctx, http.MethodPatch, c.videoURL(id), ops)
	if err != nil {
		return nil, fmt.Errorf("failed to patch video: %w", err)
	}

	var video Video
	if err := decodeJSON(resp, http.StatusOK, &video); err != nil {
		return nil, err
	}
	return &video, nil
}

// DeleteVideo removes the video record and its duette records
func (c *CatalogClient) DeleteVideo(ctx context.Context, id string) error {
	resp, err := c.http.DoRequest(ctx, http.MethodDelete, c.videoURL(id), nil)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	return decodeJSON(resp, http.StatusOK, nil)
}

// CreateDuette registers a new duette take for videoID
func (c *CatalogClient) CreateDuette(ctx context.Context, videoID string) (*Duette, error) {
	resp, err := c.http.DoRequest(ctx, http.MethodPost, c.videoURL(videoID)+"/duettes", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create duette: %w", err)
	}

	var duette Duette
	if err := decodeJSON(resp, http.StatusCreated, &duette); err != nil {
		return nil, err
	}
	return &duette, nil
}

// ListDuettes lists the takes recorded against videoID
func (c *CatalogClient) ListDuettes(ctx context.Context, videoID string) ([]Duette, error) {
	resp, err := c.http.DoRequest(ctx, http.MethodGet, c.videoURL(videoID)+"/duettes", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list duettes: %w", err)
	}

	var duettes []Duette
	if err := decodeJSON(resp, http.StatusOK, &duettes); err != nil {
		return nil, err
	}
	return duettes, nil
}

// DeleteDuette removes one duette record
func (c *CatalogClient) DeleteDuette(ctx context.Context, videoID, duetteID string) error {
	u := c.videoURL(videoID) + "/duettes/" + url.PathEscape(duetteID)
	resp, err := c.http.DoRequest(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("failed to delete duette: %w", err)
	}
	return decodeJSON(resp, http.StatusOK, nil)
}

func (c *CatalogClient) videoURL(id string) string {
	return c.baseURL + "/api/video/" + url.PathEscape(id)
}
