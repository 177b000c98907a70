package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/duette-app/duette/cmd/server/models"
	"github.com/google/uuid"
)

// DynamoDB limits BatchWriteItem to 25 requests
const batchWriteLimit = 25

// Unprocessed batch items are retried after 50ms, 100ms, 200ms...
const maxUnprocessedRetries = 5

var unprocessedBackoff = 50 * time.Millisecond

// videoItem is the videos table row, keyed by id
type videoItem struct {
	ID        string    `dynamodbav:"id"`
	Title     string    `dynamodbav:"title"`
	Composer  *string   `dynamodbav:"composer,omitempty"`
	Key       *string   `dynamodbav:"music_key,omitempty"`
	Performer string    `dynamodbav:"performer"`
	Notes     *string   `dynamodbav:"notes,omitempty"`
	CreatedAt time.Time `dynamodbav:"created_at"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

// duetteItem is the duettes table row, keyed by video_id then id
type duetteItem struct {
	VideoID   string    `dynamodbav:"video_id"`
	ID        string    `dynamodbav:"id"`
	CreatedAt time.Time `dynamodbav:"created_at"`
}

func toVideoItem(v *models.Video) videoItem {
	return videoItem{
		ID:        v.ID.String(),
		Title:     v.Title,
		Composer:  v.Composer,
		Key:       v.Key,
		Performer: v.Performer,
		Notes:     v.Notes,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

func (i videoItem) toModel() (*models.Video, error) {
	id, err := uuid.Parse(i.ID)
	if err != nil {
		return nil, fmt.Errorf("bad video id %q: %w", i.ID, err)
	}
	return &models.Video{
		ID:        id,
		Title:     i.Title,
		Composer:  i.Composer,
		Key:       i.Key,
		Performer: i.Performer,
		Notes:     i.Notes,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}, nil
}

func (i duetteItem) toModel() (*models.Duette, error) {
	id, err := uuid.Parse(i.ID)
	if err != nil {
		return nil, fmt.Errorf("bad duette id %q: %w", i.ID, err)
	}
	videoID, err := uuid.Parse(i.VideoID)
	if err != nil {
		return nil, fmt.Errorf("bad video id %q: %w", i.VideoID, err)
	}
	d := &models.Duette{ID: id, VideoID: videoID, CreatedAt: i.CreatedAt}
	return d.WithObjectKey(), nil
}

// matchesSearch mirrors the postgres ILIKE filter
func matchesSearch(v *models.Video, search string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	for _, field := range []string{v.Title, deref(v.Composer), v.Performer} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// DynamoCatalog stores videos and duettes in two DynamoDB tables
type DynamoCatalog struct {
	client       *dynamodb.Client
	videosTable  string
	duettesTable string
}

// NewDynamoCatalog creates a catalog over the given tables
func NewDynamoCatalog(client *dynamodb.Client, videosTable, duettesTable string) *DynamoCatalog {
	return &DynamoCatalog{
		client:       client,
		videosTable:  videosTable,
		duettesTable: duettesTable,
	}
}

// Videos returns the VideoRepository view
func (s *DynamoCatalog) Videos() VideoRepository { return (*dynamoVideos)(s) }

// Duettes returns the DuetteRepository view
func (s *DynamoCatalog) Duettes() DuetteRepository { return (*dynamoDuettes)(s) }

type dynamoVideos DynamoCatalog

func (s *dynamoVideos) Create(ctx context.Context, video *models.Video) error {
	now := time.Now().UTC()
	video.CreatedAt, video.UpdatedAt = now, now

	item, err := attributevalue.MarshalMap(toVideoItem(video))
	if err != nil {
		return fmt.Errorf("failed to marshal video: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.videosTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}
	return nil
}

func (s *dynamoVideos) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.videosTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id.String()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var item videoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal video: %w", err)
	}
	return item.toModel()
}

// List scans the table, the catalog is small enough for a full scan
func (s *dynamoVideos) List(ctx context.Context, search string) ([]*models.Video, error) {
	videos := make([]*models.Video, 0)

	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.videosTable),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan videos: %w", err)
		}

		var items []videoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal videos: %w", err)
		}
		for _, item := range items {
			v, err := item.toModel()
			if err != nil {
				return nil, err
			}
			if matchesSearch(v, search) {
				videos = append(videos, v)
			}
		}
	}

	sortNewestFirst(videos)
	return videos, nil
}

func (s *dynamoVideos) Update(ctx context.Context, video *models.Video) error {
	video.UpdatedAt = time.Now().UTC()

	item, err := attributevalue.MarshalMap(toVideoItem(video))
	if err != nil {
		return fmt.Errorf("failed to marshal video: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.videosTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if isConditionFailed(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}
	return nil
}

// Delete clears the duettes partition before removing the video, so a
// failure leaves the video in place for a retry. On a partial failure the ids
// of the duettes already removed are returned with the error.
func (s *dynamoVideos) Delete(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	duettes, err := (*dynamoDuettes)(s).ListByVideo(ctx, id)
	if err != nil {
		return nil, err
	}

	removed := make([]uuid.UUID, 0, len(duettes))
	for start := 0; start < len(duettes); start += batchWriteLimit {
		chunk := duettes[start:min(start+batchWriteLimit, len(duettes))]
		left, err := s.deleteDuetteBatch(ctx, chunk)
		for _, d := range chunk {
			if !left[d.ID.String()] {
				removed = append(removed, d.ID)
			}
		}
		if err != nil {
			return removed, err
		}
	}

	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.videosTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id.String()},
		},
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if isConditionFailed(err) {
		return removed, ErrNotFound
	}
	if err != nil {
		return removed, fmt.Errorf("failed to delete video: %w", err)
	}
	return removed, nil
}

// deleteDuetteBatch deletes up to batchWriteLimit duettes, retrying
// unprocessed items with exponential backoff. It returns the ids that were
// not confirmed deleted.
func (s *dynamoVideos) deleteDuetteBatch(ctx context.Context, chunk []*models.Duette) (map[string]bool, error) {
	requests := make([]types.WriteRequest, 0, len(chunk))
	for _, d := range chunk {
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: duetteKey(d.VideoID, d.ID)},
		})
	}

	pending := map[string][]types.WriteRequest{s.duettesTable: requests}
	delay := unprocessedBackoff
	for attempt := 0; ; attempt++ {
		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return requestIDs(pending[s.duettesTable]), fmt.Errorf("failed to delete duettes: %w", err)
		}
		if len(out.UnprocessedItems[s.duettesTable]) == 0 {
			return nil, nil
		}

		pending = out.UnprocessedItems
		if attempt == maxUnprocessedRetries {
			left := requestIDs(pending[s.duettesTable])
			return left, fmt.Errorf("failed to delete duettes: %d left unprocessed", len(left))
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return requestIDs(pending[s.duettesTable]), ctx.Err()
		}
		delay *= 2
	}
}

func requestIDs(requests []types.WriteRequest) map[string]bool {
	ids := make(map[string]bool, len(requests))
	for _, r := range requests {
		if r.DeleteRequest == nil {
			continue
		}
		if id, ok := r.DeleteRequest.Key["id"].(*types.AttributeValueMemberS); ok {
			ids[id.Value] = true
		}
	}
	return ids
}

type dynamoDuettes DynamoCatalog

func duetteKey(videoID, id uuid.UUID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"video_id": &types.AttributeValueMemberS{Value: videoID.String()},
		"id":       &types.AttributeValueMemberS{Value: id.String()},
	}
}

func (s *dynamoDuettes) Create(ctx context.Context, duette *models.Duette) error {
	duette.CreatedAt = time.Now().UTC()

	item, err := attributevalue.MarshalMap(duetteItem{
		VideoID:   duette.VideoID.String(),
		ID:        duette.ID.String(),
		CreatedAt: duette.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal duette: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.duettesTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("failed to create duette: %w", err)
	}

	duette.WithObjectKey()
	return nil
}

func (s *dynamoDuettes) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*models.Duette, error) {
	duettes := make([]*models.Duette, 0)

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.duettesTable),
		KeyConditionExpression: aws.String("video_id = :v"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: videoID.String()},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query duettes: %w", err)
		}

		var items []duetteItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal duettes: %w", err)
		}
		for _, item := range items {
			d, err := item.toModel()
			if err != nil {
				return nil, err
			}
			duettes = append(duettes, d)
		}
	}

	sort.SliceStable(duettes, func(i, j int) bool {
		return duettes[i].CreatedAt.Before(duettes[j].CreatedAt)
	})
	return duettes, nil
}

func (s *dynamoDuettes) Delete(ctx context.Context, videoID, id uuid.UUID) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.duettesTable),
		Key:                 duetteKey(videoID, id),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if isConditionFailed(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete duette: %w", err)
	}
	return nil
}

func sortNewestFirst(videos []*models.Video) {
	sort.SliceStable(videos, func(i, j int) bool {
		if videos[i].CreatedAt.Equal(videos[j].CreatedAt) {
			return videos[i].ID.String() < videos[j].ID.String()
		}
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
}
