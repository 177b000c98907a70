package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/duette-app/duette/cmd/server/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type attrMap = map[string]map[string]any

// fakeDynamo answers the JSON protocol calls the catalog makes, on two
// tables keyed by id and by video_id + id
type fakeDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]attrMap

	batchCalls      int
	unprocessedOnce bool // first batch call leaves its last request unprocessed
	failBatchCall   int  // 1-based batch call that answers with an error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{tables: map[string]map[string]attrMap{
		"videos":  {},
		"duettes": {},
	}}
}

func sval(item attrMap, name string) string {
	s, _ := item[name]["S"].(string)
	return s
}

func itemKey(table string, key attrMap) string {
	if table == "duettes" {
		return sval(key, "video_id") + "|" + sval(key, "id")
	}
	return sval(key, "id")
}

func (f *fakeDynamo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	op := strings.TrimPrefix(r.Header.Get("X-Amz-Target"), "DynamoDB_20120810.")

	var req struct {
		TableName                 string
		Key                       attrMap
		Item                      attrMap
		ConditionExpression       string
		ExpressionAttributeValues attrMap
		RequestItems              map[string][]struct {
			DeleteRequest struct{ Key attrMap }
		}
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDynamoError(w, "SerializationException", err.Error())
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/x-amz-json-1.0")
	table := f.tables[req.TableName]

	switch op {
	case "GetItem":
		item, ok := table[itemKey(req.TableName, req.Key)]
		if !ok {
			w.Write([]byte(`{}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"Item": item})

	case "PutItem":
		_, exists := table[itemKey(req.TableName, req.Item)]
		if f.conditionFails(req.ConditionExpression, exists) {
			writeDynamoError(w, "ConditionalCheckFailedException", "The conditional request failed")
			return
		}
		table[itemKey(req.TableName, req.Item)] = req.Item
		w.Write([]byte(`{}`))

	case "DeleteItem":
		k := itemKey(req.TableName, req.Key)
		_, exists := table[k]
		if f.conditionFails(req.ConditionExpression, exists) {
			writeDynamoError(w, "ConditionalCheckFailedException", "The conditional request failed")
			return
		}
		delete(table, k)
		w.Write([]byte(`{}`))

	case "Query":
		videoID := sval(req.ExpressionAttributeValues, ":v")
		items := []attrMap{}
		for _, item := range table {
			if sval(item, "video_id") == videoID {
				items = append(items, item)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"Items": items, "Count": len(items)})

	case "Scan":
		items := []attrMap{}
		for _, item := range table {
			items = append(items, item)
		}
		json.NewEncoder(w).Encode(map[string]any{"Items": items, "Count": len(items)})

	case "BatchWriteItem":
		f.batchCalls++
		if f.batchCalls == f.failBatchCall {
			writeDynamoError(w, "ValidationException", "batch rejected")
			return
		}

		unprocessed := map[string][]any{}
		for name, requests := range req.RequestItems {
			for i, wr := range requests {
				if f.unprocessedOnce && i == len(requests)-1 {
					f.unprocessedOnce = false
					unprocessed[name] = append(unprocessed[name], map[string]any{
						"DeleteRequest": map[string]any{"Key": wr.DeleteRequest.Key},
					})
					continue
				}
				delete(f.tables[name], itemKey(name, wr.DeleteRequest.Key))
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"UnprocessedItems": unprocessed})

	default:
		writeDynamoError(w, "UnknownOperationException", op)
	}
}

func (f *fakeDynamo) conditionFails(expr string, exists bool) bool {
	switch expr {
	case "attribute_exists(id)":
		return !exists
	case "attribute_not_exists(id)":
		return exists
	}
	return false
}

func writeDynamoError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/x-amz-json-1.0")
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, `{"__type":"com.amazonaws.dynamodb.v20120810#%s","message":%q}`, code, message)
}

func newFakeDynamoCatalog(t *testing.T) (*DynamoCatalog, *fakeDynamo) {
	fake := newFakeDynamo()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	prev := unprocessedBackoff
	unprocessedBackoff = time.Millisecond
	t.Cleanup(func() { unprocessedBackoff = prev })

	client := dynamodb.New(dynamodb.Options{
		Region:                "us-east-1",
		BaseEndpoint:          aws.String(srv.URL),
		Credentials:           aws.AnonymousCredentials{},
		AccountIDEndpointMode: aws.AccountIDEndpointModeDisabled,
		RetryMaxAttempts:      1,
	})
	return NewDynamoCatalog(client, "videos", "duettes"), fake
}

func seedDuettes(t *testing.T, cat *DynamoCatalog, n int) *models.Video {
	ctx := context.Background()
	v := &models.Video{ID: uuid.New(), Title: "Cello Suite", Composer: strPtr("Bach"), Performer: "Yo"}
	require.NoError(t, cat.Videos().Create(ctx, v))
	for i := 0; i < n; i++ {
		require.NoError(t, cat.Duettes().Create(ctx, &models.Duette{ID: uuid.New(), VideoID: v.ID}))
	}
	return v
}

func TestDynamoCatalogVideos(t *testing.T) {
	cat, _ := newFakeDynamoCatalog(t)
	videos := cat.Videos()
	ctx := context.Background()

	v := &models.Video{ID: uuid.New(), Title: "Nocturne", Composer: strPtr("Chopin"), Performer: "Maria"}
	require.NoError(t, videos.Create(ctx, v))
	assert.Error(t, videos.Create(ctx, v))

	got, err := videos.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nocturne", got.Title)
	assert.Equal(t, "Chopin", *got.Composer)

	found, err := videos.List(ctx, "maria")
	require.NoError(t, err)
	require.Len(t, found, 1)

	none, err := videos.List(ctx, "bach")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = videos.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, videos.Update(ctx, &models.Video{ID: uuid.New(), Title: "x", Performer: "y"}), ErrNotFound)
}

func TestDynamoCatalogDeleteRetriesUnprocessed(t *testing.T) {
	cat, fake := newFakeDynamoCatalog(t)
	ctx := context.Background()
	v := seedDuettes(t, cat, 30)
	fake.unprocessedOnce = true

	removed, err := cat.Videos().Delete(ctx, v.ID)
	require.NoError(t, err)
	assert.Len(t, removed, 30)
	assert.Equal(t, 3, fake.batchCalls)
	assert.Empty(t, fake.tables["duettes"])

	_, err = cat.Videos().GetByID(ctx, v.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = cat.Videos().Delete(ctx, v.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoCatalogDeleteFailureKeepsVideo(t *testing.T) {
	cat, fake := newFakeDynamoCatalog(t)
	ctx := context.Background()
	v := seedDuettes(t, cat, 30)
	fake.failBatchCall = 2

	removed, err := cat.Videos().Delete(ctx, v.ID)
	require.Error(t, err)
	assert.Len(t, removed, batchWriteLimit)
	assert.Len(t, fake.tables["duettes"], 5)

	_, err = cat.Videos().GetByID(ctx, v.ID)
	require.NoError(t, err)

	removed, err = cat.Videos().Delete(ctx, v.ID)
	require.NoError(t, err)
	assert.Len(t, removed, 5)
}
