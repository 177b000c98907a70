package handlers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/duette-app/duette/cmd/server/container"
	"github.com/duette-app/duette/cmd/server/models"
	"github.com/duette-app/duette/cmd/server/routes"
	"github.com/duette-app/duette/common/bootstrap"
	"github.com/duette-app/duette/common/config"
	"github.com/duette-app/duette/common/logger"
	"github.com/duette-app/duette/common/objectkey"
	"github.com/duette-app/duette/common/objectstore"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	e     *echo.Echo
	c     *container.Container
	store *objectstore.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := &config.Config{
		Service: config.ServiceConfig{Name: "test", Port: 8080},
		Storage: config.StorageConfig{Backend: "memory"},
		Catalog: config.CatalogConfig{Backend: "memory"},
		Cache:   config.CacheConfig{Enabled: true, DefaultTTL: time.Minute},
		Queue:   config.QueueConfig{Type: "memory", BufferSize: 100},
	}
	components, err := bootstrap.Setup(ctx, "test",
		bootstrap.WithCustomConfig(cfg),
		bootstrap.WithCustomLogger(logger.Discard()),
	)
	require.NoError(t, err)

	c, err := container.NewContainer(ctx, components)
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))

	t.Cleanup(func() {
		cancel()
		components.Shutdown(context.Background())
	})

	e := echo.New()
	routes.Register(e, c)
	return &testServer{e: e, c: c, store: c.Store.(*objectstore.MemoryStore)}
}

func (s *testServer) do(method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(method, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	return s.do(method, path, data, echo.MIMEApplicationJSON)
}

func TestObjectRoundTrip(t *testing.T) {
	s := newTestServer(t)
	content := []byte("0123456789")

	rec := s.do(http.MethodPut, "/api/aws/abc123def456", content, "video/quicktime")
	require.Equal(t, http.StatusOK, rec.Code)

	var put objectstore.PutResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &put))
	assert.Equal(t, "abc123def456", put.Key)
	assert.EqualValues(t, 10, put.Size)
	assert.NotEmpty(t, put.ETag)

	rec = s.do(http.MethodGet, "/api/aws/abc123def456", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, content, rec.Body.Bytes())
	assert.Equal(t, "video/quicktime", rec.Header().Get(echo.HeaderContentType))
}

func TestPostObjectBase64(t *testing.T) {
	s := newTestServer(t)
	content := []byte{0x00, 0xff, 0x10, 0x20}

	rec := s.doJSON(http.MethodPost, "/api/aws/", map[string]string{
		"Key":  "v1.mov",
		"Body": base64.StdEncoding.EncodeToString(content),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/aws/v1.mov", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, content, rec.Body.Bytes())
	assert.Equal(t, echo.MIMEOctetStream, rec.Header().Get(echo.HeaderContentType))

	rec = s.doJSON(http.MethodPost, "/api/aws/", map[string]string{"Body": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMissingObjectPassesUpstreamError(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/aws/missing-key", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var payload objectstore.ErrorPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "NoSuchKey", payload.Code)
	assert.Equal(t, http.StatusNotFound, payload.StatusCode)
}

func TestDeleteObject(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, "/api/aws/k.mov", []byte("x"), "").Code)

	rec := s.do(http.MethodDelete, "/api/aws/k.mov", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"Key":"k.mov","deleted":true}`, rec.Body.String())
	assert.Empty(t, s.store.Keys())
}

func TestObjectKeysNeedingEscape(t *testing.T) {
	s := newTestServer(t)

	for _, key := range []string{"a/b.mov", "my take.mov", "100%.mov", "café.mov"} {
		path := "/api/aws/" + url.PathEscape(key)
		content := []byte("take " + key)

		rec := s.do(http.MethodPut, path, content, "")
		require.Equal(t, http.StatusOK, rec.Code, key)
		assert.Contains(t, s.store.Keys(), key)

		rec = s.do(http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusOK, rec.Code, key)
		assert.Equal(t, content, rec.Body.Bytes(), key)

		rec = s.do(http.MethodDelete, path, nil, "")
		require.Equal(t, http.StatusOK, rec.Code, key)
		assert.NotContains(t, s.store.Keys(), key)
	}
}

func createVideo(t *testing.T, s *testServer, title string) models.Video {
	rec := s.doJSON(http.MethodPost, "/api/video", map[string]string{"title": title, "performer": "Ann"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var v models.Video
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestVideoCRUD(t *testing.T) {
	s := newTestServer(t)

	v := createVideo(t, s, "Ave Maria")
	createVideo(t, s, "Bolero")

	rec := s.do(http.MethodGet, "/api/video?val=ave", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Video
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, v.ID, list[0].ID)

	rec = s.do(http.MethodGet, "/api/video/"+v.ID.String(), nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPatch, "/api/video/"+v.ID.String(),
		[]byte(`[{"op":"replace","path":"/title","value":"Ave"}]`), "application/json-patch+json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"title":"Ave"`)

	rec = s.do(http.MethodDelete, "/api/video/"+v.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted":true`)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/video/"+v.ID.String(), nil, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/api/video/"+v.ID.String(), nil, "").Code)
}

func TestVideoBadRequests(t *testing.T) {
	s := newTestServer(t)
	v := createVideo(t, s, "t")

	cases := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"malformed id", http.MethodGet, "/api/video/not-a-uuid", ""},
		{"missing performer", http.MethodPost, "/api/video", `{"title":"x"}`},
		{"bad filter", http.MethodGet, "/api/video?filter=" + "video.title%20%3D%3D", ""},
		{"patch id", http.MethodPatch, "/api/video/" + v.ID.String(), `[{"op":"add","path":"/id","value":"x"}]`},
		{"malformed duette id", http.MethodDelete, "/api/video/" + v.ID.String() + "/duettes/nope", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(tc.method, tc.path, []byte(tc.body), echo.MIMEApplicationJSON)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestDeleteVideoRemovesDuetteObjects(t *testing.T) {
	s := newTestServer(t)
	v := createVideo(t, s, "t")

	rec := s.do(http.MethodPost, "/api/video/"+v.ID.String()+"/duettes", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var d models.Duette
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, objectkey.Duette(v.ID.String(), d.ID.String()), d.ObjectKey)

	rec = s.do(http.MethodGet, "/api/video/"+v.ID.String()+"/duettes", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), d.ID.String())

	require.Equal(t, http.StatusOK, s.do(http.MethodPut, "/api/aws/"+d.ObjectKey, []byte("take"), "").Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/video/"+v.ID.String(), nil, "").Code)

	assert.Eventually(t, func() bool { return len(s.store.Keys()) == 0 }, 2*time.Second, 10*time.Millisecond)

	rec = s.do(http.MethodPost, "/api/video/"+uuid.NewString()+"/duettes", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventsWebsocket(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.e)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.c.Hub.ConnectionCount() == 1 }, time.Second, 5*time.Millisecond)

	v := createVideo(t, s, "t")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var event models.CatalogEvent
	require.NoError(t, json.Unmarshal(msg, &event))
	assert.Equal(t, models.EventVideoCreated, event.Type)
	assert.Equal(t, v.ID, event.VideoID)
}
