package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ObjectClient talks to the /api/aws object proxy
type ObjectClient struct {
	baseURL string
	http    *HTTPClient
	logger  Logger
}

// NewObjectClient creates an object proxy client. No timeout is set since
// media transfers have no size limit.
func NewObjectClient(baseURL string, logger Logger) *ObjectClient {
	return NewObjectClientWithHTTP(baseURL, &http.Client{}, logger)
}

// NewObjectClientWithHTTP uses the given http.Client
func NewObjectClientWithHTTP(baseURL string, httpClient *http.Client, logger Logger) *ObjectClient {
	return &ObjectClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    NewHTTPClient(httpClient, logger),
		logger:  logger,
	}
}

// Put uploads body under key with the JSON {Key, Body} form
func (c *ObjectClient) Put(ctx context.Context, key string, body []byte) (*PutResult, error) {
	payload := struct {
		Key  string `json:"Key"`
		Body []byte `json:"Body"`
	}{Key: key, Body: body}

	resp, err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/api/aws/", payload)
	if err != nil {
		return nil, fmt.Errorf("failed to put object: %w", err)
	}

	var res PutResult
	if err := decodeJSON(resp, http.StatusOK, &res); err != nil {
		return nil, err
	}

	c.logger.Info("object uploaded", "key", key, "size", len(body))
	return &res, nil
}

// Get downloads the whole object into memory
func (c *ObjectClient) Get(ctx context.Context, key string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.Download(ctx, key, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Download streams the object into w and returns the bytes written
func (c *ObjectClient) Download(ctx context.Context, key string, w io.Writer) (int64, error) {
	resp, err := c.http.DoRequest(ctx, http.MethodGet, c.objectURL(key), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, newAPIError(resp)
	}

	start := time.Now()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read object %s: %w", key, err)
	}

	c.logger.Debug("object downloaded", "key", key, "size", n, "duration_ms", time.Since(start).Milliseconds())
	return n, nil
}

// Delete removes the object
func (c *ObjectClient) Delete(ctx context.Context, key string) error {
	resp, err := c.http.DoRequest(ctx, http.MethodDelete, c.objectURL(key), nil)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return decodeJSON(resp, http.StatusOK, nil)
}

func (c *ObjectClient) objectURL(key string) string {
	return c.baseURL + "/api/aws/" + url.PathEscape(key)
}
