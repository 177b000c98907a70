package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// EventsClient subscribes to the server's catalog event stream
type EventsClient struct {
	url    string
	dialer *websocket.Dialer
	logger Logger
}

// NewEventsClient derives the websocket URL from the http(s) baseURL
func NewEventsClient(baseURL string, logger Logger) *EventsClient {
	u := strings.TrimRight(baseURL, "/") + "/api/events"
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}

	return &EventsClient{
		url:    u,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

// Subscribe connects and calls handler for each event on a background
// goroutine. The returned function closes the connection and is safe to call
// more than once.
func (c *EventsClient) Subscribe(ctx context.Context, handler func(CatalogEvent)) (func(), error) {
	header := http.Header{}
	if userID, ok := GetUserID(ctx); ok {
		header.Set("X-User-ID", userID)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to subscribe: %w", newAPIError(resp))
		}
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Warn("event stream closed", "error", err)
				}
				return
			}

			var event CatalogEvent
			if err := json.Unmarshal(data, &event); err != nil {
				c.logger.Warn("dropping malformed event", "error", err)
				continue
			}
			handler(event)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()

	c.logger.Info("subscribed to catalog events", "url", c.url)

	return func() {
		cancel()
		<-done
	}, nil
}
