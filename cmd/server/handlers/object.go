package handlers

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/duette-app/duette/cmd/server/container"
	"github.com/duette-app/duette/common/bootstrap"
	"github.com/duette-app/duette/common/objectstore"
	"github.com/labstack/echo/v4"
)

// ObjectHandler proxies object reads and writes to the configured bucket.
// Every store failure answers 400 with the upstream error as the body.
type ObjectHandler struct {
	components *bootstrap.Components
	store      objectstore.Store
}

// NewObjectHandler creates a new object handler
func NewObjectHandler(c *container.Container) *ObjectHandler {
	return &ObjectHandler{
		components: c.Components,
		store:      c.Store,
	}
}

// PutObjectRequest is the POST body, Body is base64 encoded in JSON
type PutObjectRequest struct {
	Key  string `json:"Key"`
	Body []byte `json:"Body"`
}

// PostObject stores an object sent as JSON
// POST /api/aws/
func (h *ObjectHandler) PostObject(c echo.Context) error {
	var req PutObjectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, objectstore.ErrorPayload{
			Code:    "InvalidRequest",
			Message: "invalid request body",
		})
	}
	return h.put(c, req.Key, req.Body, "")
}

// PutObject stores the raw request body
// PUT /api/aws/:Key
func (h *ObjectHandler) PutObject(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, objectstore.ErrorPayload{
			Code:    "IncompleteBody",
			Message: err.Error(),
		})
	}
	key, err := keyParam(c)
	if err != nil {
		return invalidKey(c)
	}
	return h.put(c, key, body, c.Request().Header.Get(echo.HeaderContentType))
}

func (h *ObjectHandler) put(c echo.Context, key string, body []byte, contentType string) error {
	if key == "" {
		return missingKey(c)
	}
	defer h.components.Telemetry.RecordDuration("object.put", time.Now())

	result, err := h.store.Put(c.Request().Context(), key, body, contentType)
	if err != nil {
		h.components.Logger.WithContext(c.Request().Context()).WithObjectKey(key).Warn("put object failed", "error", err)
		return c.JSON(http.StatusBadRequest, objectstore.Payload(err))
	}
	return c.JSON(http.StatusOK, result)
}

// GetObject streams an object back unmodified
// GET /api/aws/:Key
func (h *ObjectHandler) GetObject(c echo.Context) error {
	key, err := keyParam(c)
	if err != nil {
		return invalidKey(c)
	}
	if key == "" {
		return missingKey(c)
	}
	defer h.components.Telemetry.RecordDuration("object.get", time.Now())

	obj, err := h.store.Get(c.Request().Context(), key)
	if err != nil {
		h.components.Logger.WithContext(c.Request().Context()).WithObjectKey(key).Debug("get object failed", "error", err)
		return c.JSON(http.StatusBadRequest, objectstore.Payload(err))
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	header := c.Response().Header()
	if obj.ContentLength > 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(obj.ContentLength, 10))
	}
	if obj.ETag != "" {
		header.Set("ETag", obj.ETag)
	}
	return c.Stream(http.StatusOK, contentType, obj.Body)
}

// DeleteObject removes an object
// DELETE /api/aws/:Key
func (h *ObjectHandler) DeleteObject(c echo.Context) error {
	key, err := keyParam(c)
	if err != nil {
		return invalidKey(c)
	}
	if key == "" {
		return missingKey(c)
	}

	if err := h.store.Delete(c.Request().Context(), key); err != nil {
		h.components.Logger.WithContext(c.Request().Context()).WithObjectKey(key).Warn("delete object failed", "error", err)
		return c.JSON(http.StatusBadRequest, objectstore.Payload(err))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"Key":     key,
		"deleted": true,
	})
}

// keyParam returns the decoded :Key. echo routes on the escaped path when the
// request carries one (a key containing "/" arrives as %2F), and then leaves
// the parameter escaped.
func keyParam(c echo.Context) (string, error) {
	key := c.Param("Key")
	if c.Request().URL.RawPath == "" {
		return key, nil
	}
	return url.PathUnescape(key)
}

func invalidKey(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, objectstore.ErrorPayload{
		Code:    "InvalidArgument",
		Message: "Key is not a valid path segment",
	})
}

func missingKey(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, objectstore.ErrorPayload{
		Code:    "InvalidArgument",
		Message: "Key is required",
	})
}
