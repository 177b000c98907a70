// Package objectstore is the bucket behind the object proxy. Errors coming
// out of a Store keep the upstream code and message so handlers can pass
// them through untouched.
package objectstore

import (
	"context"
	"errors"
	"io"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
)

// Store is a flat key/value bucket of opaque blobs
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (*PutResult, error)
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// PutResult is the metadata returned by a successful put
type PutResult struct {
	Key       string `json:"Key"`
	ETag      string `json:"ETag,omitempty"`
	VersionID string `json:"VersionId,omitempty"`
	Size      int64  `json:"Size"`
}

// Object is a readable object, callers must close Body
type Object struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	ETag          string
}

// Error is a store failure with an upstream-style code
type Error struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// ErrorCode and ErrorMessage let *Error satisfy smithy.APIError
func (e *Error) ErrorCode() string    { return e.Code }
func (e *Error) ErrorMessage() string { return e.Message }
func (e *Error) ErrorFault() smithy.ErrorFault {
	if e.StatusCode >= 500 {
		return smithy.FaultServer
	}
	return smithy.FaultClient
}

// ErrorPayload is the JSON body returned for a failed store call
type ErrorPayload struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// S3 texts for errors the SDK returns without a message
var defaultMessages = map[string]string{
	"NoSuchKey":    "The specified key does not exist.",
	"NotFound":     "The specified key does not exist.",
	"NoSuchBucket": "The specified bucket does not exist.",
}

// Payload extracts the upstream code, message and status from err
func Payload(err error) ErrorPayload {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		p := ErrorPayload{
			Code:    apiErr.ErrorCode(),
			Message: apiErr.ErrorMessage(),
		}
		// modeled S3 errors such as NoSuchKey decode without their message
		if p.Message == "" {
			p.Message = defaultMessages[p.Code]
		}
		if p.Message == "" {
			p.Message = err.Error()
		}
		var respErr *awshttp.ResponseError
		var storeErr *Error
		switch {
		case errors.As(err, &storeErr):
			p.StatusCode = storeErr.StatusCode
		case errors.As(err, &respErr):
			p.StatusCode = respErr.HTTPStatusCode()
		}
		return p
	}

	return ErrorPayload{
		Code:    "InternalError",
		Message: err.Error(),
	}
}

// IsNotFound reports whether err means the key does not exist
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}

func noSuchKey() *Error {
	return &Error{
		Code:       "NoSuchKey",
		Message:    defaultMessages["NoSuchKey"],
		StatusCode: http.StatusNotFound,
	}
}
