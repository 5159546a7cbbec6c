package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxJSONBody caps request bodies that are decoded into memory
const maxJSONBody = 10 << 20

var errEmptyBody = errors.New("request body is required")

// BindError wraps a request body that could not be decoded
type BindError struct {
	Err error
}

func (e *BindError) Error() string {
	return "invalid request body: " + e.Err.Error()
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Malformed reports whether the body was not JSON at all, as opposed to JSON
// carrying a value of the wrong shape.
func (e *BindError) Malformed() bool {
	var syntaxErr *json.SyntaxError
	var maxErr *http.MaxBytesError
	return errors.Is(e.Err, errEmptyBody) || errors.Is(e.Err, io.ErrUnexpectedEOF) ||
		errors.As(e.Err, &syntaxErr) || errors.As(e.Err, &maxErr)
}

// BindNestedOrFlat decodes the request body into obj. The body may wrap the
// object under key (e.g. {"loan": {...}}) or send it flat ({...}).
func BindNestedOrFlat(c *gin.Context, key string, obj interface{}) error {
	var bodyBytes []byte
	if c.Request.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxJSONBody))
		if err != nil {
			return &BindError{Err: err}
		}
	}
	// Restore body for subsequent reads
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	if len(bytes.TrimSpace(bodyBytes)) == 0 {
		return &BindError{Err: errEmptyBody}
	}

	var nestedMap map[string]json.RawMessage
	if err := json.Unmarshal(bodyBytes, &nestedMap); err == nil {
		if val, ok := nestedMap[key]; ok && len(nestedMap) == 1 {
			if err := json.Unmarshal(val, obj); err != nil {
				return &BindError{Err: err}
			}
			return nil
		}
	}

	if err := json.Unmarshal(bodyBytes, obj); err != nil {
		return &BindError{Err: err}
	}
	return nil
}
