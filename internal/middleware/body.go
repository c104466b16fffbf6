package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// BodyKey is the context key holding the parsed request body.
const BodyKey = "body"

// DefaultBodyLimit caps request bodies at 100kb.
const DefaultBodyLimit int64 = 100 * 1024

// BodyParser parses JSON and URL-encoded request bodies before any handler
// runs and stores the result under BodyKey. JSON must be an object or an
// array. Every other content type leaves an empty object.
//
// The raw bytes are kept under gin.BodyBytesKey so handlers can still call
// c.ShouldBindBodyWith.
func BodyParser(limit int64) gin.HandlerFunc {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}

	return func(c *gin.Context) {
		c.Set(BodyKey, map[string]any{})

		contentType := c.ContentType()
		if contentType != binding.MIMEJSON && contentType != binding.MIMEPOSTForm {
			c.Next()
			return
		}

		raw, ok := readBody(c, limit)
		if !ok {
			return
		}

		switch contentType {
		case binding.MIMEJSON:
			if !parseJSON(c, raw) {
				return
			}
		case binding.MIMEPOSTForm:
			if !parseForm(c, raw) {
				return
			}
		}

		c.Next()
	}
}

// Body returns the value stored by BodyParser, or an empty object.
func Body(c *gin.Context) any {
	if v, ok := c.Get(BodyKey); ok {
		return v
	}
	return map[string]any{}
}

func readBody(c *gin.Context, limit int64) ([]byte, bool) {
	if c.Request.Body == nil {
		return nil, true
	}

	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return nil, false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return nil, false
	}

	c.Set(gin.BodyBytesKey, raw)
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	return raw, true
}

func parseJSON(c *gin.Context, raw []byte) bool {
	if len(bytes.TrimSpace(raw)) == 0 {
		return true
	}

	// The decoder stops after the first value, so trailing data is checked here.
	if !json.Valid(raw) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return false
	}

	var v any
	if err := binding.JSON.BindBody(raw, &v); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return false
	}

	switch v.(type) {
	case map[string]any, []any:
		c.Set(BodyKey, v)
		return true
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "JSON body must be an object or an array"})
		return false
	}
}

func parseForm(c *gin.Context, raw []byte) bool {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid form body"})
		return false
	}

	body := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 1 {
			body[key] = vals[0]
		} else {
			body[key] = vals
		}
	}
	c.Set(BodyKey, body)
	return true
}
