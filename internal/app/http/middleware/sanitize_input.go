package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

// CredentialFields are request keys whose values must reach handlers byte
// for byte. Stripping markup from a password would silently change it.
var CredentialFields = []string{"password", "old_password", "new_password", "id_token", "credential"}

var errTrailingData = errors.New("trailing data after JSON document")

// SanitizeInput strips markup from every string of a JSON request body,
// nested objects and arrays included. Values under the verbatim keys are left
// as sent, at any depth. Non-JSON bodies pass through.
func SanitizeInput(verbatim ...string) gin.HandlerFunc {
	s := jsonSanitizer{
		policy:   bluemonday.StrictPolicy(),
		verbatim: make(map[string]struct{}, len(verbatim)),
	}
	for _, k := range verbatim {
		s.verbatim[k] = struct{}{}
	}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}
		if c.ContentType() != gin.MIMEJSON || c.Request.Body == nil {
			c.Next()
			return
		}

		buf, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid body"})
			return
		}
		if len(bytes.TrimSpace(buf)) == 0 {
			c.Request.Body = io.NopCloser(bytes.NewReader(buf))
			c.Next()
			return
		}

		cleaned, err := s.rewrite(buf)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Malformed JSON"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(cleaned))
		c.Request.ContentLength = int64(len(cleaned))

		c.Next()
	}
}

type jsonSanitizer struct {
	policy   *bluemonday.Policy
	verbatim map[string]struct{}
}

// rewrite decodes one JSON document, cleans it and encodes it again. Numbers
// keep their original text.
func (s jsonSanitizer) rewrite(buf []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errTrailingData
	}
	return json.Marshal(s.clean(doc))
}

func (s jsonSanitizer) clean(v any) any {
	switch t := v.(type) {
	case string:
		return s.policy.Sanitize(t)
	case map[string]any:
		for k, child := range t {
			if _, ok := s.verbatim[k]; ok {
				continue
			}
			t[k] = s.clean(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = s.clean(child)
		}
		return t
	default:
		return v
	}
}
