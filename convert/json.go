package convert

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/Rican7/conjson"
	"github.com/Rican7/conjson/transform"
	"github.com/timewasted/go-accept-headers"
)

// JSON decodes JSON documents into typed values.  Keys are
// matched after conventional transformation so snake_case and
// camelCase documents bind to exported Go fields.
type JSON struct {
	trans []transform.Transformer
}

// Decode unmarshals data into a new value of type to.
func (j *JSON) Decode(data []byte, to reflect.Type) (any, error) {
	if to == nil {
		return nil, &ConversionError{data, to, ErrNoTargetType}
	}
	ptr := to.Kind() == reflect.Ptr
	target := to
	if ptr {
		target = to.Elem()
	}
	out := reflect.New(target)
	if err := json.Unmarshal(data, conjson.NewUnmarshaler(out.Interface(), j.trans...)); err != nil {
		return nil, &ConversionError{string(data), to, err}
	}
	if ptr {
		return out.Interface(), nil
	}
	return out.Elem().Interface(), nil
}

// DecodePayload decodes a []byte or string payload.
func (j *JSON) DecodePayload(payload any, to reflect.Type) (any, error) {
	switch p := payload.(type) {
	case []byte:
		return j.Decode(p, to)
	case string:
		return j.Decode([]byte(p), to)
	default:
		return nil, &ConversionError{payload, to,
			fmt.Errorf("%w: json payload must be []byte or string", ErrNotConvertible)}
	}
}

// NewJSON returns a JSON decoder using the supplied key
// transformers, or conventional keys when none are given.
func NewJSON(trans ...transform.Transformer) *JSON {
	if len(trans) == 0 {
		trans = []transform.Transformer{transform.ConventionalKeys()}
	}
	return &JSON{trans}
}

// IsJSON reports whether a content type names a JSON media type
// such as application/json or application/vnd.api+json.
func IsJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	for _, a := range accept.Parse(contentType) {
		if a.Subtype == "json" || strings.HasSuffix(a.Subtype, "+json") {
			return true
		}
	}
	return false
}
