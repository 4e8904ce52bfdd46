package classify

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Lookup order for the error-shaped input.
var (
	codeKeys       = []string{"code", "error_code", "type"}
	statusKeys     = []string{"statusCode", "status"}
	retryAfterKeys = []string{"retry_after", "retryAfter"}
)

// Fields is the error-shaped view of a raw value. Zero values mean absent.
type Fields struct {
	Code       Code
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

// ErrorCoder is implemented by SDK errors that expose a vendor code.
type ErrorCoder interface {
	ErrorCode() string
}

// StatusCoder is implemented by SDK errors that expose an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// extract reads Fields from any supported raw shape. Unsupported shapes
// yield empty Fields.
func extract(raw any) Fields {
	switch v := raw.(type) {
	case nil:
		return Fields{}
	case Fields:
		return v
	case *Fields:
		if v == nil {
			return Fields{}
		}
		return *v
	case map[string]any:
		return fieldsFromMap(v)
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, s := range v {
			m[k] = s
		}
		return fieldsFromMap(m)
	case json.RawMessage:
		return fieldsFromJSON(v)
	case []byte:
		return fieldsFromJSON(v)
	case error:
		return fieldsFromError(v)
	default:
		return Fields{}
	}
}

func fieldsFromJSON(data []byte) Fields {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return Fields{}
	}
	return fieldsFromMap(m)
}

func fieldsFromMap(m map[string]any) Fields {
	var f Fields
	for _, k := range codeKeys {
		if c, ok := codeFromValue(m[k]); ok {
			f.Code = c
			break
		}
	}
	for _, k := range statusKeys {
		if s, ok := intFromValue(m[k]); ok {
			f.StatusCode = s
			break
		}
	}
	if msg, ok := m["message"].(string); ok {
		f.Message = msg
	}
	for _, k := range retryAfterKeys {
		if secs, ok := floatFromValue(m[k]); ok && secs > 0 {
			f.RetryAfter = time.Duration(secs * float64(time.Second))
			break
		}
	}
	return f
}

// codeFromValue treats empty strings and zero numbers as absent.
func codeFromValue(v any) (Code, bool) {
	if s, ok := v.(string); ok {
		c := StringCode(s)
		return c, !c.IsZero()
	}
	n, ok := floatFromValue(v)
	if !ok {
		return Code{}, false
	}
	c := NumericCode(n)
	return c, !c.IsZero()
}

func intFromValue(v any) (int, bool) {
	switch n := v.(type) {
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || i == 0 {
			return 0, false
		}
		return i, true
	}
	f, ok := floatFromValue(v)
	if !ok || f == 0 || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func floatFromValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
