package classify

import (
	"encoding/json"
	"strconv"
)

const defaultCode = "unknown"

// Code is an opaque vendor error code, kept as the string or number it arrived as.
type Code struct {
	str     string
	num     float64
	numeric bool
	set     bool
}

// StringCode wraps a textual vendor code.
func StringCode(s string) Code {
	if s == "" {
		return Code{}
	}
	return Code{str: s, set: true}
}

// NumericCode wraps a numeric vendor code.
func NumericCode(n float64) Code {
	if n == 0 {
		return Code{}
	}
	return Code{num: n, numeric: true, set: true}
}

// IsZero reports whether no code was present.
func (c Code) IsZero() bool {
	return !c.set
}

// IsNumeric reports whether the vendor sent a number.
func (c Code) IsNumeric() bool {
	return c.numeric
}

// Key is the exact-match form used for override lookup.
func (c Code) Key() string {
	switch {
	case !c.set:
		return defaultCode
	case c.numeric:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	default:
		return c.str
	}
}

func (c Code) String() string {
	return c.Key()
}

func (c Code) MarshalJSON() ([]byte, error) {
	if c.numeric {
		return []byte(strconv.FormatFloat(c.num, 'f', -1, 64)), nil
	}
	return json.Marshal(c.Key())
}

func (c *Code) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, _ := codeFromValue(v)
	*c = parsed
	return nil
}
