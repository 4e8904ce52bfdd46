package classify

import (
	"fmt"
	"strings"
)

// Category is the closed set of failure kinds every integration error maps to.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryAuthentication
	CategoryAuthorization
	CategoryValidation
	CategoryNotFound
	CategoryRateLimit
	CategoryServer
	CategoryNetwork
)

var categoryNames = map[Category]string{
	CategoryUnknown:        "unknown",
	CategoryAuthentication: "authentication",
	CategoryAuthorization:  "authorization",
	CategoryValidation:     "validation",
	CategoryNotFound:       "not_found",
	CategoryRateLimit:      "rate_limit",
	CategoryServer:         "server",
	CategoryNetwork:        "network",
}

// Categories lists every category in declaration order.
func Categories() []Category {
	return []Category{
		CategoryAuthentication,
		CategoryAuthorization,
		CategoryValidation,
		CategoryNotFound,
		CategoryRateLimit,
		CategoryServer,
		CategoryNetwork,
		CategoryUnknown,
	}
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return categoryNames[CategoryUnknown]
}

// Retryable reports the default retry policy for the category.
func (c Category) Retryable() bool {
	return c == CategoryRateLimit || c == CategoryServer
}

// ParseCategory parses the text form of a category, ignoring case.
func ParseCategory(s string) (Category, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for c, name := range categoryNames {
		if name == want {
			return c, nil
		}
	}
	return CategoryUnknown, fmt.Errorf("unknown error category %q", s)
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// UnmarshalYAML lets override tables name categories by their text form.
func (c *Category) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return c.UnmarshalText([]byte(s))
}
