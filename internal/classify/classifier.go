// Package classify turns failed third-party calls into NormalizedErrors.
//
// One Classifier exists per integration. It carries the service name and an
// optional override table keyed by vendor code; everything else is shared:
//   - Category: the closed eight-way taxonomy
//   - NormalizedError: the immutable classified value
//   - Registry: the per-service classifiers built from configuration
//
// Classification is a pure function of (code, status, overrides). It never
// performs I/O and never fails: unrecognizable input becomes Unknown.
package classify

import (
	"net/http"
	"runtime"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Override pins a vendor code to a category and retry decision.
type Override struct {
	Category  Category `yaml:"category"  json:"category"`
	Retryable bool     `yaml:"retryable" json:"retryable"`
}

// Overrides maps exact vendor codes to their Override.
type Overrides map[string]Override

// Classifier classifies errors raised by a single integration.
type Classifier struct {
	service   string
	name      string
	overrides Overrides
}

// New builds a classifier for service. The override table is copied.
func New(service string, overrides Overrides) *Classifier {
	copied := make(Overrides, len(overrides))
	for code, o := range overrides {
		copied[code] = o
	}
	return &Classifier{
		service:   service,
		name:      errorName(service),
		overrides: copied,
	}
}

// Service returns the integration name the classifier was built for.
func (c *Classifier) Service() string {
	return c.service
}

// Overrides returns a copy of the override table.
func (c *Classifier) Overrides() Overrides {
	out := make(Overrides, len(c.overrides))
	for code, o := range c.overrides {
		out[code] = o
	}
	return out
}

// Classify builds the NormalizedError for raw. A raw *NormalizedError is
// returned as is; an error wrapping one gets a new NormalizedError seeded
// from the wrapped one, so this classifier's service and overrides apply.
func (c *Classifier) Classify(raw any) (ne *NormalizedError) {
	if direct, ok := raw.(*NormalizedError); ok && direct != nil {
		return direct
	}

	pcs := make([]uintptr, 32)
	pcs = pcs[:runtime.Callers(2, pcs)]

	// Malformed values (typed-nil SDK errors and the like) degrade to Unknown.
	defer func() {
		if p := recover(); p != nil {
			ne = c.build(Fields{}, CategoryUnknown, false, raw, pcs)
		}
	}()

	f := extract(raw)
	category, retryable := c.categorize(f, raw)
	return c.build(f, category, retryable, raw, pcs)
}

func (c *Classifier) build(f Fields, category Category, retryable bool, raw any, stack []uintptr) *NormalizedError {
	msg := f.Message
	if msg == "" {
		msg = DefaultMessage
	}
	return &NormalizedError{
		service:    c.service,
		name:       c.name,
		code:       f.Code,
		category:   category,
		statusCode: f.StatusCode,
		message:    msg,
		retryable:  retryable,
		retryAfter: f.RetryAfter,
		cause:      raw,
		stack:      stack,
	}
}

func (c *Classifier) categorize(f Fields, raw any) (Category, bool) {
	if o, ok := c.overrides[f.Code.Key()]; ok {
		return o.Category, o.Retryable
	}

	err, isErr := raw.(error)
	if isErr {
		if inner, ok := As(err); ok && inner != nil {
			return inner.category, inner.retryable
		}
	}

	category := CategoryForStatus(f.StatusCode)
	if category == CategoryUnknown && f.StatusCode == 0 && isErr {
		if fallback, ok := fallbackCategory(err); ok {
			category = fallback
		}
	}
	return category, category.Retryable()
}

// CategoryForStatus applies the HTTP status rules. Zero means no status.
func CategoryForStatus(status int) Category {
	switch {
	case status == http.StatusUnauthorized:
		return CategoryAuthentication
	case status == http.StatusForbidden:
		return CategoryAuthorization
	case status == http.StatusNotFound:
		return CategoryNotFound
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		return CategoryValidation
	case status == http.StatusTooManyRequests:
		return CategoryRateLimit
	case status >= http.StatusInternalServerError:
		return CategoryServer
	default:
		return CategoryUnknown
	}
}

// StatusForCategory is the inverse used when a classified error has to be
// surfaced over HTTP without an originating status.
func StatusForCategory(c Category) int {
	switch c {
	case CategoryAuthentication:
		return http.StatusUnauthorized
	case CategoryAuthorization:
		return http.StatusForbidden
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryRateLimit:
		return http.StatusTooManyRequests
	case CategoryNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorName turns "google-sheets" into "GoogleSheetsError".
func errorName(service string) string {
	words := strings.FieldsFunc(service, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return "IntegrationError"
	}
	caser := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	for _, w := range words {
		b.WriteString(caser.String(w))
	}
	b.WriteString("Error")
	return b.String()
}
