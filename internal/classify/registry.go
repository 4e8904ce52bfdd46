package classify

import "sort"

// ServiceDef declares one integration and its override table.
type ServiceDef struct {
	Name      string
	Overrides Overrides
}

// Registry holds the classifiers of every configured integration.
// It is built once at startup and only read afterwards.
type Registry struct {
	classifiers map[string]*Classifier
}

// NewRegistry builds a registry. Later definitions replace earlier ones
// with the same name.
func NewRegistry(defs ...ServiceDef) *Registry {
	r := &Registry{classifiers: make(map[string]*Classifier, len(defs))}
	for _, d := range defs {
		r.classifiers[d.Name] = New(d.Name, d.Overrides)
	}
	return r
}

// For returns the classifier registered for service, or an override-free
// classifier carrying the service name.
func (r *Registry) For(service string) *Classifier {
	if c, ok := r.classifiers[service]; ok {
		return c
	}
	return New(service, nil)
}

// Has reports whether service was configured.
func (r *Registry) Has(service string) bool {
	_, ok := r.classifiers[service]
	return ok
}

// Services returns the configured service names, sorted.
func (r *Registry) Services() []string {
	names := make([]string, 0, len(r.classifiers))
	for name := range r.classifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
