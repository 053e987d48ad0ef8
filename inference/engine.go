package inference

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Built-in model identifiers.
const (
	ModelIdentity = "builtin:identity"
	ModelInpaint  = "builtin:inpaint"
)

// Registry is the default Engine. It dispatches on the model identifier.
type Registry struct {
	httpClient *http.Client
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithHTTPClient sets the client used for remote models.
func WithHTTPClient(c *http.Client) RegistryOption {
	return func(r *Registry) {
		r.httpClient = c
	}
}

// WithTimeout sets the per-request timeout for remote models.
func WithTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.httpClient = &http.Client{Timeout: d}
	}
}

// NewRegistry creates a Registry with a default remote timeout.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{httpClient: &http.Client{Timeout: DefaultRemoteTimeout}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load resolves spec.ID to a model.
func (r *Registry) Load(ctx context.Context, spec ModelSpec) (Model, error) {
	id := strings.TrimSpace(spec.ID)
	if id == "" {
		return nil, ErrEmptyModel
	}
	if spec.Infill.Width == 0 || spec.Infill.Height == 0 {
		return nil, fmt.Errorf("%w: infill area is empty", ErrShapeMismatch)
	}

	switch {
	case id == ModelIdentity:
		return &identityModel{infill: spec.Infill}, nil
	case id == ModelInpaint:
		return &inpaintModel{infill: spec.Infill}, nil
	case strings.HasPrefix(id, "http://"), strings.HasPrefix(id, "https://"):
		m := &remoteModel{url: id, infill: spec.Infill, httpClient: r.httpClient}
		if err := m.probe(ctx); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
}
