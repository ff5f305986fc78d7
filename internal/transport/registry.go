package transport

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/alanbriolat/download-manager/generic"
)

var (
	ErrDuplicateTransport = errors.New("duplicate transport name")
	ErrInvalidTransport   = errors.New("invalid transport")
	ErrUnknownTransport   = errors.New("unknown transport")
)

var (
	PriorityHighest int16 = math.MinInt16
	PriorityDefault int16 = 0
	PriorityLowest  int16 = math.MaxInt16
)

// An Entry registers a Transport as the handler for a set of URL schemes.
type Entry struct {
	Name      string
	Schemes   generic.Set[string]
	Transport Transport
	// Priority of the entry, lower (including negative) means matching earlier.
	Priority int16
}

// A Registry is itself a Transport, which routes each request to the highest priority Transport that accepts the
// URL's scheme.
type Registry struct {
	mu      sync.RWMutex
	entries []*Entry
	byName  map[string]*Entry
}

// Add registers an Entry with the Registry. Entry.Name, Entry.Schemes and Entry.Transport must be set, and
// Entry.Name must be unique within the Registry.
func (r *Registry) Add(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byName == nil {
		r.byName = make(map[string]*Entry)
	}
	if e.Name == "" || e.Schemes == nil || e.Schemes.Count() == 0 || e.Transport == nil {
		return ErrInvalidTransport
	}
	if _, ok := r.byName[e.Name]; ok {
		return ErrDuplicateTransport
	}
	r.byName[e.Name] = &e
	r.entries = append(r.entries, &e)
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].Priority < r.entries[j].Priority
	})
	return nil
}

// MustAdd wraps Add but panics if there is an error.
func (r *Registry) MustAdd(e Entry) {
	generic.Unwrap_(r.Add(e))
}

// List returns the names of registered transports in priority order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.Name)
	}
	return names
}

// Get returns the named Transport.
func (r *Registry) Get(name string) (Transport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.byName[name]; ok {
		return e.Transport, nil
	}
	return nil, ErrUnknownTransport
}

// Match finds the Transport for rawURL, or returns ErrNoTransport wrapping the reason each entry was rejected.
func (r *Registry) Match(rawURL string) (Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoTransport, err)
	}
	scheme := strings.ToLower(u.Scheme)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result error
	for _, e := range r.entries {
		if e.Schemes.Contains(scheme) {
			return e.Transport, nil
		}
		result = multierror.Append(result, multierror.Prefix(fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme), fmt.Sprintf("[%v]", e.Name)))
	}
	if result == nil {
		return nil, ErrNoTransport
	}
	return nil, fmt.Errorf("%w: %v", ErrNoTransport, result)
}

func (r *Registry) Open(ctx context.Context, req Request, h Handler) (Stream, error) {
	t, err := r.Match(req.URL)
	if err != nil {
		return nil, err
	}
	return t.Open(ctx, req, h)
}

// NewDefaultRegistry creates a Registry with the built-in http(s) and file transports.
func NewDefaultRegistry(opts Options) *Registry {
	r := &Registry{}
	r.MustAdd(Entry{
		Name:      "http",
		Schemes:   generic.NewSet("http", "https"),
		Transport: NewHTTP(NewHTTPClient(opts), opts),
	})
	r.MustAdd(Entry{
		Name:      "file",
		Schemes:   generic.NewSet("file"),
		Transport: NewFile(opts),
		Priority:  PriorityLowest,
	})
	return r
}
