// Package inspect serves a small JSON API over a live container:
//
//	GET    /healthz
//	GET    /keys?prefix=app.
//	GET    /services/{key}?fresh=true
//	PUT    /services/{key}
//	DELETE /services/{key}
//	POST   /services/{key}/reset
//	GET    /tags/{tag}
//
// Keys containing "/" (package-qualified type keys) are sent path-escaped:
// /services/example.com%2Fapp.Mailer.
package inspect

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/km-arc/go-container/framework/container"
	gohttp "github.com/km-arc/go-container/framework/http"
	"github.com/km-arc/go-container/framework/http/validation"
	"github.com/km-arc/go-container/framework/routing"
)

// ErrorObserver receives every resolution error the API runs into.
type ErrorObserver interface {
	ObserveError(err error)
}

// Service describes one key.
type Service struct {
	Key       string `json:"key"`
	Canonical string `json:"canonical"`
	Shared    bool   `json:"shared"`
	Protected bool   `json:"protected"`
	Type      string `json:"type,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Registration is the PUT /services/{key} body. Value is registered as a
// literal.
type Registration struct {
	Value     any  `json:"value"`
	Shared    bool `json:"shared"`
	Protected bool `json:"protected"`
}

// TaggedService is one entry of a tag listing.
type TaggedService struct {
	Key  string `json:"key"`
	Type string `json:"type"`
}

// Handler serves the API. Container access is serialized: autowiring is
// not safe for concurrent use.
type Handler struct {
	mu       sync.Mutex
	c        *container.Container
	logger   *zap.Logger
	observer ErrorObserver
	token    string
}

// Option configures a Handler.
type Option func(*Handler)

// WithObserver reports resolution errors to o.
func WithObserver(o ErrorObserver) Option {
	return func(h *Handler) { h.observer = o }
}

// WithToken requires "Authorization: Bearer <token>" on every route but
// /healthz. An empty token leaves the API open.
func WithToken(token string) Option {
	return func(h *Handler) { h.token = token }
}

// New creates a Handler over c.
func New(c *container.Container, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{c: c, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var (
	keyRules  = validation.MustCompile(validation.Rules{"key": "required|key|max:255"})
	tagRules  = validation.MustCompile(validation.Rules{"tag": "required|key|max:255"})
	listRules = validation.MustCompile(validation.Rules{"prefix": "nullable|max:255"})
)

// Routes registers the API on r.
func (h *Handler) Routes(r *routing.Router) {
	r.Get("/healthz", h.health)
	r.Group(func(r *routing.Router) {
		if h.token != "" {
			r.Middleware(h.authenticate)
		}
		r.Get("/keys", h.keys)
		r.Get("/services/{key}", h.service)
		r.Put("/services/{key}", h.register)
		r.Delete("/services/{key}", h.remove)
		r.Post("/services/{key}/reset", h.reset)
		r.Get("/tags/{tag}", h.tagged)
	})
}

// Router returns a standalone router serving the API.
func (h *Handler) Router() *routing.Router {
	r := routing.New(h.logger)
	h.Routes(r)
	return r
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := gohttp.NewRequest(r).BearerToken()
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			gohttp.NewResponse(w, h.logger).Unauthorized()
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	gohttp.NewResponse(w, h.logger).JSON(http.StatusOK, gohttp.Envelope{"status": "ok"})
}

func (h *Handler) keys(w http.ResponseWriter, r *http.Request) {
	req, res := gohttp.NewRequest(r), gohttp.NewResponse(w, h.logger)
	if err := listRules.Check(req.Queries()); err != nil {
		res.ValidationError(err)
		return
	}

	h.mu.Lock()
	keys := h.c.Keys()
	h.mu.Unlock()

	if prefix := req.Query("prefix"); prefix != "" {
		filtered := keys[:0]
		for _, k := range keys {
			if strings.HasPrefix(k, prefix) {
				filtered = append(filtered, k)
			}
		}
		keys = filtered
	}
	res.Success(keys)
}

// service describes key. With ?fresh=true the instance is produced with
// GetNewInstance and the shared cache is left alone.
func (h *Handler) service(w http.ResponseWriter, r *http.Request) {
	req, res := gohttp.NewRequest(r), gohttp.NewResponse(w, h.logger)
	key, ok := h.param(w, r, "key", keyRules)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.c.Has(key) {
		res.NotFound(fmt.Sprintf("No service registered for [%s].", key))
		return
	}
	res.Success(h.describe(key, req.QueryBool("fresh", false)))
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	req, res := gohttp.NewRequest(r), gohttp.NewResponse(w, h.logger)
	key, ok := h.param(w, r, "key", keyRules)
	if !ok {
		return
	}

	if ct := req.Header("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		res.Error(http.StatusUnsupportedMediaType, "Registrations must be sent as application/json.")
		return
	}
	var body Registration
	if err := req.BindJSON(&body); err != nil {
		res.Error(http.StatusBadRequest, err.Error())
		return
	}
	if body.Value == nil {
		res.Error(http.StatusUnprocessableEntity, "The value field is required.")
		return
	}

	var opts []container.SetOption
	if body.Shared {
		opts = append(opts, container.Shared())
	}
	if body.Protected {
		opts = append(opts, container.Protected())
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.c.Set(key, body.Value, opts...); err != nil {
		if errors.Is(err, container.ErrProtectedKey) {
			res.Error(http.StatusConflict, err.Error())
			return
		}
		res.ServerError(err.Error())
		return
	}
	h.logger.Info("service registered",
		zap.String("key", key),
		zap.Bool("shared", body.Shared),
		zap.Bool("protected", body.Protected),
		zap.String("method", req.Method()),
		zap.String("path", req.Path()),
	)
	res.Success(h.describe(key, false))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	req, res := gohttp.NewRequest(r), gohttp.NewResponse(w, h.logger)
	key, ok := h.param(w, r, "key", keyRules)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	protected, err := h.c.IsProtected(key)
	if err != nil {
		res.NotFound(fmt.Sprintf("No service registered for [%s].", key))
		return
	}
	if protected {
		res.Error(http.StatusConflict, (&container.ProtectedKeyError{Key: h.c.Canonical(key)}).Error())
		return
	}
	if err := h.c.Set(key, nil); err != nil {
		res.ServerError(err.Error())
		return
	}
	h.logger.Info("service removed", zap.String("key", key), zap.String("method", req.Method()), zap.String("path", req.Path()))
	res.Success(gohttp.Envelope{"key": key, "removed": !h.c.Has(key)})
}

// describe resolves key for a Service entry. Callers hold h.mu.
func (h *Handler) describe(key string, fresh bool) Service {
	svc := Service{Key: key, Canonical: h.c.Canonical(key)}
	svc.Shared, _ = h.c.IsShared(key)
	svc.Protected, _ = h.c.IsProtected(key)

	get := h.c.Get
	if fresh {
		get = h.c.GetNewInstance
	}
	instance, err := get(key)
	if err != nil {
		h.observe(key, err)
		svc.Error = err.Error()
	} else {
		svc.Type = fmt.Sprintf("%T", instance)
	}
	return svc
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	res := gohttp.NewResponse(w, h.logger)
	key, ok := h.param(w, r, "key", keyRules)
	if !ok {
		return
	}

	h.mu.Lock()
	done, err := h.c.Reset(key)
	h.mu.Unlock()

	if err != nil {
		res.NotFound(fmt.Sprintf("No service registered for [%s].", key))
		return
	}
	h.logger.Info("service reset", zap.String("key", key), zap.Bool("reset", done))
	res.Success(gohttp.Envelope{"key": key, "reset": done})
}

func (h *Handler) tagged(w http.ResponseWriter, r *http.Request) {
	res := gohttp.NewResponse(w, h.logger)
	tag, ok := h.param(w, r, "tag", tagRules)
	if !ok {
		return
	}

	h.mu.Lock()
	keys := h.c.TaggedKeys(tag)
	instances, err := h.c.Tagged(tag)
	h.mu.Unlock()

	if err != nil {
		h.observe(tag, err)
		res.ServerError(err.Error())
		return
	}
	out := make([]TaggedService, len(keys))
	for i, k := range keys {
		out[i] = TaggedService{Key: k, Type: fmt.Sprintf("%T", instances[i])}
	}
	res.Success(out)
}

// param reads, unescapes and validates a route parameter, answering 400
// or 422 itself when it is unusable.
func (h *Handler) param(w http.ResponseWriter, r *http.Request, name string, rules *validation.Validator) (string, bool) {
	res := gohttp.NewResponse(w, h.logger)
	raw, err := url.PathUnescape(gohttp.NewRequest(r).RouteParam(name))
	if err != nil {
		res.Error(http.StatusBadRequest, fmt.Sprintf("Malformed %s.", name))
		return "", false
	}
	if err := rules.Check(map[string]string{name: raw}); err != nil {
		res.ValidationError(err)
		return "", false
	}
	return raw, true
}

func (h *Handler) observe(key string, err error) {
	h.logger.Warn("resolution failed", zap.String("key", key), zap.Error(err))
	if h.observer != nil {
		h.observer.ObserveError(err)
	}
}
