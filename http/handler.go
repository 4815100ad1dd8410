package http

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sagarc03/swiftpath"
)

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	ReadVerifier  RequestVerifier
	WriteVerifier RequestVerifier
	CORS          CORSConfig
}

// Handler exposes a swiftpath.Backend over HTTP with a Swift-like layout:
// "/" lists containers, "/{container}" is a container and
// "/{container}/{key}" an object.
type Handler struct {
	config  HandlerConfig
	backend swiftpath.Backend
}

func NewHandler(config *HandlerConfig, backend swiftpath.Backend) *Handler {
	return &Handler{
		config:  *config,
		backend: backend,
	}
}

// Router returns the routes. Reads go through ReadVerifier and writes
// through WriteVerifier.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(LogMiddleware)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.config.ReadVerifier))
		r.Get("/", h.handleListContainers)
		r.Get("/*", h.handleGet)
		r.Head("/*", h.handleHead)
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.config.WriteVerifier))
		r.Put("/*", h.handlePut)
		r.Post("/*", h.handlePost)
		r.Delete("/*", h.handleDelete)
	})

	return r
}

// splitPath returns the container and key addressed by the request. key is
// empty for container requests.
func splitPath(r *http.Request) (string, string, error) {
	p := strings.TrimPrefix(r.URL.Path, "/")
	container, key, _ := strings.Cut(p, "/")
	if container == "" {
		return "", "", fmt.Errorf("%q: %w", r.URL.Path, swiftpath.ErrInvalidPath)
	}
	return container, key, nil
}

// parseRef reads "container/key" from a header value.
func parseRef(v string) (swiftpath.ObjectRef, error) {
	container, key, ok := strings.Cut(strings.TrimPrefix(v, "/"), "/")
	if !ok || container == "" || key == "" {
		return swiftpath.ObjectRef{}, fmt.Errorf("%q: %w", v, swiftpath.ErrInvalidPath)
	}
	return swiftpath.ObjectRef{Container: container, Key: key}, nil
}

func parseLimit(s string) int {
	if s == "" {
		return swiftpath.DefaultListLimit
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return swiftpath.DefaultListLimit
	}
	return max(1, min(swiftpath.DefaultListLimit, n))
}

func (h *Handler) handleListContainers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	res, err := h.backend.ListContainers(r.Context(), q.Get("marker"), parseLimit(q.Get("limit")))
	if err != nil {
		HandleError(w, err)
		return
	}

	out := ContainerListResponse{Containers: []Container{}, NextMarker: res.NextMarker}
	for _, c := range res.Containers {
		out.Containers = append(out.Containers, Container{Name: c.Name, Count: c.Count, Bytes: c.Bytes})
	}
	_ = WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	container, key, err := splitPath(r)
	if err != nil {
		HandleError(w, err)
		return
	}
	if key == "" {
		h.listObjects(w, r, container)
		return
	}

	ref := swiftpath.ObjectRef{Container: container, Key: key}
	info, body, err := h.backend.Get(r.Context(), ref)
	if err != nil {
		HandleError(w, err)
		return
	}
	defer func() { _ = body.Close() }()

	writeObjectHeaders(w, info)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("copy object body", "ref", ref.String(), "error", err)
	}
}

func (h *Handler) listObjects(w http.ResponseWriter, r *http.Request, container string) {
	q := r.URL.Query()

	res, err := h.backend.List(r.Context(), container, swiftpath.ListQuery{
		Prefix:    q.Get("prefix"),
		Delimiter: q.Get("delimiter"),
		Marker:    q.Get("marker"),
		Limit:     parseLimit(q.Get("limit")),
	})
	if err != nil {
		HandleError(w, err)
		return
	}

	out := ListResponse{Objects: []Object{}, Prefixes: []string{}, NextMarker: res.NextMarker}
	for _, o := range res.Objects {
		out.Objects = append(out.Objects, NewObject(o))
	}
	out.Prefixes = append(out.Prefixes, res.Prefixes...)
	_ = WriteJSON(w, http.StatusOK, out)
}

func writeObjectHeaders(w http.ResponseWriter, info swiftpath.ObjectInfo) {
	hdr := w.Header()
	if info.Hash != "" {
		hdr.Set("ETag", `"`+info.Hash+`"`)
	}
	if info.ContentType != "" {
		hdr.Set("Content-Type", info.ContentType)
	}
	hdr.Set("Content-Length", strconv.FormatInt(info.Size, 10))
	if !info.LastModified.IsZero() {
		hdr.Set("Last-Modified", info.LastModified.UTC().Format(http.TimeFormat))
	}
	if info.SymlinkTarget != "" {
		hdr.Set(HeaderSymlinkTarget, info.SymlinkTarget)
	}
	if info.SymlinkAccount != "" {
		hdr.Set(HeaderSymlinkAcct, info.SymlinkAccount)
	}
}

func (h *Handler) handleHead(w http.ResponseWriter, r *http.Request) {
	container, key, err := splitPath(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	if key == "" {
		info, err := h.backend.StatContainer(r.Context(), container)
		if err != nil {
			HandleError(w, err)
			return
		}
		w.Header().Set(HeaderObjectCount, strconv.FormatInt(info.Count, 10))
		w.Header().Set(HeaderBytesUsed, strconv.FormatInt(info.Bytes, 10))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	info, err := h.backend.Stat(r.Context(), swiftpath.ObjectRef{Container: container, Key: key})
	if err != nil {
		HandleError(w, err)
		return
	}
	writeObjectHeaders(w, info)
	w.WriteHeader(http.StatusOK)
}

// handlePut creates a container, or writes an object. An object PUT with
// X-Copy-From copies server side and one with X-Symlink-Target creates a
// link; otherwise the body becomes the content.
func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	container, key, err := splitPath(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	if key == "" {
		if err := h.backend.CreateContainer(r.Context(), container); err != nil {
			HandleError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		return
	}

	ref := swiftpath.ObjectRef{Container: container, Key: key}
	switch {
	case r.Header.Get(HeaderCopyFrom) != "":
		err = h.copy(r, ref)
	case r.Header.Get(HeaderSymlinkTarget) != "":
		err = h.symlink(r, ref)
	default:
		var info swiftpath.ObjectInfo
		info, err = h.backend.Put(r.Context(), ref, r.Body, swiftpath.PutOptions{
			ContentType: r.Header.Get("Content-Type"),
			Metadata:    objectMetadata(r.Header),
		})
		if err == nil {
			_ = WriteJSON(w, http.StatusCreated, NewObject(info))
			return
		}
	}
	if err != nil {
		HandleError(w, err)
		return
	}

	info, err := h.backend.Stat(r.Context(), ref)
	if err != nil {
		HandleError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusCreated, NewObject(info))
}

func (h *Handler) copy(r *http.Request, dst swiftpath.ObjectRef) error {
	src, err := parseRef(r.Header.Get(HeaderCopyFrom))
	if err != nil {
		return err
	}
	return h.backend.Copy(r.Context(), src, dst)
}

func (h *Handler) symlink(r *http.Request, link swiftpath.ObjectRef) error {
	linker, ok := h.backend.(swiftpath.Symlinker)
	if !ok {
		return fmt.Errorf("symlink on %s: %w", h.backend.Name(), swiftpath.ErrUnsupported)
	}

	target, err := parseRef(r.Header.Get(HeaderSymlinkTarget))
	if err != nil {
		return err
	}
	return linker.Symlink(r.Context(), link, target, swiftpath.SymlinkOptions{
		TargetAccount: r.Header.Get(HeaderSymlinkAcct),
	})
}

func objectMetadata(h http.Header) map[string]string {
	var meta map[string]string
	for name, values := range h {
		k, ok := strings.CutPrefix(name, HeaderMetaPrefix)
		if !ok || k == "" || len(values) == 0 {
			continue
		}
		if meta == nil {
			meta = make(map[string]string)
		}
		meta[strings.ToLower(k)] = values[0]
	}
	return meta
}

// handlePost touches an object.
func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	container, key, err := splitPath(r)
	if err != nil {
		HandleError(w, err)
		return
	}
	if key == "" {
		HandleError(w, fmt.Errorf("post to container %s: %w", container, swiftpath.ErrUnsupported))
		return
	}

	if err := h.backend.Touch(r.Context(), swiftpath.ObjectRef{Container: container, Key: key}); err != nil {
		HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	container, key, err := splitPath(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	if key == "" {
		err = h.backend.DeleteContainer(r.Context(), container)
	} else {
		err = h.backend.Delete(r.Context(), swiftpath.ObjectRef{Container: container, Key: key})
	}
	if err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CodeError maps an ErrorResponse code back to its sentinel. Unknown codes
// return nil.
func CodeError(code string) error {
	switch code {
	case CodeNotFound:
		return swiftpath.ErrNotFound
	case CodeExists:
		return swiftpath.ErrExists
	case CodeNotEmpty:
		return swiftpath.ErrDirectoryNotEmpty
	case CodeInvalidPath:
		return swiftpath.ErrInvalidPath
	case CodeUnsupported:
		return swiftpath.ErrUnsupported
	case CodeUnauthorized:
		return ErrUnauthorized
	default:
		return nil
	}
}
