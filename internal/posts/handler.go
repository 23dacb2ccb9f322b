package posts

import (
	"errors"
	"net/http"

	"github.com/Suhaibinator/SBlog/pkg/codec"
	"github.com/Suhaibinator/SBlog/pkg/middleware"
	"github.com/Suhaibinator/SBlog/pkg/response"
	"github.com/Suhaibinator/SBlog/pkg/router"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PathPrefix is where the posts sub-router is mounted.
const PathPrefix = "/posts"

// Handler serves the posts routes on top of a Store.
type Handler struct {
	store  Store
	logger *zap.Logger
	author func(*http.Request) string
}

// NewHandler creates a posts Handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger.Named("posts")}
}

// WithAuthor sets the function that names the caller. Its result fills postAuthorID
// when a write omits it.
func (h *Handler) WithAuthor(author func(*http.Request) string) *Handler {
	h.author = author
	return h
}

// Routes returns the posts sub-router. Write routes require a bearer token when
// requireAuth is set.
func (h *Handler) Routes(requireAuth bool) router.SubRouterConfig {
	write := router.NoAuth
	if requireAuth {
		write = router.AuthRequired
	}
	return router.SubRouterConfig{
		PathPrefix: PathPrefix,
		Routes: []router.RouteConfig{
			{Path: "/", Methods: []string{http.MethodGet}, Handler: h.List},
			{Path: "/", Methods: []string{http.MethodPost}, Handler: h.Create, AuthLevel: write},
			{Path: "/:id", Methods: []string{http.MethodGet}, Handler: h.Get},
			{Path: "/:id", Methods: []string{http.MethodPut}, Handler: h.Update, AuthLevel: write},
			{Path: "/:id", Methods: []string{http.MethodDelete}, Handler: h.Delete, AuthLevel: write},
		},
	}
}

// List returns all posts.
func (h *Handler) List(r *http.Request) (any, error) {
	return h.store.GetAll(r.Context())
}

// Get returns one post.
func (h *Handler) Get(r *http.Request) (any, error) {
	id, err := postID(r)
	if err != nil {
		return nil, err
	}
	p, err := h.store.GetOne(r.Context(), id)
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

// Create stores a new post and answers 201.
func (h *Handler) Create(r *http.Request) (any, error) {
	fields, err := h.decodeFields(r)
	if err != nil {
		return nil, err
	}
	p, err := h.store.Create(r.Context(), fields)
	if err != nil {
		return nil, mapError(err)
	}
	h.logger.Info("Post created",
		zap.Stringer("id", p.ID),
		zap.String("author_id", p.AuthorID),
		zap.String("trace_id", middleware.GetTraceIDFromContext(r.Context())),
	)
	return &router.Response{Status: http.StatusCreated, Body: p}, nil
}

// Update replaces a post's fields.
func (h *Handler) Update(r *http.Request) (any, error) {
	id, err := postID(r)
	if err != nil {
		return nil, err
	}
	fields, err := h.decodeFields(r)
	if err != nil {
		return nil, err
	}
	p, err := h.store.Update(r.Context(), id, fields)
	if err != nil {
		return nil, mapError(err)
	}
	h.logger.Info("Post updated", zap.Stringer("id", p.ID), zap.String("trace_id", middleware.GetTraceID(r)))
	return p, nil
}

// Delete removes a post and answers 204.
func (h *Handler) Delete(r *http.Request) (any, error) {
	id, err := postID(r)
	if err != nil {
		return nil, err
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		return nil, mapError(err)
	}
	h.logger.Info("Post deleted", zap.Stringer("id", id), zap.String("trace_id", middleware.GetTraceID(r)))
	return &router.Response{Status: http.StatusNoContent}, nil
}

// postID parses the :id parameter. Unparseable IDs cannot name a post.
func postID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(router.GetParam(r, "id"))
	if err != nil {
		return uuid.Nil, response.Wrap(err, http.StatusNotFound, response.KindNotFound, ErrNotFound.Error())
	}
	return id, nil
}

// decodeFields reads the parsed request body into Fields and validates it.
func (h *Handler) decodeFields(r *http.Request) (Fields, error) {
	body, ok := middleware.GetBodyObject(r)
	if !ok {
		return Fields{}, response.NewHTTPError(http.StatusBadRequest, response.KindMalformedBody, "Request body must be a JSON object")
	}
	fields, err := codec.FromValue[Fields](body)
	if err != nil {
		return Fields{}, response.Wrap(err, http.StatusBadRequest, response.KindMalformedBody, "Request body has invalid field types")
	}
	if fields.AuthorID == "" && h.author != nil {
		fields.AuthorID = h.author(r)
	}

	invalid, err := validate(fields)
	if err != nil {
		return Fields{}, err
	}
	if invalid != nil {
		httpErr := response.NewHTTPError(http.StatusUnprocessableEntity, response.KindValidationFailed, "Validation failed")
		httpErr.Fields = invalid
		return Fields{}, httpErr
	}
	return fields, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return response.Wrap(err, http.StatusNotFound, response.KindNotFound, ErrNotFound.Error())
	default:
		return err
	}
}
