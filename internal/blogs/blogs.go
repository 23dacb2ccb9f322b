// Package blogs serves the placeholder /blogs endpoints, which echo what they receive.
package blogs

import (
	"fmt"
	"net/http"

	"github.com/Suhaibinator/SBlog/pkg/middleware"
	"github.com/Suhaibinator/SBlog/pkg/router"
	"go.uber.org/zap"
)

// PathPrefix is where the blogs sub-router is mounted.
const PathPrefix = "/blogs"

// Handler serves the blogs routes.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a blogs Handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{logger: logger.Named("blogs")}
}

// Routes returns the blogs sub-router.
func (h *Handler) Routes() router.SubRouterConfig {
	return router.SubRouterConfig{
		PathPrefix: PathPrefix,
		Routes: []router.RouteConfig{
			{Path: "/", Methods: []string{http.MethodGet}, Handler: h.List},
			{Path: "/:id", Methods: []string{http.MethodGet}, Handler: h.Get},
			{Path: "/:id", Methods: []string{http.MethodPost}, Handler: h.Post},
		},
	}
}

// List echoes the URL the request was made on, including the query string.
func (h *Handler) List(r *http.Request) (any, error) {
	return map[string]string{
		"message": "Received a request on " + r.URL.RequestURI(),
	}, nil
}

// Get answers with a JSON string naming the requested ID.
func (h *Handler) Get(r *http.Request) (any, error) {
	return fmt.Sprintf("Received a GET request for a blog post with ID of %s", router.GetParam(r, "id")), nil
}

// postResponse is the body of a POST /blogs/:id response.
type postResponse struct {
	Message     string `json:"message"`
	BodyContent any    `json:"bodyContent"`
}

// Post logs the parsed request body and echoes it back.
func (h *Handler) Post(r *http.Request) (any, error) {
	id := router.GetParam(r, "id")
	body := middleware.GetBody(r)
	if body == nil {
		body = map[string]any{}
	}

	h.logger.Info("Blog post body received",
		zap.String("id", id),
		zap.Any("body", body),
		zap.String("trace_id", middleware.GetTraceID(r)),
	)

	return postResponse{
		Message:     fmt.Sprintf("Received a POST request for a blog post with ID of %s", id),
		BodyContent: body,
	}, nil
}
