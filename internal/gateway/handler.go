// internal/gateway/handler.go
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"connectorhub/pkg/connectors"
	"connectorhub/pkg/connectors/normalize"
	"connectorhub/pkg/logger"
	"connectorhub/pkg/middleware"
	"connectorhub/pkg/openapi"
)

const (
	defaultPerPage = 25
	maxPerPage     = 100
)

var errorTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "connectorhub_gateway_errors_total",
	Help: "Normalized errors surfaced by the gateway, by taxonomy code.",
}, []string{"code"})

// Handler is the tenant-facing connector surface. Every route below
// /connectors requires the tenant middleware upstream.
type Handler struct {
	reg     *connectors.Registry
	catalog Catalog
	log     logger.Sugared
}

func NewHandler(reg *connectors.Registry, catalog Catalog, log logger.Sugared) *Handler {
	return &Handler{reg: reg, catalog: catalog, log: log.Named("gateway")}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/connectors", h.listConnectors)
	r.Route("/connectors/{connectorID}", func(r chi.Router) {
		r.Get("/oauth/login", h.login)
		r.Get("/oauth/callback", h.callback)
		r.Get("/search", h.search)
		r.Post("/resources", h.createResource)
		r.Get("/supporting", h.listSupporting)
		r.Delete("/connection", h.disconnect)
	})
	r.Get("/.well-known/openapi.json", h.openAPIDoc().ServeHandler("connectorhub", "v1"))
}

func (h *Handler) listConnectors(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())
	list, err := h.reg.List(r.Context(), tenant.ID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	out := make([]connectors.DescriptorStatus, 0, len(list))
	for _, ds := range list {
		if !h.catalog.Enabled(ds.ID) {
			continue
		}
		ds.DisplayName = h.catalog.DisplayName(ds.ID, ds.DisplayName)
		out = append(out, ds)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"connectors": out})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	c, ok := h.resolve(r)
	if !ok {
		h.writeErr(w, normalize.NewError(normalize.CodeNotFound, "unknown connector"))
		return
	}
	tenant := middleware.TenantFrom(r.Context())
	res, err := c.Login(r.Context(), tenant.ID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	c, ok := h.resolve(r)
	if !ok {
		h.writeErr(w, normalize.NewError(normalize.CodeNotFound, "unknown connector"))
		return
	}
	tenant := middleware.TenantFrom(r.Context())
	q := r.URL.Query()
	if err := c.Callback(r.Context(), tenant.ID, q.Get("code"), q.Get("state")); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"connector": c.Descriptor().ID,
	})
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	c, ok := h.resolve(r)
	if !ok {
		h.writeErr(w, normalize.NewError(normalize.CodeNotFound, "unknown connector"))
		return
	}
	tenant := middleware.TenantFrom(r.Context())
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		h.writeErr(w, normalize.NewError(normalize.CodeValidation, "missing query parameter q"))
		return
	}
	resource := q.Get("resource")
	if resource == "" {
		res := c.Descriptor().Resources
		if len(res) > 0 {
			resource = res[0]
		}
	}
	page := intParam(q.Get("page"), 1)
	perPage := intParam(q.Get("per_page"), defaultPerPage)
	if page < 1 || perPage < 1 || perPage > maxPerPage {
		h.writeErr(w, normalize.NewError(normalize.CodeValidation, "page must be >= 1 and per_page within 1..100"))
		return
	}
	items, err := c.Search(r.Context(), tenant.ID, query, resource, page, perPage)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"items":    items,
		"page":     page,
		"per_page": perPage,
	})
}

func (h *Handler) createResource(w http.ResponseWriter, r *http.Request) {
	c, ok := h.resolve(r)
	if !ok {
		h.writeErr(w, normalize.NewError(normalize.CodeNotFound, "unknown connector"))
		return
	}
	tenant := middleware.TenantFrom(r.Context())
	var body struct {
		Resource string         `json:"resource"`
		Payload  map[string]any `json:"payload"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		h.writeErr(w, normalize.NewError(normalize.CodeValidation, "request body must be JSON with resource and payload"))
		return
	}
	if body.Resource == "" {
		res := c.Descriptor().Resources
		if len(res) > 0 {
			body.Resource = res[0]
		}
	}
	item, err := c.Create(r.Context(), tenant.ID, body.Resource, body.Payload)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{"item": item})
}

func (h *Handler) listSupporting(w http.ResponseWriter, r *http.Request) {
	c, ok := h.resolve(r)
	if !ok {
		h.writeErr(w, normalize.NewError(normalize.CodeNotFound, "unknown connector"))
		return
	}
	tenant := middleware.TenantFrom(r.Context())
	resource := r.URL.Query().Get("resource")
	if resource == "" {
		h.writeErr(w, normalize.NewError(normalize.CodeValidation, "missing query parameter resource"))
		return
	}
	items, err := c.ListSupporting(r.Context(), tenant.ID, resource)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	c, ok := h.resolve(r)
	if !ok {
		h.writeErr(w, normalize.NewError(normalize.CodeNotFound, "unknown connector"))
		return
	}
	tenant := middleware.TenantFrom(r.Context())
	deleted, err := c.Disconnect(r.Context(), tenant.ID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if !deleted {
		h.writeErr(w, normalize.NewError(normalize.CodeNotFound, "no linked connection for this tenant"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) resolve(r *http.Request) (connectors.Connector, bool) {
	id := chi.URLParam(r, "connectorID")
	if !h.catalog.Enabled(id) {
		return nil, false
	}
	return h.reg.Get(id)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps taxonomy errors onto HTTP statuses; anything else is a
// local bug reported as INTERNAL without detail.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	var ne *normalize.Error
	if !errors.As(err, &ne) {
		h.log.Errorw("unclassified handler error", "err", err.Error())
		ne = normalize.NewError(normalize.CodeInternal, "internal error")
	}
	errorTotal.WithLabelValues(string(ne.Code)).Inc()
	h.writeJSON(w, normalize.HTTPStatus(ne.Code), ne)
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

func (h *Handler) openAPIDoc() *openapi.Registry {
	doc := openapi.NewRegistry()
	ok := map[string]any{"200": map[string]any{"description": "OK"}}
	doc.Register(openapi.Operation{Method: "GET", Path: "/connectors", Summary: "List connectors with link status", Responses: ok})
	doc.Register(openapi.Operation{Method: "GET", Path: "/connectors/{id}/oauth/login", Summary: "Begin OAuth authorization", Responses: ok})
	doc.Register(openapi.Operation{Method: "GET", Path: "/connectors/{id}/oauth/callback", Summary: "Complete OAuth authorization", Responses: ok})
	doc.Register(openapi.Operation{Method: "GET", Path: "/connectors/{id}/search", Summary: "Search vendor resources", Responses: ok})
	doc.Register(openapi.Operation{Method: "POST", Path: "/connectors/{id}/resources", Summary: "Create a vendor resource", Responses: map[string]any{"201": map[string]any{"description": "Created"}}})
	doc.Register(openapi.Operation{Method: "GET", Path: "/connectors/{id}/supporting", Summary: "List supporting resources", Responses: ok})
	doc.Register(openapi.Operation{Method: "DELETE", Path: "/connectors/{id}/connection", Summary: "Remove the tenant's connection", Responses: ok})
	return doc
}
