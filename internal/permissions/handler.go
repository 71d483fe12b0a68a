package permissions

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-admin/internal/datatable"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

// Handler manages permission endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers permission routes. The router must already carry an
// authenticated actor.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.ForModule(rbac.ModulePermission))

	r.With(h.rbac.Require(rbac.ActionList)).Get("/", h.index)
	r.With(h.rbac.Require(rbac.ActionList)).Post("/datatables", h.datatables)
	r.With(h.rbac.Require(rbac.ActionCreate)).Get("/create", h.createForm)
	r.With(h.rbac.Require(rbac.ActionCreate)).Post("/", h.store)
	r.With(h.rbac.Require(rbac.ActionView)).Get("/{id}", h.show)
	r.With(h.rbac.Require(rbac.ActionUpdate)).Get("/{id}/edit", h.edit)
	r.With(h.rbac.Require(rbac.ActionUpdate)).Put("/{id}", h.update)
	r.With(h.rbac.Require(rbac.ActionUpdate)).Patch("/{id}", h.update)
	r.With(h.rbac.Require(rbac.ActionDelete)).Delete("/{id}", h.destroy)
	r.With(h.rbac.Require(rbac.ActionDelete)).Delete("/", h.destroyBulk)
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.Index(r.Context(), rbac.CapabilitiesFromContext(r.Context()))
	if err != nil {
		h.fail(w, err, 0)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) datatables(w http.ResponseWriter, r *http.Request) {
	var req datatable.Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err, 0)
		return
	}
	resp, err := h.service.Datatable(r.Context(), rbac.CapabilitiesFromContext(r.Context()), req)
	if err != nil {
		h.fail(w, err, 0)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) createForm(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.CreateForm(r.Context(), rbac.CapabilitiesFromContext(r.Context()))
	if err != nil {
		h.fail(w, err, 0)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) store(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, err, 0)
		return
	}
	created, err := h.service.Create(r.Context(), rbac.CapabilitiesFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, err, 0)
		return
	}
	httpx.Data(w, http.StatusCreated, created)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamID(r, "id")
	if err != nil {
		h.fail(w, err, 0)
		return
	}
	page, err := h.service.Show(r.Context(), rbac.CapabilitiesFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, err, id)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamID(r, "id")
	if err != nil {
		h.fail(w, err, 0)
		return
	}
	page, err := h.service.Edit(r.Context(), rbac.CapabilitiesFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, err, id)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamID(r, "id")
	if err != nil {
		h.fail(w, err, 0)
		return
	}
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, err, id)
		return
	}
	updated, err := h.service.Update(r.Context(), rbac.CapabilitiesFromContext(r.Context()), id, in)
	if err != nil {
		h.fail(w, err, id)
		return
	}
	httpx.Data(w, http.StatusOK, updated)
}

func (h *Handler) destroy(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamID(r, "id")
	if err != nil {
		h.fail(w, err, 0)
		return
	}
	if err := h.service.Delete(r.Context(), rbac.CapabilitiesFromContext(r.Context()), id); err != nil {
		h.fail(w, err, id)
		return
	}
	httpx.Success(w)
}

func (h *Handler) destroyBulk(w http.ResponseWriter, r *http.Request) {
	var in httpx.IDList
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, err, 0)
		return
	}
	if err := h.service.DeleteBulk(r.Context(), rbac.CapabilitiesFromContext(r.Context()), in); err != nil {
		h.fail(w, err, 0)
		return
	}
	httpx.Success(w)
}

func (h *Handler) fail(w http.ResponseWriter, err error, id int64) {
	if !httpx.IsClientError(err) && h.logger != nil {
		h.logger.Error("permission request failed", slog.Int64("id", id), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
