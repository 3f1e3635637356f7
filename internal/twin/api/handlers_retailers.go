package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wondertwin-ai/lotterykit/pkg/twincore"
)

// RetailerBySlug handles GET /retailer/store/{slug}.
func (h *Handler) RetailerBySlug(w http.ResponseWriter, r *http.Request) {
	ret, err := h.store.RetailerBySlug(chi.URLParam(r, "slug"))
	if err != nil {
		twincore.Error(w, http.StatusNotFound, "Store not found")
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"retailer": ret,
	})
}
