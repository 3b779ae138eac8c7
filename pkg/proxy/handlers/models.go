package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/icheer/qwenchat2api/pkg/credential"
	"github.com/icheer/qwenchat2api/pkg/proxy"
	"github.com/icheer/qwenchat2api/pkg/proxy/types"
	"github.com/icheer/qwenchat2api/pkg/upstream"
)

// ModelCatalog fetches the upstream model catalog.
type ModelCatalog interface {
	Models(ctx context.Context, token string) ([]upstream.CatalogModel, error)
}

// ModelsHandler serves GET /v1/models: the upstream catalog plus the
// synthesized variant ids, in the OpenAI list shape.
type ModelsHandler struct {
	credentials *credential.Manager
	catalog     ModelCatalog
	logger      *slog.Logger

	now func() time.Time
}

// NewModelsHandler creates the models handler.
func NewModelsHandler(credentials *credential.Manager, catalog ModelCatalog) *ModelsHandler {
	return &ModelsHandler{
		credentials: credentials,
		catalog:     catalog,
		logger:      slog.Default().With("component", "handlers.models"),
		now:         time.Now,
	}
}

func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, err := h.credentials.SelectValid(ctx, credential.KindToken)
	if err != nil {
		proxy.WriteError(w, h.logger, err)
		return
	}

	models, err := h.catalog.Models(ctx, token)
	if err != nil {
		var authErr *upstream.AuthError
		if errors.As(err, &authErr) {
			if ierr := h.credentials.Invalidate(ctx, credential.KindToken, token); ierr != nil {
				h.logger.Error("failed to invalidate token", "error", ierr)
			}
		}
		proxy.WriteError(w, h.logger, err)
		return
	}

	created := h.now().Unix()
	list := types.ModelList{Object: "list", Data: []types.ModelEntry{}}
	for _, id := range upstream.SynthesizeVariants(models) {
		list.Data = append(list.Data, types.ModelEntry{
			ID:      id,
			Object:  "model",
			Created: created,
			OwnedBy: "qwen",
		})
	}

	proxy.WriteJSON(w, http.StatusOK, list)
}
