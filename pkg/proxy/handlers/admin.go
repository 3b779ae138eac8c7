package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/icheer/qwenchat2api/pkg/credential"
	"github.com/icheer/qwenchat2api/pkg/proxy"
	"github.com/icheer/qwenchat2api/pkg/proxy/types"
)

// AdminHandler serves the credential-pool admin surface: importing
// cookie headers, inspecting pool state, and purging invalid entries.
// All secrets in responses are masked.
type AdminHandler struct {
	credentials *credential.Manager
	logger      *slog.Logger
}

// NewAdminHandler creates the admin handler set.
func NewAdminHandler(credentials *credential.Manager) *AdminHandler {
	return &AdminHandler{
		credentials: credentials,
		logger:      slog.Default().With("component", "handlers.admin"),
	}
}

// ImportRequest is the body of POST /admin/credentials/import.
type ImportRequest struct {
	// Lines are raw cookie-header lines, one credential source each.
	Lines []string `json:"lines"`
}

// ImportResponse reports how many credentials an import added.
type ImportResponse struct {
	TokensAdded  int `json:"tokens_added"`
	CookiesAdded int `json:"cookies_added"`
}

// Import handles POST /admin/credentials/import.
func (h *AdminHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		proxy.WriteErrorResponse(w, types.NewInvalidRequestError(
			"request body is not valid JSON", "", types.CodeInvalidJSON))
		return
	}
	if len(req.Lines) == 0 {
		proxy.WriteErrorResponse(w, types.NewInvalidRequestError(
			"lines cannot be empty", "lines", types.CodeMissingField))
		return
	}

	result, err := h.credentials.ImportCookies(r.Context(), req.Lines)
	if err != nil {
		proxy.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("credentials imported",
		"tokens_added", result.TokensAdded,
		"cookies_added", result.CookiesAdded,
	)
	proxy.WriteJSON(w, http.StatusOK, ImportResponse{
		TokensAdded:  result.TokensAdded,
		CookiesAdded: result.CookiesAdded,
	})
}

// PoolStatus describes one credential pool with masked entries.
type PoolStatus struct {
	Valid       int                         `json:"valid"`
	Invalid     int                         `json:"invalid"`
	Credentials []credential.CredentialInfo `json:"credentials"`
}

// StatusResponse is the body of GET /admin/credentials.
type StatusResponse struct {
	Tokens  PoolStatus `json:"tokens"`
	Cookies PoolStatus `json:"cookies"`
}

// Status handles GET /admin/credentials.
func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tokens, err := h.poolStatus(ctx, credential.KindToken)
	if err != nil {
		proxy.WriteError(w, h.logger, err)
		return
	}
	cookies, err := h.poolStatus(ctx, credential.KindCookie)
	if err != nil {
		proxy.WriteError(w, h.logger, err)
		return
	}

	proxy.WriteJSON(w, http.StatusOK, StatusResponse{
		Tokens:  *tokens,
		Cookies: *cookies,
	})
}

func (h *AdminHandler) poolStatus(ctx context.Context, kind credential.Kind) (*PoolStatus, error) {
	valid, invalid, err := h.credentials.Counts(ctx, kind)
	if err != nil {
		return nil, err
	}
	infos, err := h.credentials.Snapshot(ctx, kind)
	if err != nil {
		return nil, err
	}
	if infos == nil {
		infos = []credential.CredentialInfo{}
	}
	return &PoolStatus{Valid: valid, Invalid: invalid, Credentials: infos}, nil
}

// PurgeResponse reports how many invalid entries a purge removed.
type PurgeResponse struct {
	TokensRemoved  int `json:"tokens_removed"`
	CookiesRemoved int `json:"cookies_removed"`
}

// Purge handles POST /admin/credentials/purge.
func (h *AdminHandler) Purge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tokens, err := h.credentials.PurgeInvalid(ctx, credential.KindToken)
	if err != nil {
		proxy.WriteError(w, h.logger, err)
		return
	}
	cookies, err := h.credentials.PurgeInvalid(ctx, credential.KindCookie)
	if err != nil {
		proxy.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("invalid credentials purged",
		"tokens_removed", tokens,
		"cookies_removed", cookies,
	)
	proxy.WriteJSON(w, http.StatusOK, PurgeResponse{
		TokensRemoved:  tokens,
		CookiesRemoved: cookies,
	})
}
