package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/kestrel-qa/testpilot/apitoken"
	"github.com/kestrel-qa/testpilot/logger"
)

// APITokenHandler handles API token management requests.
type APITokenHandler struct {
	tokenStore apitoken.Store
	logger     logger.Logger
}

// NewAPITokenHandler creates a new API token handler.
func NewAPITokenHandler(tokenStore apitoken.Store, log logger.Logger) *APITokenHandler {
	return &APITokenHandler{
		tokenStore: tokenStore,
		logger:     log,
	}
}

// CreateTokenRequest represents a token creation request.
type CreateTokenRequest struct {
	Name   string `json:"name"`
	Scope  string `json:"scope"`
	Expiry string `json:"expiry,omitempty"`
}

// CreateTokenResponse returns the new token. The raw secret appears only in
// this response; the store keeps its hash.
type CreateTokenResponse struct {
	Token  *apitoken.APIToken `json:"token"`
	Secret string             `json:"secret"`
}

// Create handles creating a new API token.
func (h *APITokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTokenRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Scope == "" {
		req.Scope = apitoken.ScopeReadOnly
	}

	var expiry time.Duration
	if req.Expiry != "" {
		parsed, err := time.ParseDuration(req.Expiry)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid expiry duration")
			return
		}
		expiry = parsed
	}
	expiry, err := apitoken.ValidateExpiry(expiry)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	raw, hash, err := apitoken.GenerateToken()
	if err != nil {
		h.logger.Error(r.Context(), "failed to generate api token", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	token := &apitoken.APIToken{
		Name:      req.Name,
		TokenHash: hash,
		Scope:     req.Scope,
		ExpiresAt: time.Now().Add(expiry),
		IsActive:  true,
	}

	if err := h.tokenStore.Create(r.Context(), token); err != nil {
		switch {
		case errors.Is(err, apitoken.ErrInvalidTokenName), errors.Is(err, apitoken.ErrInvalidScope):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, apitoken.ErrMaxTokensReached):
			respondError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error(r.Context(), "failed to create api token", map[string]interface{}{
				"error": err.Error(),
			})
			respondError(w, http.StatusInternalServerError, "failed to create token")
		}
		return
	}

	respondJSON(w, http.StatusCreated, CreateTokenResponse{Token: token, Secret: raw})
}

// List handles listing active API tokens.
func (h *APITokenHandler) List(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.tokenStore.ListActive(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "failed to list api tokens", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to list tokens")
		return
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(tokens, len(tokens), len(tokens), 0))
}

// Revoke handles revoking an API token.
func (h *APITokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "token")
	if !ok {
		return
	}

	if err := h.tokenStore.Revoke(r.Context(), id); err != nil {
		if errors.Is(err, apitoken.ErrTokenNotFound) {
			respondError(w, http.StatusNotFound, "token not found")
			return
		}
		h.logger.Error(r.Context(), "failed to revoke api token", map[string]interface{}{
			"error":    err.Error(),
			"token_id": id.String(),
		})
		respondError(w, http.StatusInternalServerError, "failed to revoke token")
		return
	}

	respondSuccess(w, "token revoked")
}
