package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xela07ax/nft-agents-console/internal/domain"
	"github.com/xela07ax/nft-agents-console/internal/infra/auth"
	"go.uber.org/zap"
)

// errorBody: единый формат ошибки консольного API.
type errorBody struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Redirect  string `json:"redirect,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError переводит доменную ошибку в HTTP:
// валидация -> 422 с полем, конфликт -> 409, сеть -> 502 (можно повторить),
// 401 -> на /login, не найдено -> 404.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		vErr *domain.ValidationError
		cErr *domain.ConflictError
		aErr *domain.AuthError
	)
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: vErr.Message, Field: vErr.Field})
	case errors.As(err, &cErr):
		writeJSON(w, http.StatusConflict, errorBody{Error: cErr.Reason})
	case errors.As(err, &aErr):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: aErr.Error(), Redirect: auth.RouteLogin})
	case domain.IsNetwork(err):
		logger.Warn("backend unavailable", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error(), Retryable: true})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	default:
		logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// decode читает JSON-тело; ошибка формата, ValidationError по полю body.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &domain.ValidationError{Field: "body", Message: "malformed JSON: " + err.Error()}
	}
	return nil
}
