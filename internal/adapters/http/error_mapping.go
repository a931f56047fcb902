package httpadapter

import (
	"net/http"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrRecordNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrSettingNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrDuplicateID):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrQuotaExhausted):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
