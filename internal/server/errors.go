package server

import (
	"net/http"

	"github.com/zjrosen/cbconfig/internal/registry/domain"
)

// HTTPStatusFromKind maps a registry error kind to an HTTP status.
func HTTPStatusFromKind(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusUnprocessableEntity
	case domain.KindDuplicateName:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAllocationExhausted:
		return http.StatusInsufficientStorage
	case domain.KindConsistencyFault:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
