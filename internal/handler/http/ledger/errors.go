package ledger_http

import (
	"net/http"

	"go.uber.org/zap"

	"ledger/internal/domain"
	"ledger/internal/handler/validation"
)

type ErrorResponse struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Details []validation.FieldError `json:"details,omitempty"`
}

var statusByCode = map[string]int{
	domain.CodeValidation:        http.StatusBadRequest,
	domain.CodeInvalidAmount:     http.StatusBadRequest,
	domain.CodeAccountNotFound:   http.StatusNotFound,
	domain.CodeInsufficientFunds: http.StatusConflict,
	domain.CodeBusy:              http.StatusServiceUnavailable,
	domain.CodeStorage:           http.StatusInternalServerError,
}

func (h *LedgerHandler) respondError(w http.ResponseWriter, err error) {
	code := domain.ErrorCode(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := err.Error()
	switch code {
	case domain.CodeBusy:
		w.Header().Set("Retry-After", "1")
		message = domain.ErrBusy.Error()
	case domain.CodeStorage:
		h.logger.Error("Request failed", zap.Error(err))
		message = "internal storage error"
	}

	h.respondJSON(w, status, ErrorResponse{Code: code, Message: message})
}
