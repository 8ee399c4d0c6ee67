package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/identity-scan/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case domain.IsKind(err, domain.ErrOCR):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrExternalService) && domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrExternalService):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage returns the text exposed to callers. Details of 5xx and OCR
// failures stay in the server log.
func clientMessage(status int, err error) string {
	switch status {
	case http.StatusGatewayTimeout:
		return "processing timed out"
	case http.StatusServiceUnavailable:
		return "extraction service temporarily unavailable"
	case http.StatusBadGateway:
		return "extraction service failed"
	case http.StatusInternalServerError:
		return "internal error"
	case http.StatusRequestEntityTooLarge:
		return "upload exceeds size limit"
	case http.StatusUnprocessableEntity:
		return ocrFailedMessage
	default:
		return err.Error()
	}
}

const ocrFailedMessage = "text recognition failed; upload a sharper image"

func errorTitle(status int) string {
	switch status {
	case http.StatusUnsupportedMediaType:
		return "Unsupported file"
	case http.StatusUnprocessableEntity:
		return "Could not read the image"
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return "Invalid upload"
	default:
		return http.StatusText(status)
	}
}
