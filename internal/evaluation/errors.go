package evaluation

import (
	"errors"
	"net/http"
)

// Categorías de error expuestas por el núcleo. Se comparan con errors.Is.
var (
	ErrInvalidFilter    = errors.New("invalid filter")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrNotFound         = errors.New("not found")
	ErrRaceLost         = errors.New("race lost")
	ErrAlreadySent      = errors.New("already sent")
	ErrCanceled         = errors.New("canceled")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrDispatchFailed   = errors.New("dispatch failed")
	ErrDeliveryUnknown  = errors.New("delivery outcome unknown")
)

// Error error de dominio con una razón legible por máquina
type Error struct {
	Kind    error  // una de las categorías Err*
	Reason  string // snake_case, se devuelve tal cual al cliente HTTP
	Message string
	Err     error // causa original, nunca se expone al cliente
}

// NewError construye un *Error de la categoría indicada
func NewError(kind error, reason, message string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Is permite errors.Is(err, ErrRaceLost) sobre un *Error
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus código HTTP asociado a la categoría del error
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidFilter), errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRaceLost), errors.Is(err, ErrAlreadySent):
		return http.StatusConflict
	case errors.Is(err, ErrCanceled):
		return http.StatusRequestTimeout
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrDispatchFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrDeliveryUnknown):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// Reason razón legible por máquina; "internal_error" para errores fuera de la taxonomía
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	return "internal_error"
}

// Handled indica un resultado esperado de concurrencia ("ya gestionado"), no un fallo
func Handled(err error) bool {
	return errors.Is(err, ErrRaceLost) || errors.Is(err, ErrAlreadySent)
}
