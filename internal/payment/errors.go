package payment

import (
	"errors"
	"net/http"
)

var (
	ErrAttemptNotFound      = errors.New("payment attempt not found")
	ErrConcurrentUpdate     = errors.New("payment attempt modified concurrently")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrMissingConfiguration = errors.New("payment provider not configured")
	ErrCallbackUnsupported  = errors.New("callbacks not supported for this method")
	ErrInvalidTransition    = errors.New("invalid status transition")
)

// ErrorKind classifies a failed result.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindValidation    ErrorKind = "validation"
	KindSignature     ErrorKind = "signature"
	KindGateway       ErrorKind = "gateway"
	KindUnexpected    ErrorKind = "unexpected"
)

// Reason narrows down why a callback was not applied.
type Reason string

const (
	ReasonNotFound         Reason = "not_found"
	ReasonInvalidSignature Reason = "invalid_signature"
	ReasonAmountMismatch   Reason = "amount_mismatch"
	ReasonConflict         Reason = "status_conflict"
	ReasonDuplicate        Reason = "duplicate"
)

// HTTPStatus maps a result onto the status code the API answers with.
func (r *PaymentResult) HTTPStatus() int {
	switch r.ErrorKind {
	case "":
		if !r.IsSuccess {
			return http.StatusAccepted
		}
		return http.StatusOK
	case KindValidation:
		switch r.Reason {
		case ReasonNotFound:
			return http.StatusNotFound
		case ReasonConflict:
			return http.StatusConflict
		}
		return http.StatusBadRequest
	}
	return r.ErrorKind.HTTPStatus()
}

func (r *QRCodeResult) HTTPStatus() int {
	return r.ErrorKind.HTTPStatus()
}

func (k ErrorKind) HTTPStatus() int {
	switch k {
	case "":
		return http.StatusOK
	case KindValidation:
		return http.StatusBadRequest
	case KindSignature:
		return http.StatusUnauthorized
	case KindConfiguration:
		return http.StatusServiceUnavailable
	case KindGateway:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func failure(kind ErrorKind, message string) *PaymentResult {
	return &PaymentResult{
		IsSuccess:    false,
		Status:       StatusFailed,
		ErrorMessage: message,
		ErrorKind:    kind,
	}
}

func qrFailure(kind ErrorKind, message string) *QRCodeResult {
	return &QRCodeResult{
		IsSuccess:    false,
		ErrorMessage: message,
		ErrorKind:    kind,
	}
}
