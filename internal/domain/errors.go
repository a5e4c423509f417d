package domain

import (
	"errors"
	"fmt"
)

// Error types for consistent error handling across the pix charge pipeline.
// Each pipeline stage short-circuits with exactly one of these.

// ErrorKind is the stable, client-visible name of a failure.
type ErrorKind string

const (
	KindInvalidInput   ErrorKind = "invalid_input"
	KindNotFound       ErrorKind = "not_found"
	KindAccessDenied   ErrorKind = "access_denied"
	KindAlreadySettled ErrorKind = "already_settled"
	KindCancelled      ErrorKind = "cancelled"
	KindEncoding       ErrorKind = "encoding_failure"
	KindTransientIO    ErrorKind = "transient_io_failure"
	KindUnauthorized   ErrorKind = "unauthorized"
	KindInternal       ErrorKind = "internal"
)

// ErrInvalidInput indicates a malformed request (bad identifier, bad body).
type ErrInvalidInput struct {
	Field   string
	Message string
}

func (e *ErrInvalidInput) Error() string {
	return fmt.Sprintf("invalid input on '%s': %s", e.Field, e.Message)
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrAccessDenied indicates the principal does not own the boleto.
// It deliberately carries nothing about the boleto itself.
type ErrAccessDenied struct{}

func (e *ErrAccessDenied) Error() string {
	return "access denied"
}

// ErrAlreadySettled indicates the boleto is already paid.
type ErrAlreadySettled struct {
	BoletoID int64
}

func (e *ErrAlreadySettled) Error() string {
	return fmt.Sprintf("boleto %d already settled", e.BoletoID)
}

// ErrCancelled indicates the boleto was cancelled.
type ErrCancelled struct {
	BoletoID int64
}

func (e *ErrCancelled) Error() string {
	return fmt.Sprintf("boleto %d cancelled", e.BoletoID)
}

// ErrEncoding indicates a payment code field cannot be represented, even after
// truncation.
type ErrEncoding struct {
	Field  string
	Reason string
}

func (e *ErrEncoding) Error() string {
	return fmt.Sprintf("cannot encode field '%s': %s", e.Field, e.Reason)
}

// ErrTransientIO indicates a store call timed out or failed in transit.
// Callers may retry.
type ErrTransientIO struct {
	Operation string
	Err       error
}

func (e *ErrTransientIO) Error() string {
	return fmt.Sprintf("transient failure during %s: %v", e.Operation, e.Err)
}

func (e *ErrTransientIO) Unwrap() error {
	return e.Err
}

// ErrUnauthorized indicates a missing, malformed or expired session token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	return e.Message
}

// KindOf classifies err. Anything unrecognised is KindInternal.
func KindOf(err error) ErrorKind {
	var (
		invalid   *ErrInvalidInput
		notFound  *ErrNotFound
		denied    *ErrAccessDenied
		settled   *ErrAlreadySettled
		cancelled *ErrCancelled
		encoding  *ErrEncoding
		transient *ErrTransientIO
		unauth    *ErrUnauthorized
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &invalid):
		return KindInvalidInput
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &denied):
		return KindAccessDenied
	case errors.As(err, &settled):
		return KindAlreadySettled
	case errors.As(err, &cancelled):
		return KindCancelled
	case errors.As(err, &encoding):
		return KindEncoding
	case errors.As(err, &transient):
		return KindTransientIO
	case errors.As(err, &unauth):
		return KindUnauthorized
	default:
		return KindInternal
	}
}

// UserMessage is the short pt-BR text shown to end users for each kind.
// It never contains internal identifiers.
func UserMessage(kind ErrorKind) string {
	switch kind {
	case KindInvalidInput:
		return "Identificador de boleto inválido"
	case KindNotFound:
		return "Boleto não encontrado"
	case KindAccessDenied:
		return "Você não tem permissão para acessar este boleto"
	case KindAlreadySettled:
		return "Este boleto já foi pago"
	case KindCancelled:
		return "Este boleto foi cancelado"
	case KindEncoding:
		return "Não foi possível gerar o código Pix para este boleto"
	case KindTransientIO:
		return "Serviço temporariamente indisponível, tente novamente em instantes"
	case KindUnauthorized:
		return "Sessão inválida ou expirada"
	default:
		return "Erro interno do servidor"
	}
}
