// Package notify entrega los mensajes de feedback por el canal externo configurado.
package notify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
)

// ErrOutcomeUnknown el mensaje pudo o no haber llegado (timeout, corte a mitad de la petición)
var ErrOutcomeUnknown = errors.New("resultado de entrega desconocido")

// Sender capacidad de envío send(recipient, message)
type Sender interface {
	// Send entrega el mensaje al destinatario. recipient vacío usa el destino por defecto.
	Send(ctx context.Context, recipient, message string) error
	// MaxMessageLength longitud máxima aceptada por el canal, en caracteres
	MaxMessageLength() int
}

// classifyTransportError marca como ErrOutcomeUnknown todo error de transporte salvo los que
// ocurren antes de enviar la petición (DNS, conexión rechazada, handshake TLS). Un corte después
// de escribir el cuerpo puede haber entregado el mensaje.
func classifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if failedBeforeSend(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)
}

// failedBeforeSend indica errores en los que el servidor nunca recibió la petición
func failedBeforeSend(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var authorityErr x509.UnknownAuthorityError
	if errors.As(err, &authorityErr) {
		return true
	}
	var hostnameErr x509.HostnameError
	return errors.As(err, &hostnameErr)
}
