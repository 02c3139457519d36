package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const webhookMaxMessageLength = 4096

type WebhookConfig struct {
	URL   string
	Token string
}

// WebhookSender publica el mensaje en una pasarela HTTP (p. ej. gateway de WhatsApp)
type WebhookSender struct {
	url        string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWebhookSender crea el sender; el timeout lo controla el contexto de cada envío
func NewWebhookSender(config *WebhookConfig, logger *zap.Logger) *WebhookSender {
	return &WebhookSender{
		url:        config.URL,
		token:      config.Token,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type webhookRequest struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// Send publica {recipient, message}; cualquier respuesta 2xx es una entrega confirmada
func (w *WebhookSender) Send(ctx context.Context, recipient, message string) error {
	body, err := json.Marshal(webhookRequest{Recipient: recipient, Message: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creando request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error llamando webhook: %w", classifyTransportError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook error %d: %s", resp.StatusCode, string(respBody))
	}

	w.logger.Debug("Mensaje entregado al webhook", zap.String("recipient", recipient), zap.Int("status", resp.StatusCode))
	return nil
}

func (w *WebhookSender) MaxMessageLength() int {
	return webhookMaxMessageLength
}
