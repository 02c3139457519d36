package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// discordMaxMessageLength límite de Discord para el contenido de un mensaje
const discordMaxMessageLength = 2000

type DiscordConfig struct {
	BotToken       string
	Channels       map[string]string // Map de recipient -> channel ID
	DefaultChannel string
}

// channelMessenger subconjunto de *discordgo.Session usado para enviar
type channelMessenger interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSender envía el feedback al canal de Discord del destinatario
type DiscordSender struct {
	session channelMessenger
	config  *DiscordConfig
	logger  *zap.Logger
	closer  func()
}

func NewDiscordSender(config *DiscordConfig, logger *zap.Logger) (*DiscordSender, error) {
	session, err := discordgo.New("Bot " + config.BotToken)
	if err != nil {
		return nil, fmt.Errorf("error creando sesión Discord: %w", err)
	}

	return &DiscordSender{
		session: session,
		config:  config,
		logger:  logger,
		closer:  func() { session.Close() },
	}, nil
}

// ChannelForRecipient obtiene el canal de Discord para un destinatario; usa el canal por defecto si no hay uno propio
func (d *DiscordSender) ChannelForRecipient(recipient string) (string, bool) {
	if channelID, exists := d.config.Channels[recipient]; exists {
		return channelID, true
	}
	if d.config.DefaultChannel != "" {
		return d.config.DefaultChannel, true
	}
	return "", false
}

// Send envía el mensaje como texto plano; Discord interpreta *negrita* y _cursiva_
func (d *DiscordSender) Send(ctx context.Context, recipient, message string) error {
	channelID, ok := d.ChannelForRecipient(recipient)
	if !ok {
		return fmt.Errorf("no se encontró canal para recipient: %q", recipient)
	}

	msg, err := d.session.ChannelMessageSend(channelID, message, discordgo.WithContext(ctx))
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) {
			// Discord respondió: el rechazo es definitivo
			return fmt.Errorf("error enviando mensaje a Discord: %w", err)
		}
		return fmt.Errorf("error enviando mensaje a Discord: %w", classifyTransportError(err))
	}

	d.logger.Debug("Mensaje enviado a Discord",
		zap.String("recipient", recipient), zap.String("channel_id", channelID), zap.String("message_id", msg.ID))
	return nil
}

func (d *DiscordSender) MaxMessageLength() int {
	return discordMaxMessageLength
}

// Close cierra la sesión con Discord
func (d *DiscordSender) Close() {
	if d.closer != nil {
		d.closer()
	}
}
