package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contiene toda la configuración del sistema
type Config struct {
	Database DatabaseConfig
	HTTP     HTTPConfig
	Query    QueryConfig
	Dispatch DispatchConfig
	Discord  DiscordConfig
	Webhook  WebhookConfig
	Journal  JournalConfig
	Log      LogConfig
}

// DatabaseConfig configuración de la base de datos (MySQL en producción, SQLite en local)
type DatabaseConfig struct {
	Driver     string // "mysql" o "sqlite"
	Host       string
	Port       string
	Username   string
	Password   string
	Database   string
	SQLitePath string
}

// HTTPConfig configuración del servidor HTTP
type HTTPConfig struct {
	Addr    string
	GinMode string
}

// QueryConfig límites de paginación del listado de evaluaciones
type QueryConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// DispatchConfig configuración del envío de feedback
type DispatchConfig struct {
	Sender       string // "discord" o "webhook"
	SendTimeout  time.Duration
	ClaimTimeout time.Duration
}

// DiscordConfig configuración del bot de Discord
type DiscordConfig struct {
	BotToken       string
	Channels       map[string]string // Map de recipient -> channel ID
	DefaultChannel string
}

// WebhookConfig pasarela HTTP (p. ej. gateway de WhatsApp)
type WebhookConfig struct {
	URL   string
	Token string
}

// JournalConfig directorio del registro de envíos
type JournalConfig struct {
	BasePath string
}

// LogConfig configuración del logger
type LogConfig struct {
	Level       string
	Development bool
}

// Load carga la configuración desde variables de entorno
func Load() (*Config, error) {
	// Cargar archivo .env si existe
	godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Driver:     getEnvOrDefault("DB_DRIVER", "mysql"),
			Host:       getEnvOrDefault("DB_HOST", "localhost"),
			Port:       getEnvOrDefault("DB_PORT", "3306"),
			Username:   os.Getenv("DB_USERNAME"),
			Password:   os.Getenv("DB_PASSWORD"),
			Database:   getEnvOrDefault("DB_DATABASE", "furina_review"),
			SQLitePath: getEnvOrDefault("DB_SQLITE_PATH", "data/furina_review.db"),
		},
		HTTP: HTTPConfig{
			Addr:    getEnvOrDefault("HTTP_ADDR", ":8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
		},
		Query: QueryConfig{
			DefaultLimit: getIntOrDefault("QUERY_DEFAULT_LIMIT", 100),
			MaxLimit:     getIntOrDefault("QUERY_MAX_LIMIT", 500),
		},
		Dispatch: DispatchConfig{
			Sender:       getEnvOrDefault("DISPATCH_SENDER", "discord"),
			SendTimeout:  time.Duration(getIntOrDefault("DISPATCH_SEND_TIMEOUT_SECONDS", 30)) * time.Second,
			ClaimTimeout: time.Duration(getIntOrDefault("DISPATCH_CLAIM_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Discord: DiscordConfig{
			BotToken:       os.Getenv("DISCORD_BOT_TOKEN"),
			Channels:       parseDiscordChannels(os.Getenv("DISCORD_CHANNELS")),
			DefaultChannel: os.Getenv("DISCORD_DEFAULT_CHANNEL"),
		},
		Webhook: WebhookConfig{
			URL:   os.Getenv("WEBHOOK_URL"),
			Token: os.Getenv("WEBHOOK_TOKEN"),
		},
		Journal: JournalConfig{
			BasePath: getEnvOrDefault("JOURNAL_BASE_PATH", "data/dispatches"),
		},
		Log: LogConfig{
			Level:       getEnvOrDefault("LOG_LEVEL", "info"),
			Development: os.Getenv("LOG_DEVELOPMENT") == "true",
		},
	}

	if config.Query.DefaultLimit > config.Query.MaxLimit {
		config.Query.DefaultLimit = config.Query.MaxLimit
	}

	return config, nil
}

// Validate verifica que los valores obligatorios para el driver y el sender elegidos estén presentes
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql":
		if c.Database.Username == "" {
			return fmt.Errorf("DB_USERNAME es obligatorio con DB_DRIVER=mysql")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("DB_SQLITE_PATH es obligatorio con DB_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("DB_DRIVER desconocido: %q", c.Database.Driver)
	}

	switch c.Dispatch.Sender {
	case "discord":
		if c.Discord.BotToken == "" {
			return fmt.Errorf("DISCORD_BOT_TOKEN es obligatorio con DISPATCH_SENDER=discord")
		}
		if c.Discord.DefaultChannel == "" && len(c.Discord.Channels) == 0 {
			return fmt.Errorf("se requiere DISCORD_DEFAULT_CHANNEL o DISCORD_CHANNELS")
		}
	case "webhook":
		if c.Webhook.URL == "" {
			return fmt.Errorf("WEBHOOK_URL es obligatorio con DISPATCH_SENDER=webhook")
		}
	default:
		return fmt.Errorf("DISPATCH_SENDER desconocido: %q", c.Dispatch.Sender)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntOrDefault devuelve el entero de la variable o el valor por defecto si no es un entero positivo
func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

// parseDiscordChannels parsea los canales de Discord
// Formato esperado: DISCORD_CHANNELS="recipient1:channelID1,recipient2:channelID2"
func parseDiscordChannels(channelsEnv string) map[string]string {
	channels := make(map[string]string)
	if channelsEnv == "" {
		return channels
	}

	for _, pair := range strings.Split(channelsEnv, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			recipient := strings.TrimSpace(parts[0])
			channelID := strings.TrimSpace(parts[1])
			if recipient != "" && channelID != "" {
				channels[recipient] = channelID
			}
		}
	}

	return channels
}
