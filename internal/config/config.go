package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Transport string

const (
	TransportTelegram Transport = "telegram"
	TransportBus      Transport = "bus"
	TransportIPC      Transport = "ipc"
)

var ErrMissing = errors.New("missing configuration")

type Config struct {
	TelegramToken string `env:"TELEGRAM_BOT_TOKEN"`
	OpenAIKey     string `env:"OPENAI_API_KEY"`

	CredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE,default=credentials.json"`
	TokenFile       string `env:"GOOGLE_TOKEN_FILE,default=token.json"`
	CalendarID      string `env:"CALENDAR_ID,default=primary"`

	ClassifierModel    string `env:"CLASSIFIER_MODEL,default=gpt-5-nano"`
	TranscribeModel    string `env:"TRANSCRIBE_MODEL,default=whisper-1"`
	TranscribeLanguage string `env:"TRANSCRIBE_LANGUAGE"`

	StagingDir     string        `env:"STAGING_DIR,default=voice_messages"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=60s"`

	BusURL      string `env:"BUS_URL,default=ws://localhost:8092/ws"`
	IPCSocket   string `env:"IPC_SOCKET,default=/tmp/calbot.sock"`
	MetricsAddr string `env:"METRICS_ADDR"`
	SocksProxy  string `env:"SOCKS_PROXY"`
}

// Load reads envFile (if present) into the process environment, then decodes
// the environment. Variables already set win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the secrets the chosen transport needs.
func (c Config) Validate(t Transport) error {
	var missing []string
	if c.OpenAIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.CredentialsFile == "" {
		missing = append(missing, "GOOGLE_CREDENTIALS_FILE")
	}

	switch t {
	case TransportTelegram:
		if c.TelegramToken == "" {
			missing = append(missing, "TELEGRAM_BOT_TOKEN")
		}
	case TransportBus:
		if c.BusURL == "" {
			missing = append(missing, "BUS_URL")
		}
	case TransportIPC:
		if c.IPCSocket == "" {
			missing = append(missing, "IPC_SOCKET")
		}
	default:
		return fmt.Errorf("unknown transport %q", t)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	return nil
}
