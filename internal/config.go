package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	Host           string `env:"HOST,default=0.0.0.0"`
	Port           int    `env:"PORT,default=8080"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/badger"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,default=./data/bluge"`
	UploadDir      string `env:"UPLOAD_DIR,default=./data/uploads"`
	PublicBaseURL  string `env:"PUBLIC_BASE_URL,default=http://localhost:8080"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=168h"`
	// Comma separated; "*" allows every origin
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=*"`

	MaxContentLength int   `env:"MAX_CONTENT_LENGTH,default=4000"`
	MaxUploadSize    int64 `env:"MAX_UPLOAD_SIZE,default=10485760"`
	LimitMessages    int   `env:"LIMIT_MESSAGES,default=50"`
	SearchPageSize   int   `env:"SEARCH_PAGE_SIZE,default=20"`

	SendBufferSize    int           `env:"SEND_BUFFER_SIZE,default=256"`
	MaxFrameSize      int64         `env:"MAX_FRAME_SIZE,default=65536"`
	RateLimitBurst    int           `env:"RATE_LIMIT_BURST,default=20"`
	RateLimitInterval time.Duration `env:"RATE_LIMIT_INTERVAL,default=100ms"`
	APIRateLimit      float64       `env:"API_RATE_LIMIT,default=10"`
	APIRateBurst      int           `env:"API_RATE_BURST,default=30"`

	ExcludeSenderOnSend bool   `env:"EXCLUDE_SENDER_ON_SEND,default=false"`
	ModerationEnabled   bool   `env:"MODERATION_ENABLED,default=true"`
	CharReplacement     string `env:"CHARACTER_REPLACEMENT,default=*"`

	GCInterval      time.Duration `env:"GC_INTERVAL,default=10m"`
	StatsInterval   time.Duration `env:"STATS_INTERVAL,default=15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=2s"`
}

// LoadConfig reads an optional .env file then the environment. Variables already
// set in the environment win over the file.
func LoadConfig(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && len(files) > 0 {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if config.LimitMessages <= 0 || config.SearchPageSize <= 0 || config.SendBufferSize <= 0 {
		return Config{}, fmt.Errorf("LIMIT_MESSAGES, SEARCH_PAGE_SIZE and SEND_BUFFER_SIZE must be positive")
	}
	return config, nil
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Origins splits ALLOWED_ORIGINS, dropping blanks.
func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
