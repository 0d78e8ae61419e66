package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host      string `env:"HOST,default=0.0.0.0"`
	Port      int    `env:"PORT,default=8000"`
	GrpcPort  int    `env:"GRPC_PORT,default=50051"`
	DebugPort int    `env:"DEBUG_PORT,default=8081"`
	LogLevel  string `env:"LOG_LEVEL,default=INFO"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	JwtSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=30m"`

	HistoryLimit     int           `env:"HISTORY_LIMIT,default=50"`
	MaxPageSize      int           `env:"MAX_PAGE_SIZE,default=100"`
	SendTimeout      time.Duration `env:"SEND_TIMEOUT,default=5s"`
	PingInterval     time.Duration `env:"PING_INTERVAL,default=54s"`
	PongWait         time.Duration `env:"PONG_WAIT,default=60s"`
	MaxFrameSize     int64         `env:"MAX_FRAME_SIZE,default=8192"`
	MaxContentLength int           `env:"MAX_CONTENT_LENGTH,default=2000"`
	AllowedOrigins   string        `env:"ALLOWED_ORIGINS"`

	EnableModeration bool   `env:"ENABLE_MODERATION,default=false"`
	CharReplacement  string `env:"CHARACTER_REPLACEMENT,default=*"`

	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=30s"`
	GcInterval      time.Duration `env:"GC_INTERVAL,default=10m"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
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

// Origins splits ALLOWED_ORIGINS on commas. An empty list accepts any origin.
func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// AdminSeed reports whether the three ADMIN_* variables are set.
func (c Config) AdminSeed() bool {
	return c.AdminUsername != "" && c.AdminEmail != "" && c.AdminPassword != ""
}

func (c Config) Validate() error {
	intervals := []struct {
		key   string
		value time.Duration
	}{
		{"PING_INTERVAL", c.PingInterval},
		{"PONG_WAIT", c.PongWait},
		{"METRIC_INTERVAL", c.MetricInterval},
		{"GC_INTERVAL", c.GcInterval},
		{"RESTART_INTERVAL", c.RestartInterval},
	}
	for _, interval := range intervals {
		if interval.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", interval.key, interval.value)
		}
	}
	switch {
	case c.HistoryLimit <= 0:
		return fmt.Errorf("HISTORY_LIMIT must be positive, got %d", c.HistoryLimit)
	case c.MaxPageSize <= 0:
		return fmt.Errorf("MAX_PAGE_SIZE must be positive, got %d", c.MaxPageSize)
	case c.PingInterval >= c.PongWait:
		return fmt.Errorf("PING_INTERVAL (%s) must be shorter than PONG_WAIT (%s)", c.PingInterval, c.PongWait)
	case c.SendTimeout <= 0:
		return fmt.Errorf("SEND_TIMEOUT must be positive, got %s", c.SendTimeout)
	}
	return nil
}
