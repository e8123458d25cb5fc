package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	BackendBadger = "badger"
	BackendMemory = "memory"
)

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=3001"`
	GrpcPort             int           `env:"GRPC_PORT,default=0"`
	DebugPort            int           `env:"DEBUG_PORT,default=0"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS,default=*"`
	MaxMessageSize       int64         `env:"MAX_MESSAGE_SIZE,default=65536"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	CommandBufferSize    int           `env:"COMMAND_BUFFER_SIZE,default=1024"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=1s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=15s"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,default=16"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	MessageLogBackend    string        `env:"MESSAGE_LOG_BACKEND,default=badger"`
	JwtSecret            string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	AvatarMaxBytes       int           `env:"AVATAR_MAX_BYTES,default=2097152"`
	StaticDir            string        `env:"STATIC_DIR"`
	PingInterval         time.Duration `env:"PING_INTERVAL,default=30s"`
	PongTimeout          time.Duration `env:"PONG_TIMEOUT,default=60s"`
}

// LoadConfig reads envFile, when given, then the process environment.
// Variables already set in the environment win over the file.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("env file %s: %w", envFile, err)
		}
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	switch c.MessageLogBackend {
	case BackendBadger, BackendMemory:
	default:
		return fmt.Errorf("MESSAGE_LOG_BACKEND must be %q or %q, got %q", BackendBadger, BackendMemory, c.MessageLogBackend)
	}
	if c.ConnectionBufferSize <= 0 || c.CommandBufferSize <= 0 {
		return fmt.Errorf("buffer sizes must be positive, got connection=%d command=%d",
			c.ConnectionBufferSize, c.CommandBufferSize)
	}
	if c.PingInterval > 0 && c.PongTimeout <= c.PingInterval {
		return fmt.Errorf("PONG_TIMEOUT (%s) must exceed PING_INTERVAL (%s)", c.PongTimeout, c.PingInterval)
	}
	return nil
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
