package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full environment surface of the booking service.
type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`

	// Business calendar.
	BusinessTimezone string `envconfig:"BUSINESS_TIMEZONE" default:"Europe/Madrid"`
	BusinessOpen     string `envconfig:"BUSINESS_OPEN" default:"09:00"`
	BusinessClose    string `envconfig:"BUSINESS_CLOSE" default:"18:00"`
	SlotMinutes      int    `envconfig:"SLOT_MINUTES" default:"30"`
	SameDayCutoff    string `envconfig:"SAME_DAY_CUTOFF" default:"12:00"`

	// Lifecycle TTLs.
	HoldTTL            time.Duration `envconfig:"HOLD_TTL" default:"15m"`
	SessionTokenTTL    time.Duration `envconfig:"SESSION_TOKEN_TTL" default:"30m"`
	CancelTokenTTL     time.Duration `envconfig:"CANCEL_TOKEN_TTL" default:"720h"`
	RescheduleTokenTTL time.Duration `envconfig:"RESCHEDULE_TOKEN_TTL" default:"720h"`

	// After a successful reschedule the original token is consumed. When
	// true a fresh reschedule token is minted and returned.
	RescheduleTokenReissue bool `envconfig:"RESCHEDULE_TOKEN_REISSUE" default:"false"`

	// Honor caller-supplied "now" overrides. Must stay off in production;
	// it exists for deterministic demos and tests.
	AllowNowOverride bool `envconfig:"ALLOW_NOW_OVERRIDE" default:"false"`

	// Links embedded in outbound notifications.
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:5173"`

	// Notification dispatch. Empty AMQP_URL disables dispatch.
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"booking.notifications"`
	OpsEmail     string `envconfig:"OPS_EMAIL"`

	// Rate limiting. Empty REDIS_URL disables it.
	RedisURL           string `envconfig:"REDIS_URL"`
	RateLimitPerMinute int    `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, err
	}
	return c, nil
}
