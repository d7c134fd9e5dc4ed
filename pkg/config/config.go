package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"StratEngine/internal/domain/models"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors"`
	} `yaml:"server"`
	Logging struct {
		Level              string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format             string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output             string `yaml:"output" default:"stdout"`
		CollectorTopic     string `yaml:"collector_topic"`
		CollectorThreshold int    `yaml:"collector_threshold" default:"100"`
	} `yaml:"logging"`
	Metrics struct {
		Disabled bool `yaml:"disabled"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"5ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"strat-engine"`
			Workers    int           `yaml:"workers" default:"4" validate:"gte=1"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"strat"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	SQLite struct {
		Path string `yaml:"path" default:"strat_audit.db"`
	} `yaml:"sqlite"`
	Redis struct {
		Addr        string        `yaml:"addr" default:"localhost:6379"`
		Password    string        `yaml:"password"`
		DB          int           `yaml:"db"`
		Prefix      string        `yaml:"prefix" default:"strat"`
		QueueMaxLen int64         `yaml:"queue_max_len" default:"10000"`
		SnapshotTTL time.Duration `yaml:"snapshot_ttl" default:"24h"`
	} `yaml:"redis"`
	Feed struct {
		Mode           string        `yaml:"mode" default:"kafka" validate:"oneof=kafka websocket both"`
		KafkaTopic     string        `yaml:"kafka_topic" default:"strat.bars"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Token          string        `yaml:"token"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"2s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		MaxRPS         float64       `yaml:"max_rps" default:"5"`
		Burst          int           `yaml:"burst" default:"10"`
	} `yaml:"feed"`
	Sink struct {
		Backend    string        `yaml:"backend" default:"kafka" validate:"oneof=kafka redis none"`
		KafkaTopic string        `yaml:"kafka_topic" default:"strat.plans"`
		ExitTopic  string        `yaml:"exit_topic" default:"strat.exits"`
		MaxElapsed time.Duration `yaml:"max_elapsed" default:"30s"`
	} `yaml:"sink"`
	Audit struct {
		Backend string `yaml:"backend" default:"sqlite" validate:"oneof=clickhouse sqlite none"`
	} `yaml:"audit"`
	Cache struct {
		Backend string `yaml:"backend" default:"memory" validate:"oneof=redis memory none"`
	} `yaml:"cache"`
	Scheduler struct {
		RefreshCron   string        `yaml:"refresh_cron" default:"*/30 * * * * *"`
		RetentionCron string        `yaml:"retention_cron" default:"0 0 3 * * *"`
		Retention     time.Duration `yaml:"retention" default:"720h"`
	} `yaml:"scheduler"`
	Engine struct {
		Symbols          []string `yaml:"symbols"`
		Timeframes       []string `yaml:"timeframes" default:"[\"60m\",\"4h\",\"D\",\"W\",\"M\"]" validate:"min=1"`
		Rollup           bool     `yaml:"rollup"`
		Window           int      `yaml:"window" default:"32" validate:"gte=10"`
		Timezone         string   `yaml:"timezone" default:"America/New_York"`
		TickSize         float64  `yaml:"tick_size" default:"0.01" validate:"gt=0"`
		Patterns         []string `yaml:"patterns"`
		ConfirmationTier string   `yaml:"confirmation_tier" default:"aggressive"`
		MaxPendingBars   int      `yaml:"max_pending_bars" default:"3" validate:"gte=1"`
		RecentLimit      int      `yaml:"recent_limit" default:"50" validate:"gte=1"`
	} `yaml:"engine"`
	Risk struct {
		AccountValue       float64 `yaml:"account_value" default:"100000" validate:"gt=0"`
		RiskPercentFull    float64 `yaml:"risk_percent_full" default:"0.02" validate:"gt=0,lte=1"`
		RiskPercentPartial float64 `yaml:"risk_percent_partial" default:"0.01" validate:"gt=0,lte=1"`
		MaxRiskReward      float64 `yaml:"max_risk_reward" default:"0.5" validate:"gt=0"`
		BufferTicks        int     `yaml:"buffer_ticks" validate:"gte=0"`
		MinConfidence      float64 `yaml:"min_confidence" validate:"gte=0"`
		BaseConfidence     float64 `yaml:"base_confidence" validate:"gte=0"`
	} `yaml:"risk"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file, applies defaults and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.finish(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) finish() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// LoadWithEnv loads .env (when present), then the YAML file, then applies
// environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.finish(); err != nil {
		return nil, err
	}
	return &c, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("STRAT_SYMBOLS"); v != "" {
		c.Engine.Symbols = splitList(v)
	}
	if v := os.Getenv("STRAT_TIMEFRAMES"); v != "" {
		c.Engine.Timeframes = splitList(v)
	}
	if v := os.Getenv("AUDIT_BACKEND"); v != "" {
		c.Audit.Backend = v
	}
	if v := os.Getenv("SINK_BACKEND"); v != "" {
		c.Sink.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("FEED_TOKEN"); v != "" {
		c.Feed.Token = v
	}
	if v := os.Getenv("ACCOUNT_VALUE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("ACCOUNT_VALUE: %w", err)
		}
		c.Risk.AccountValue = f
	}
	return nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.ParsedTimeframes(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("engine.timezone: %w", err)
	}
	if !models.IsValidTier(models.ConfirmationTier(c.Engine.ConfirmationTier)) {
		return fmt.Errorf("engine.confirmation_tier %q is not a known tier", c.Engine.ConfirmationTier)
	}
	if _, err := c.ParsedPatterns(); err != nil {
		return err
	}
	if c.Risk.RiskPercentPartial > c.Risk.RiskPercentFull {
		return fmt.Errorf("risk.risk_percent_partial must not exceed risk.risk_percent_full")
	}
	needKafka := c.Feed.Mode != "websocket" || c.Sink.Backend == "kafka"
	if needKafka && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required for feed.mode=%s sink.backend=%s", c.Feed.Mode, c.Sink.Backend)
	}
	if c.Feed.Mode != "kafka" && c.Feed.WebSocketURL == "" {
		return fmt.Errorf("feed.websocket_url is required for feed.mode=%s", c.Feed.Mode)
	}
	if c.Audit.Backend == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for audit.backend=clickhouse")
	}
	return nil
}

// ParsedTimeframes returns the configured timeframes, ascending and de-duplicated.
func (c *Config) ParsedTimeframes() ([]models.Timeframe, error) {
	seen := make(map[models.Timeframe]bool, len(c.Engine.Timeframes))
	out := make([]models.Timeframe, 0, len(c.Engine.Timeframes))
	for _, s := range c.Engine.Timeframes {
		tf, err := models.ParseTimeframe(s)
		if err != nil {
			return nil, fmt.Errorf("engine.timeframes: %w", err)
		}
		if seen[tf] {
			return nil, fmt.Errorf("engine.timeframes: %s listed twice", tf)
		}
		seen[tf] = true
		out = append(out, tf)
	}
	models.SortAscending(out)
	return out, nil
}

// ParsedPatterns returns the enabled pattern kinds; empty means all.
func (c *Config) ParsedPatterns() ([]models.PatternKind, error) {
	out := make([]models.PatternKind, 0, len(c.Engine.Patterns))
	for _, s := range c.Engine.Patterns {
		k := models.PatternKind(strings.TrimSpace(s))
		if !models.IsValidPatternKind(k) {
			return nil, fmt.Errorf("engine.patterns: unknown pattern %q", s)
		}
		out = append(out, k)
	}
	return out, nil
}

// Location resolves engine.timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Engine.Timezone)
}
