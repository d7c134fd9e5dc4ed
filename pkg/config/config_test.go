package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"StratEngine/internal/domain/models"
)

const minimal = `
environment: test
kafka:
  brokers: ["localhost:9092"]
engine:
  timeframes: ["W", "D", "60m"]
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Server.Port != 8080 || c.Engine.Window != 32 || c.Engine.TickSize != 0.01 {
		t.Fatalf("defaults not applied: port=%d window=%d tick=%v", c.Server.Port, c.Engine.Window, c.Engine.TickSize)
	}
	if c.Scheduler.Retention != 720*time.Hour || c.Sink.MaxElapsed != 30*time.Second {
		t.Fatalf("duration defaults: %v %v", c.Scheduler.Retention, c.Sink.MaxElapsed)
	}
	if c.Risk.AccountValue != 100000 || c.Risk.MaxRiskReward != 0.5 {
		t.Fatalf("risk defaults: %+v", c.Risk)
	}
	tfs, err := c.ParsedTimeframes()
	if err != nil {
		t.Fatalf("timeframes: %v", err)
	}
	want := []models.Timeframe{models.TF60m, models.TFDay, models.TFWeek}
	for i := range want {
		if tfs[i] != want[i] {
			t.Fatalf("timeframes = %v, want %v", tfs, want)
		}
	}
}

func TestParseDefaultTimeframes(t *testing.T) {
	c, err := Parse([]byte("environment: test\nkafka:\n  brokers: [\"k:9092\"]\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(c.Engine.Timeframes) != 5 {
		t.Fatalf("default timeframes = %v", c.Engine.Timeframes)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"bad tier":        "environment: test\nkafka:\n  brokers: [\"k\"]\nengine:\n  confirmation_tier: eventually\n",
		"bad pattern":     "environment: test\nkafka:\n  brokers: [\"k\"]\nengine:\n  patterns: [\"5-5_reversal\"]\n",
		"bad tf":          "environment: test\nkafka:\n  brokers: [\"k\"]\nengine:\n  timeframes: [\"7m\"]\n",
		"dup tf":          "environment: test\nkafka:\n  brokers: [\"k\"]\nengine:\n  timeframes: [\"D\", \"1d\"]\n",
		"small window":    "environment: test\nkafka:\n  brokers: [\"k\"]\nengine:\n  window: 5\n",
		"no brokers":      "environment: test\n",
		"ws without url":  "environment: test\nfeed:\n  mode: websocket\nsink:\n  backend: none\n",
		"clickhouse host": "environment: test\nkafka:\n  brokers: [\"k\"]\naudit:\n  backend: clickhouse\n",
		"bad timezone":    "environment: test\nkafka:\n  brokers: [\"k\"]\nengine:\n  timezone: Mars/Olympus\n",
		"partial > full":  "environment: test\nkafka:\n  brokers: [\"k\"]\nrisk:\n  risk_percent_full: 0.01\n  risk_percent_partial: 0.02\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	baseline := minimal + "  window: 10\n  confirmation_tier: close_confirm\n  patterns: [\"rev_strat\"]\n"
	if _, err := Parse([]byte(baseline)); err != nil {
		t.Fatalf("baseline: %v", err)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(minimal), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("STRAT_SYMBOLS", "spy,qqq")
	t.Setenv("AUDIT_BACKEND", "none")
	t.Setenv("ACCOUNT_VALUE", "25000")

	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if strings.Join(c.Kafka.Brokers, ",") != "a:9092,b:9092" {
		t.Fatalf("brokers = %v", c.Kafka.Brokers)
	}
	if len(c.Engine.Symbols) != 2 || c.Audit.Backend != "none" || c.Risk.AccountValue != 25000 {
		t.Fatalf("overrides not applied: %+v %s %v", c.Engine.Symbols, c.Audit.Backend, c.Risk.AccountValue)
	}

	t.Setenv("ACCOUNT_VALUE", "lots")
	if _, err := LoadWithEnv(path); err == nil {
		t.Fatalf("expected ACCOUNT_VALUE parse error")
	}
}
