package clickhouse

import (
	"testing"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
)

func TestOptions(t *testing.T) {
	cfg := defaultConfig()
	for _, opt := range []ClientOption{
		WithHost("ch.local"),
		WithPort(0),
		WithDatabase("strat"),
		WithCredentials("", "secret"),
		WithTimeouts(0, 5*time.Second, 20*time.Second),
		WithAsyncInsert(true, true),
		WithMaxExecutionTime(90 * time.Second),
		WithHTTP(true),
	} {
		opt(&cfg)
	}

	o := cfg.options()
	if len(o.Addr) != 1 || o.Addr[0] != "ch.local:9000" {
		t.Fatalf("addr = %v", o.Addr)
	}
	if o.Auth.Database != "strat" || o.Auth.Username != "default" || o.Auth.Password != "secret" {
		t.Fatalf("auth = %+v", o.Auth)
	}
	if o.Protocol != ch.HTTP {
		t.Fatalf("protocol = %v", o.Protocol)
	}
	if o.DialTimeout != 5*time.Second || o.ReadTimeout != 20*time.Second {
		t.Fatalf("timeouts dial=%v read=%v", o.DialTimeout, o.ReadTimeout)
	}
	if o.Settings["max_execution_time"] != 90 || o.Settings["async_insert"] != 1 || o.Settings["wait_for_async_insert"] != 1 {
		t.Fatalf("settings = %v", o.Settings)
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Fatal("expected error without host")
	}
}
