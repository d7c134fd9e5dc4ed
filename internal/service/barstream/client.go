package barstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"StratEngine/internal/domain/models"
	drepo "StratEngine/internal/domain/repository"
	"StratEngine/internal/usecase"
	"StratEngine/pkg/logger"
)

// Config describes the upstream bar feed.
type Config struct {
	URL            string
	Token          string
	Symbols        []string
	Timeframes     []string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
}

// Client implements a BarStream backed by a WebSocket feed.
type Client struct {
	cfg    Config
	logger *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// New creates a new WebSocket BarStream.
func New(cfg Config, log *logger.Logger) drepo.BarStream {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Client{cfg: cfg, logger: log}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("barstream connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.logger.Info("barstream: connected", logger.String("url", c.cfg.URL))
	return nil
}

type subscribeMsg struct {
	Type       string   `json:"type"`
	Symbol     string   `json:"symbol"`
	Timeframes []string `json:"timeframes,omitempty"`
}

// Subscribe subscribes to configured symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return fmt.Errorf("barstream not connected")
	}
	for _, s := range c.cfg.Symbols {
		msg := subscribeMsg{Type: "subscribe", Symbol: s, Timeframes: c.cfg.Timeframes}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	c.logger.Info("barstream: subscribed", logger.Strings("symbols", c.cfg.Symbols))
	return nil
}

type frame struct {
	Type string               `json:"type"`
	Data []usecase.BarMessage `json:"data"`
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	return c.conn
}

// Read streams bars and errors until ctx is done. A read error is reported on
// the error channel and reading resumes once the connection is replaced.
func (c *Client) Read(ctx context.Context) (<-chan *models.Bar, <-chan error) {
	bars := make(chan *models.Bar, 1024)
	errs := make(chan error, 1)

	go c.pingLoop(ctx)

	go func() {
		defer close(bars)
		defer close(errs)
		for {
			if ctx.Err() != nil {
				return
			}
			conn := c.current()
			if conn == nil {
				if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
					return
				}
				continue
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				c.mu.Lock()
				if c.conn == conn {
					c.connected = false
				}
				c.mu.Unlock()
				select {
				case errs <- fmt.Errorf("barstream read: %w", err):
				default:
				}
				continue
			}
			var f frame
			if err := json.Unmarshal(b, &f); err != nil || f.Type != "bar" {
				// ignore non-bar frames
				continue
			}
			for _, m := range f.Data {
				bar, err := m.ToBar()
				if err != nil {
					c.logger.Debug("barstream: skip message", logger.Error(err))
					continue
				}
				if bar.Sealed {
					// sealed bars carry final state and are never dropped
					select {
					case bars <- bar:
					case <-ctx.Done():
						return
					}
					continue
				}
				select {
				case bars <- bar:
				default:
					// live update dropped on backpressure
				}
			}
		}
	}()

	return bars, errs
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.conn != nil && c.connected {
				_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
			c.mu.Unlock()
		}
	}
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
		return ctx.Err()
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
