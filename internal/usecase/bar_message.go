package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"StratEngine/internal/domain/models"
	"StratEngine/pkg/util"
)

// BarMessage is the wire format shared by the Kafka and WebSocket feeds.
// open_time may be unix seconds, unix milliseconds or an RFC3339 string.
type BarMessage struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	OpenTime  json.RawMessage `json:"open_time"`
	Open      float64         `json:"open"`
	High      float64         `json:"high"`
	Low       float64         `json:"low"`
	Close     float64         `json:"close"`
	Sealed    bool            `json:"is_sealed"`
}

// DecodeBar parses one feed message into a Bar.
func DecodeBar(b []byte) (*models.Bar, error) {
	var m BarMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode bar: %w", err)
	}
	return m.ToBar()
}

// ToBar converts the message, resolving the timeframe and open time.
func (m BarMessage) ToBar() (*models.Bar, error) {
	tf, err := models.ParseTimeframe(m.Timeframe)
	if err != nil {
		return nil, err
	}
	raw := strings.Trim(strings.TrimSpace(string(m.OpenTime)), `"`)
	if raw == "" || raw == "null" {
		return nil, fmt.Errorf("%w: open_time missing", models.ErrInvalidBarGeometry)
	}
	ts, ok := util.ParseTime(raw)
	if !ok {
		return nil, fmt.Errorf("%w: open_time %q", models.ErrInvalidBarGeometry, raw)
	}
	return &models.Bar{
		Symbol:    strings.ToUpper(strings.TrimSpace(m.Symbol)),
		Timeframe: tf,
		OpenTime:  ts.UTC(),
		Open:      m.Open,
		High:      m.High,
		Low:       m.Low,
		Close:     m.Close,
		Sealed:    m.Sealed,
	}, nil
}
