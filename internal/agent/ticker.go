package agent

import "time"

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type systemTicker struct {
	ticker *time.Ticker
}

// NewSystemTicker wraps time.NewTicker.
func NewSystemTicker(d time.Duration) Ticker {
	return systemTicker{ticker: time.NewTicker(d)}
}

func (t systemTicker) C() <-chan time.Time { return t.ticker.C }

func (t systemTicker) Stop() { t.ticker.Stop() }
