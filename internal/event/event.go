// Package event standardizes payloads exchanged between the replay,
// strategy, portfolio, and execution layers, plus the queue that carries
// them through one backtest step.
package event

import "time"

// Kind discriminates event payloads on the queue.
type Kind string

const (
	KindMarket Kind = "MARKET"
	KindSignal Kind = "SIGNAL"
	KindOrder  Kind = "ORDER"
	KindFill   Kind = "FILL"
)

// Event is any payload that can travel through the backtest queue. Events
// are values: nothing holds a reference after handing one to the queue.
type Event interface {
	Kind() Kind
}

// MarketUpdate announces that the replay cursor advanced. It carries no
// payload; consumers query the cursor for current bars.
type MarketUpdate struct{}

// Kind implements Event.
func (MarketUpdate) Kind() Kind { return KindMarket }

// SignalType enumerates the trading biases a strategy can express.
type SignalType string

const (
	SignalLong  SignalType = "LONG"
	SignalShort SignalType = "SHORT"
	SignalExit  SignalType = "EXIT"
)

// Signal expresses a trading bias produced by a strategy implementation.
type Signal struct {
	Market   string
	Type     SignalType
	Strength float64 // sizing weight, typically in (0, 1]
	At       time.Time
}

// Kind implements Event.
func (Signal) Kind() Kind { return KindSignal }

// Direction enumerates order sides.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Order represents a placement request the execution layer can process.
type Order struct {
	Market    string
	Direction Direction
	Quantity  int64
	Price     float64 // bar mean price at signal time, not execution price
}

// Kind implements Event.
func (Order) Kind() Kind { return KindOrder }

// Fill confirms that an Order was executed. Quantity and Price need not
// equal the requested order's; Commission is never negative.
type Fill struct {
	Market     string
	Direction  Direction
	Quantity   int64
	Price      float64
	Commission float64
	At         time.Time
}

// Kind implements Event.
func (Fill) Kind() Kind { return KindFill }
