package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"llm-spot-trader/internal/types"
)

var (
	errLedgerFull    = errors.New("position limit reached")
	errDuplicate     = errors.New("position already open")
	errEmptyPosition = errors.New("position quantity must be positive")
)

// ledger holds the open positions in the order they were opened. It is
// touched only by the worker goroutine.
type ledger struct {
	max       int
	order     []string
	positions map[string]*types.Position
}

func newLedger(max int) *ledger {
	return &ledger{max: max, positions: make(map[string]*types.Position)}
}

func (l *ledger) len() int { return len(l.order) }

func (l *ledger) has(symbol string) bool { return l.positions[symbol] != nil }

func (l *ledger) get(symbol string) (types.Position, bool) {
	p := l.positions[symbol]
	if p == nil {
		return types.Position{}, false
	}
	return *p, true
}

func (l *ledger) open(p types.Position) error {
	switch {
	case p.Quantity <= 0:
		return fmt.Errorf("%s: %w", p.Symbol, errEmptyPosition)
	case l.has(p.Symbol):
		return fmt.Errorf("%s: %w", p.Symbol, errDuplicate)
	case l.max > 0 && l.len() >= l.max:
		return fmt.Errorf("%s: %w (%d)", p.Symbol, errLedgerFull, l.max)
	}
	cp := p
	l.positions[p.Symbol] = &cp
	l.order = append(l.order, p.Symbol)
	return nil
}

// reduce subtracts qty and removes the position once nothing is left.
func (l *ledger) reduce(symbol string, qty float64) (remaining float64, closed bool) {
	p := l.positions[symbol]
	if p == nil {
		return 0, true
	}
	remaining, _ = decimal.NewFromFloat(p.Quantity).Sub(decimal.NewFromFloat(qty)).Float64()
	if remaining <= 0 {
		l.close(symbol)
		return 0, true
	}
	p.Quantity = remaining
	return remaining, false
}

func (l *ledger) close(symbol string) {
	if l.positions[symbol] == nil {
		return
	}
	delete(l.positions, symbol)
	for i, s := range l.order {
		if s == symbol {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// updateStops raises the stop-loss and sets the take-profit when tp is
// present. A stop-loss below the current one is ignored. It reports whether
// anything changed.
func (l *ledger) updateStops(symbol string, sl float64, tp types.Opt) bool {
	p := l.positions[symbol]
	if p == nil {
		return false
	}
	changed := false
	if sl > p.StopLoss {
		p.StopLoss = sl
		changed = true
	}
	if v, ok := tp.Get(); ok && v > 0 && v != p.TakeProfit {
		p.TakeProfit = v
		changed = true
	}
	return changed
}

// list copies the positions in ledger order.
func (l *ledger) list() []types.Position {
	out := make([]types.Position, 0, len(l.order))
	for _, s := range l.order {
		out = append(out, *l.positions[s])
	}
	return out
}
