package llm

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// ErrBudgetExceeded is returned when a call would overrun the monthly budget
var ErrBudgetExceeded = errors.New("monthly budget exceeded")

const microDollars = 1_000_000

// Reservation is an amount booked against one month of a Budget
type Reservation struct {
	amount int64
	month  int64
}

// Budget is a monthly spend counter shared by all analyses. A zero limit
// disables it.
type Budget struct {
	limit int64
	now   func() time.Time

	mu    sync.Mutex
	month int64
	spent int64
}

// NewBudget creates a budget of limit dollars per calendar month
func NewBudget(limit float64) *Budget {
	b := &Budget{limit: toMicro(limit), now: time.Now}
	b.month = monthKey(b.now())
	return b
}

// Reserve books estimate dollars, failing when the limit would be exceeded
func (b *Budget) Reserve(estimate float64) (Reservation, error) {
	if b == nil || b.limit <= 0 {
		return Reservation{}, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()

	amount := toMicro(estimate)
	if b.spent+amount > b.limit {
		return Reservation{}, fmt.Errorf("%w: spent %.4f of %.2f, call needs %.4f",
			ErrBudgetExceeded, fromMicro(b.spent), fromMicro(b.limit), estimate)
	}
	b.spent += amount
	return Reservation{amount: amount, month: b.month}, nil
}

// Settle replaces a reservation with the actual cost. A reservation from a
// month that has since closed only adds the actual cost to the current one.
func (b *Budget) Settle(res Reservation, actual float64) {
	if b == nil || b.limit <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()

	delta := toMicro(actual)
	if res.month == b.month {
		delta -= res.amount
	}
	b.spent = max(b.spent+delta, 0)
}

// Release returns a reservation that was not used
func (b *Budget) Release(res Reservation) {
	b.Settle(res, 0)
}

// Spent returns this month's spend in dollars
func (b *Budget) Spent() float64 {
	if b == nil {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return fromMicro(b.spent)
}

// rollover starts a new month; callers hold mu
func (b *Budget) rollover() {
	if current := monthKey(b.now()); current != b.month {
		b.month = current
		b.spent = 0
	}
}

func monthKey(t time.Time) int64 {
	return int64(t.Year())*100 + int64(t.Month())
}

func toMicro(dollars float64) int64 {
	return int64(math.Round(dollars * microDollars))
}

func fromMicro(micro int64) float64 {
	return float64(micro) / microDollars
}
