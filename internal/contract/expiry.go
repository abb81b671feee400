// Package contract resolves the quarterly futures contract a symbol should be
// quoted and traded in.
package contract

import (
	"fmt"
	"strings"
	"time"

	exchange "swing-trigger/pkg/exchanges/common"
)

// ThirdFriday returns midnight of the third Friday of the month in loc.
//
// Laid out as a Monday-first calendar, the third Friday sits in the third row
// when the first row already holds a Friday and in the fourth row otherwise.
func ThirdFriday(year int, month time.Month, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := (int(time.Friday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+14)
}

// FrontMonth returns the yyyymm code of the nearest quarterly contract that has
// not yet reached its roll date. The roll date is rollDaysBefore days ahead of
// the contract's third Friday; on or after it the next quarter is returned.
// symbol does not take part in the quarterly cycle.
func FrontMonth(symbol string, today time.Time, rollDaysBefore int) string {
	_ = symbol
	year := today.Year()
	qm := ((int(today.Month())-1)/3 + 1) * 3

	roll := ThirdFriday(year, time.Month(qm), today.Location()).AddDate(0, 0, -rollDaysBefore)
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	if !day.Before(roll) {
		qm += 3
		if qm > 12 {
			qm -= 12
			year++
		}
	}
	return fmt.Sprintf("%d%02d", year, qm)
}

// Resolver builds contract descriptors for the current front month.
type Resolver struct {
	Exchange       string
	Currency       string
	RollDaysBefore int
	Location       *time.Location
	Now            func() time.Time
}

// Front returns the front-month future for symbol as of now.
func (r *Resolver) Front(symbol string) exchange.Contract {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	today := now()
	if r.Location != nil {
		today = today.In(r.Location)
	}
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	return exchange.Contract{
		Symbol:   sym,
		Expiry:   FrontMonth(sym, today, r.RollDaysBefore),
		Exchange: r.Exchange,
		Currency: r.Currency,
		SecType:  exchange.SecTypeFuture,
	}
}
