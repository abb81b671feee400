package contract

import (
	"testing"
	"time"
)

func TestThirdFriday(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month time.Month
		want  int
	}{
		{name: "first is friday", year: 2024, month: time.March, want: 15},
		{name: "first is saturday", year: 2024, month: time.June, want: 21},
		{name: "first is sunday", year: 2024, month: time.December, want: 20},
		{name: "first is monday", year: 2025, month: time.September, want: 19},
		{name: "first is thursday", year: 2026, month: time.October, want: 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ThirdFriday(tt.year, tt.month, time.UTC)
			if got.Weekday() != time.Friday {
				t.Fatalf("weekday=%v, expected Friday", got.Weekday())
			}
			if got.Day() != tt.want || got.Month() != tt.month {
				t.Fatalf("ThirdFriday(%d,%v)=%v, expected day %d", tt.year, tt.month, got, tt.want)
			}
		})
	}
}

func TestFrontMonth(t *testing.T) {
	date := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 10, 30, 0, 0, time.UTC)
	}

	tests := []struct {
		name  string
		today time.Time
		roll  int
		want  string
	}{
		// March 2024: third Friday 15th, roll date 7th.
		{name: "before roll date", today: date(2024, time.March, 6), roll: 8, want: "202403"},
		{name: "on roll date", today: date(2024, time.March, 7), roll: 8, want: "202406"},
		{name: "after roll date", today: date(2024, time.March, 20), roll: 8, want: "202406"},
		{name: "first month of quarter", today: date(2024, time.April, 2), roll: 8, want: "202406"},
		{name: "zero roll days on expiry", today: date(2024, time.June, 21), roll: 0, want: "202409"},
		{name: "zero roll days day before expiry", today: date(2024, time.June, 20), roll: 0, want: "202406"},
		// December 2024: third Friday 20th, roll date 12th.
		{name: "december before roll", today: date(2024, time.November, 20), roll: 8, want: "202412"},
		{name: "december rolls into next year", today: date(2024, time.December, 12), roll: 8, want: "202503"},
		{name: "late december", today: date(2024, time.December, 31), roll: 8, want: "202503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FrontMonth("MES", tt.today, tt.roll); got != tt.want {
				t.Fatalf("FrontMonth(%v, %d)=%s, expected %s", tt.today, tt.roll, got, tt.want)
			}
		})
	}
}

func TestFrontMonthIgnoresSymbol(t *testing.T) {
	today := time.Date(2025, time.May, 5, 0, 0, 0, 0, time.UTC)
	if FrontMonth("MES", today, 8) != FrontMonth("NQ", today, 8) {
		t.Fatal("expected symbol to not affect the quarterly cycle")
	}
}

func TestResolverFront(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	r := Resolver{
		Exchange:       "CME",
		Currency:       "USD",
		RollDaysBefore: 8,
		Location:       chicago,
		// 2024-03-07 03:00 UTC is still March 6th in Chicago.
		Now: func() time.Time { return time.Date(2024, time.March, 7, 3, 0, 0, 0, time.UTC) },
	}

	c := r.Front(" mes ")
	if c.Symbol != "MES" || c.Expiry != "202403" || c.Exchange != "CME" || c.Currency != "USD" {
		t.Fatalf("unexpected contract %+v", c)
	}
}
