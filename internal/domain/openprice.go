package domain

import "time"

// OpenPrice is the daily reference price as a tagged variant. The analytical
// column is non-nullable numeric, so storage encodes "unset" as the pair
// (open_price=0, update_price_date=null). Domain code never inspects that
// pair directly — it works with this type and projects to the storage shape
// only at the store boundary (ToRow/OpenPriceFromRow below).
type OpenPrice struct {
	set   bool
	value float64
	asOf  time.Time
}

// UnsetOpenPrice is the zero-value, not-yet-anchored reference price.
var UnsetOpenPrice = OpenPrice{}

// SetOpenPrice constructs an anchored reference price for the given day.
func SetOpenPrice(value float64, asOf time.Time) OpenPrice {
	return OpenPrice{set: true, value: value, asOf: asOf}
}

func (p OpenPrice) IsSet() bool        { return p.set && p.value > 0 }
func (p OpenPrice) Value() float64     { return p.value }
func (p OpenPrice) AsOf() time.Time    { return p.asOf }

// OpenPriceRow is the (value, date) pair persisted to the non-nullable
// analytical column set. Date is nil when unset.
type OpenPriceRow struct {
	Value float64
	Date  *time.Time
}

func (p OpenPrice) ToRow() OpenPriceRow {
	if !p.set {
		return OpenPriceRow{Value: 0, Date: nil}
	}
	// A zero value keeps its date: "set to zero today" must survive the
	// round trip, or the refresh worker would re-queue the symbol all day.
	d := p.asOf
	return OpenPriceRow{Value: p.value, Date: &d}
}

// OpenPriceFromRow reconstructs the tagged variant from the stored pair.
// Both fields together encode "unset": a zero value with a non-nil date was
// deliberately set to zero today and must not be refetched, while a zero
// value with a nil date has never been anchored.
func OpenPriceFromRow(value float64, date *time.Time) OpenPrice {
	if date == nil {
		return UnsetOpenPrice
	}
	return OpenPrice{set: true, value: value, asOf: *date}
}

// StaleOn reports whether this reference price needs refreshing as of the
// given trading day: never anchored, or anchored before today.
func (p OpenPrice) StaleOn(today time.Time) bool {
	if !p.set {
		return true
	}
	return p.asOf.Before(truncateToDay(today))
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
