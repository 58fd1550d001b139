// Package obslog reads and writes the daily observation log: one CSV file
// per UTC day with a row per price observation.
package obslog

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// DefaultPrefix names files unified_prices_YYYYMMDD.csv.
const DefaultPrefix = "unified_prices"

// Column names, in file order.
const (
	colTimestamp = "timestamp"
	colDatetime  = "datetime"
	colSource    = "source"
	colChain     = "chain"
	colToken     = "token"
	colPrice     = "price_usd"
	colBid       = "bid_price"
	colAsk       = "ask_price"
	colSpread    = "spread_pct"
	colFee       = "fee_pct"
)

// Header is the column layout written by Writer.
var Header = []string{
	colTimestamp, colDatetime, colSource, colChain, colToken,
	colPrice, colBid, colAsk, colSpread, colFee,
}

const datetimeLayout = "2006-01-02 15:04:05"

// FileName returns the log file name for the UTC day containing day.
func FileName(prefix string, day time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s_%s.csv", prefix, day.UTC().Format("20060102"))
}

// Path joins dir and FileName.
func Path(dir, prefix string, day time.Time) string {
	return filepath.Join(dir, FileName(prefix, day))
}

// record encodes o as a CSV row. AMM rows carry bid, ask and the pool fee
// tier in percent under spread_pct; derivative rows carry fee_pct.
func record(o domain.Observation) []string {
	row := []string{
		strconv.FormatInt(o.Timestamp, 10),
		o.Time().Format(datetimeLayout),
		o.Venue,
		o.Segment,
		o.Token,
		o.Price.String(),
		"", "", "", "",
	}
	switch q := o.Detail.(type) {
	case domain.AMMQuote:
		row[6] = q.Bid.String()
		row[7] = q.Ask.String()
		row[8] = q.FeeRate.Mul(decimal.NewFromInt(100)).String()
	case domain.DerivativeQuote:
		row[9] = q.FeeRate.Mul(decimal.NewFromInt(100)).String()
	}
	return row
}
