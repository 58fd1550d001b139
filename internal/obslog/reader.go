package obslog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// ReadStats counts what a read kept and dropped.
type ReadStats struct {
	Rows    int `json:"rows"`
	Skipped int `json:"skipped"`
}

func (s *ReadStats) add(o ReadStats) {
	s.Rows += o.Rows
	s.Skipped += o.Skipped
}

var requiredColumns = []string{colTimestamp, colSource, colChain, colToken, colPrice}

// DefaultChains are the networks accepted as on-chain segments when a
// Reader is built without a chain list.
var DefaultChains = []string{"ethereum", "arbitrum", "base", "optimism"}

// segmentAliases maps the tags older logs used for the off-chain families.
var segmentAliases = map[string]string{
	"reference": domain.SegmentCentralized,
	"cex":       domain.SegmentCentralized,
	"perpetual": domain.SegmentDerivative,
	"perp":      domain.SegmentDerivative,
}

// Reader parses observation logs. A row is on-chain only when its chain
// column names a known network; unknown segments are skipped.
type Reader struct {
	chains map[string]bool
}

// NewReader creates a Reader accepting chains as on-chain segments, or
// DefaultChains when none are given.
func NewReader(chains ...string) *Reader {
	if len(chains) == 0 {
		chains = DefaultChains
	}
	set := make(map[string]bool, len(chains))
	for _, c := range chains {
		set[strings.ToLower(strings.TrimSpace(c))] = true
	}
	return &Reader{chains: set}
}

// segment returns the canonical segment tag and family for a chain column
// value.
func (r *Reader) segment(raw string) (string, domain.VenueFamily, bool) {
	seg := strings.ToLower(raw)
	if alias, ok := segmentAliases[seg]; ok {
		seg = alias
	}
	switch {
	case seg == domain.SegmentCentralized:
		return seg, domain.FamilyCentralized, true
	case seg == domain.SegmentDerivative:
		return seg, domain.FamilyDerivative, true
	case r.chains[seg]:
		return seg, domain.FamilyAMM, true
	default:
		return "", 0, false
	}
}

// ReadFile reads one log file with the default chain set.
func ReadFile(path string) ([]domain.Observation, ReadStats, error) {
	return NewReader().ReadFile(path)
}

// Read parses a log from r with the default chain set.
func Read(r io.Reader) ([]domain.Observation, ReadStats, error) {
	return NewReader().Read(r)
}

// ReadRange reads a day range with the default chain set.
func ReadRange(dir, prefix string, from, to time.Time) ([]domain.Observation, ReadStats, error) {
	return NewReader().ReadRange(dir, prefix, from, to)
}

// ReadFile reads one log file.
func (r *Reader) ReadFile(path string) ([]domain.Observation, ReadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ReadStats{}, fmt.Errorf("obslog: open %s: %w", path, err)
	}
	defer f.Close()
	obs, stats, err := r.Read(f)
	if err != nil {
		return nil, stats, fmt.Errorf("obslog: read %s: %w", path, err)
	}
	return obs, stats, nil
}

// Read parses a log from in. Columns are located by header name; the
// optional bid, ask, spread and fee columns may be absent. Malformed rows,
// rows with out-of-range prices and rows from unknown segments are skipped
// and counted.
func (r *Reader) Read(in io.Reader) ([]domain.Observation, ReadStats, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ReadStats{}, nil
		}
		return nil, ReadStats{}, fmt.Errorf("header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			return nil, ReadStats{}, fmt.Errorf("missing column %q", c)
		}
	}

	var (
		out   []domain.Observation
		stats ReadStats
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Skipped++
				continue
			}
			return out, stats, err
		}
		o, ok := r.parseRow(rec, idx)
		if !ok {
			stats.Skipped++
			continue
		}
		out = append(out, o)
		stats.Rows++
	}
	return out, stats, nil
}

// ReadRange reads every daily file overlapping [from, to] and keeps the
// observations inside it. Days without a file are skipped.
func (r *Reader) ReadRange(dir, prefix string, from, to time.Time) ([]domain.Observation, ReadStats, error) {
	var (
		out   []domain.Observation
		stats ReadStats
	)
	start := from.UTC().Truncate(24 * time.Hour)
	for day := start; !day.After(to.UTC()); day = day.Add(24 * time.Hour) {
		obs, s, err := r.ReadFile(Path(dir, prefix, day))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return out, stats, err
		}
		stats.add(s)
		for _, o := range obs {
			if o.Timestamp >= from.Unix() && o.Timestamp <= to.Unix() {
				out = append(out, o)
			}
		}
	}
	return out, stats, nil
}

func (r *Reader) parseRow(rec []string, idx map[string]int) (domain.Observation, bool) {
	field := func(name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	optional := func(name string) (decimal.Decimal, bool) {
		v := field(name)
		if v == "" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(v)
		return d, err == nil
	}

	ts, err := strconv.ParseInt(field(colTimestamp), 10, 64)
	if err != nil {
		// older logs wrote fractional seconds
		f, ferr := strconv.ParseFloat(field(colTimestamp), 64)
		if ferr != nil {
			return domain.Observation{}, false
		}
		ts = int64(f)
	}
	price, err := decimal.NewFromString(field(colPrice))
	if err != nil || !domain.PriceInBounds(price) {
		return domain.Observation{}, false
	}
	o := domain.Observation{
		Venue:     field(colSource),
		Segment:   field(colChain),
		Token:     field(colToken),
		Price:     price,
		Timestamp: ts,
	}
	if o.Venue == "" || o.Segment == "" || o.Token == "" {
		return domain.Observation{}, false
	}
	seg, family, ok := r.segment(o.Segment)
	if !ok {
		return domain.Observation{}, false
	}
	o.Segment = seg

	hundred := decimal.NewFromInt(100)
	switch family {
	case domain.FamilyCentralized:
		o.Detail = domain.CentralizedQuote{}
	case domain.FamilyDerivative:
		fee, _ := optional(colFee)
		o.Detail = domain.DerivativeQuote{FeeRate: fee.Div(hundred)}
	default:
		q := domain.AMMQuote{Bid: price, Ask: price}
		if bid, ok := optional(colBid); ok && bid.IsPositive() {
			q.Bid = bid
		}
		if ask, ok := optional(colAsk); ok && ask.IsPositive() {
			q.Ask = ask
		}
		if fee, ok := optional(colSpread); ok {
			q.FeeRate = fee.Div(hundred)
		}
		o.Detail = q
	}
	return o, true
}
