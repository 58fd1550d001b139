package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// Alerter turns analysis output into alerts. Opportunities are announced at
// most once per opportunity key within the dedup TTL.
type Alerter struct {
	notifier  *Notifier
	dedup     *Dedup
	minProfit decimal.Decimal
}

// NewAlerter creates an Alerter. Opportunities with a net profit below
// minProfit are not announced.
func NewAlerter(n *Notifier, ttl time.Duration, minProfit decimal.Decimal) *Alerter {
	return &Alerter{notifier: n, dedup: NewDedup(ttl), minProfit: minProfit}
}

func (a *Alerter) active() bool { return a != nil && a.notifier.Enabled() }

// Opportunities announces every new qualifying opportunity and returns how
// many were sent. Delivery errors are joined; remaining alerts still go out.
func (a *Alerter) Opportunities(ctx context.Context, opps []domain.Opportunity) (int, error) {
	if !a.active() || !a.notifier.Allows(EventOpportunity) {
		return 0, nil
	}
	defer a.dedup.Cleanup()

	var (
		sent int
		errs []string
	)
	for _, o := range opps {
		if o.NetProfit.LessThan(a.minProfit) || a.dedup.IsDuplicate(o.Key) {
			continue
		}
		if err := a.notifier.Notify(ctx, OpportunityAlert(o)); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		sent++
	}
	if len(errs) > 0 {
		return sent, fmt.Errorf("notify: %d alert(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return sent, nil
}

// Summary sends a run summary.
func (a *Alerter) Summary(ctx context.Context, title string, fields ...Field) error {
	if !a.active() {
		return nil
	}
	return a.notifier.Notify(ctx, Alert{Event: EventSummary, Title: title, Fields: fields})
}

// Failure reports an operational error under EventError.
func (a *Alerter) Failure(ctx context.Context, what string, err error) error {
	if !a.active() || err == nil {
		return nil
	}
	return a.notifier.Notify(ctx, Alert{
		Event:  EventError,
		Title:  what + " failed",
		Fields: []Field{{Name: "Error", Value: err.Error()}},
		Footer: time.Now().UTC().Format(time.RFC3339),
	})
}

// OpportunityAlert renders o, e.g. title "UNI spread +3.00%" with one
// field per leg and the net result.
func OpportunityAlert(o domain.Opportunity) Alert {
	leg := func(l domain.Leg) string {
		return fmt.Sprintf("%s @ %s", l.Platform(), l.Price.String())
	}
	profit := "$" + o.NetProfit.StringFixed(2)
	if !o.ProfitPct.IsZero() {
		profit += " (" + o.ProfitPct.StringFixed(3) + "%)"
	}
	return Alert{
		Event: EventOpportunity,
		Title: fmt.Sprintf("%s %s +%s%%", o.Token, o.Strategy, o.SpreadPct.StringFixed(2)),
		Fields: []Field{
			{Name: "Buy", Value: leg(o.Buy)},
			{Name: "Sell", Value: leg(o.Sell)},
			{Name: "Net profit", Value: profit},
		},
		Footer: time.Unix(o.Buy.Timestamp, 0).UTC().Format(time.RFC3339),
	}
}
