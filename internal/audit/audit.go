package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"GoldPledge/internal/model"
)

// FindStale returns the rates last updated more than maxAge before now,
// oldest first.
func FindStale(rates []model.GoldRate, now time.Time, maxAge time.Duration) []model.GoldRate {
	cutoff := now.Add(-maxAge)
	var stale []model.GoldRate
	for _, gr := range rates {
		if gr.UpdatedAt.Before(cutoff) {
			stale = append(stale, gr)
		}
	}
	sort.SliceStable(stale, func(i, j int) bool { return stale[i].UpdatedAt.Before(stale[j].UpdatedAt) })
	return stale
}

type RateLister interface {
	ListGoldRates(ctx context.Context) ([]model.GoldRate, error)
}

type Sender interface {
	Send(to, subject, body string) error
}

// Job checks the rate table and mails To when anything is stale. Mail may be
// nil, in which case stale rates are only logged.
type Job struct {
	Rates  RateLister
	Mail   Sender
	To     string
	MaxAge time.Duration
	Log    *logrus.Logger
	Now    func() time.Time
}

func (j *Job) Run(ctx context.Context) ([]model.GoldRate, error) {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	rates, err := j.Rates.ListGoldRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list gold rates: %w", err)
	}
	stale := FindStale(rates, now(), j.MaxAge)
	if len(stale) == 0 {
		j.Log.WithField("rates", len(rates)).Info("gold rates are current")
		return nil, nil
	}

	j.Log.WithFields(logrus.Fields{"stale": len(stale), "max_age": j.MaxAge.String()}).Warn("stale gold rates")
	if j.Mail == nil || j.To == "" {
		return stale, nil
	}
	subject := fmt.Sprintf("%d gold rate(s) not updated in %s", len(stale), j.MaxAge)
	if err := j.Mail.Send(j.To, subject, Body(stale, now())); err != nil {
		return stale, err
	}
	return stale, nil
}

func Body(stale []model.GoldRate, now time.Time) string {
	var b strings.Builder
	b.WriteString("The following gold rates need updating:\n\n")
	for _, gr := range stale {
		fmt.Fprintf(&b, "- %s, scheme %d: %.2f per gram, last updated %s (%s ago)\n",
			gr.Purity.Label(), gr.InterestSchemeID, gr.RatePerGram,
			gr.UpdatedAt.Format("2006-01-02 15:04"), now.Sub(gr.UpdatedAt).Round(time.Hour))
	}
	return b.String()
}
