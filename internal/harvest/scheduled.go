package harvest

import (
	"context"
	"eprocure-backend/internal/components/assert"
	"eprocure-backend/internal/components/telemetry"
	"eprocure-backend/internal/notify"
	"eprocure-backend/internal/store"
	"fmt"
)

// TenderIndex is the read side of the tender store.
type TenderIndex interface {
	Keys(ctx context.Context) (map[string]struct{}, error)
	List(ctx context.Context, limit int) ([]store.Row, error)
}

type AlertSender interface {
	NotifyNewTenders(ctx context.Context, alerts []notify.Alert) (int, error)
}

type PassReport struct {
	Summary Summary
	New     []store.Row
	// Notified counts delivered messages, not tenders.
	Notified int
}

// ScheduledPass is one cron tick: a full orchestrator run followed by
// alerts for every stored tender whose key did not exist before the run.
type ScheduledPass struct {
	orchestrator Orchestrator
	index        TenderIndex
	sender       AlertSender
	tel          telemetry.API
}

func NewScheduledPass(orchestrator Orchestrator, index TenderIndex, sender AlertSender, tel telemetry.API) ScheduledPass {
	assert.NotNil(index)
	assert.NotNil(sender)
	assert.NotNil(tel)
	return ScheduledPass{
		orchestrator: orchestrator,
		index:        index,
		sender:       sender,
		tel:          telemetry.NewScopedAPI("scheduled_pass", tel),
	}
}

func (p ScheduledPass) Run(ctx context.Context, keywords []string) (PassReport, error) {
	before, err := p.index.Keys(ctx)
	if err != nil {
		return PassReport{}, fmt.Errorf("read existing keys: %w", err)
	}
	p.tel.ReportDebug("existing tenders", len(before))

	summary, err := p.orchestrator.Run(ctx, keywords)
	report := PassReport{Summary: summary}
	if err != nil {
		return report, err
	}

	rows, err := p.index.List(ctx, 0)
	if err != nil {
		return report, fmt.Errorf("list tenders: %w", err)
	}
	alerts := []notify.Alert{}
	for _, row := range rows {
		if _, known := before[row.Key]; known {
			continue
		}
		report.New = append(report.New, row)
		alerts = append(alerts, notify.Alert{Tender: row.Tender, Keywords: row.Keywords})
	}
	p.tel.ReportCount("scheduled_pass.new", int64(len(alerts)))
	if len(alerts) == 0 {
		return report, nil
	}

	report.Notified, err = p.sender.NotifyNewTenders(ctx, alerts)
	return report, err
}
