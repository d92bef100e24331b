// Package notify tells procurement officers about tenders that were not
// known before a scheduled pass.
package notify

import (
	"context"
	"eprocure-backend/internal/components/assert"
	"eprocure-backend/internal/components/chrono"
	"eprocure-backend/internal/components/telemetry"
	"eprocure-backend/internal/tender"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("eprocure-backend.internal.notify")

const (
	report_notifier_channel = "notifier.channel"
	report_notifier_sent    = "notifier.sent"
)

// ErrNoAddress is returned by a channel when the officer cannot be reached
// through it, it is not a failure.
var ErrNoAddress = errors.New("officer has no address on this channel")

type Officer struct {
	Name        string `json:"name"`
	Designation string `json:"designation"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

// Alert is a tender that appeared during the last pass.
type Alert struct {
	Tender   tender.Tender
	Keywords []string
}

// Channel delivers one alert to one officer.
type Channel interface {
	Name() string
	Notify(ctx context.Context, officer Officer, alert Alert) error
}

type Options struct {
	OfficerDelay time.Duration
	AlertDelay   time.Duration
}

func DefaultOptions() Options {
	return Options{
		OfficerDelay: 500 * time.Millisecond,
		AlertDelay:   time.Second,
	}
}

type Notifier struct {
	channels []Channel
	officers []Officer
	sleep    chrono.SleepAPI
	opts     Options
	tel      telemetry.API
}

func NewNotifier(officers []Officer, channels []Channel, sleep chrono.SleepAPI, opts Options, tel telemetry.API) Notifier {
	assert.NotNil(sleep)
	assert.NotNil(tel)
	return Notifier{
		channels: channels,
		officers: officers,
		sleep:    sleep,
		opts:     opts,
		tel:      telemetry.NewScopedAPI("notify", tel),
	}
}

// NotifyNewTenders sends every alert to every officer over every channel.
// Delivery failures are reported and skipped, only a cancelled context
// stops it early. It returns the number of messages delivered.
func (n Notifier) NotifyNewTenders(ctx context.Context, alerts []Alert) (int, error) {
	ctx, span := tracer.Start(ctx, "NotifyNewTenders")
	defer span.End()

	if len(alerts) == 0 {
		return 0, nil
	}
	if len(n.officers) == 0 {
		n.tel.ReportWarning("notifier.officers", "no officers configured, nothing sent", len(alerts))
		return 0, nil
	}

	sent := 0
	for _, alert := range alerts {
		for _, officer := range n.officers {
			for _, channel := range n.channels {
				err := channel.Notify(ctx, officer, alert)
				if errors.Is(err, ErrNoAddress) {
					n.tel.ReportDebug("skipping officer", channel.Name(), officer.Name)
					continue
				}
				if err != nil {
					if ctx.Err() != nil {
						return sent, ctx.Err()
					}
					span.RecordError(err)
					n.tel.ReportWarning(report_notifier_channel, channel.Name(), officer.Name, err)
					continue
				}
				sent++
			}

			err := n.sleep.Sleep(ctx, n.opts.OfficerDelay)
			if err != nil {
				span.SetStatus(codes.Error, "cancelled")
				return sent, err
			}
		}

		err := n.sleep.Sleep(ctx, n.opts.AlertDelay)
		if err != nil {
			span.SetStatus(codes.Error, "cancelled")
			return sent, err
		}
	}

	n.tel.ReportCount(report_notifier_sent, int64(sent))
	return sent, nil
}

// Subject is the headline of an alert message.
func Subject(alert Alert) string {
	return "New Tender Alert: " + headline(alert.Tender, "Tender")
}

func headline(t tender.Tender, fallback string) string {
	if t.Title != "" {
		return t.Title
	}
	if t.Reference != "" {
		return t.Reference
	}
	return fallback
}

// Details renders the human readable lines describing an alert.
func Details(alert Alert) string {
	t := alert.Tender
	lines := []string{}
	if t.Organisation != "" {
		lines = append(lines, "Company: "+t.Organisation)
	}
	if len(alert.Keywords) > 0 {
		lines = append(lines, "Tags: "+strings.Join(alert.Keywords, ", "))
	} else if t.Keyword != "" {
		lines = append(lines, "Tag: "+t.Keyword)
	}
	if t.Title != "" {
		lines = append(lines, "Title: "+t.Title)
	}
	if t.ClosingDate != "" {
		lines = append(lines, "Closing Date: "+t.ClosingDate)
	}
	if t.Reference != "" {
		lines = append(lines, "Reference: "+t.Reference)
	}
	if t.DetailUrl != "" {
		lines = append(lines, "URL: "+t.DetailUrl)
	}
	return strings.Join(lines, "\n")
}
