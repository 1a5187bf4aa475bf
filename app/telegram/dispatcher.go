package telegram

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/lysyi3m/rss-relay/app/cfg"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed" // API answered with an error
	StatusError   Status = "error"  // request never completed
)

type Report struct {
	Index      int    `json:"index"`
	Status     Status `json:"status"`
	MessageID  int    `json:"message_id,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Plain      bool   `json:"plain,omitempty"`

	rejectedMarkup bool
}

// Sender is satisfied by *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

var _ Sender = (*tgbotapi.BotAPI)(nil)

type SleepFunc func(ctx context.Context, d time.Duration) error

type Dispatcher struct {
	sender Sender
	limits *cfg.Limits
	sleep  SleepFunc
}

func NewDispatcher(sender Sender, limits *cfg.Limits) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		limits: limits,
		sleep:  sleepContext,
	}
}

// Deliver sends chunks to recipient in order, one report per chunk. When the
// API rejects the markup, the failed chunk and everything after it are resent
// as plain text. That downgrade happens at most once per call.
func (d *Dispatcher) Deliver(ctx context.Context, chunks []string, recipient string) []Report {
	reports := make([]Report, len(chunks))
	delay := d.limits.InterMessageDelay()

	plain := false
	sent := 0

	for i := 0; i < len(chunks); i++ {
		if sent > 0 {
			if err := d.sleep(ctx, delay); err != nil {
				cancelRemaining(reports, i, err)
				return reports
			}
		}

		text := chunks[i]
		if plain {
			text = StripMarkup(text)
		}

		report := d.send(ctx, i, text, recipient, plain)
		reports[i] = report
		sent++

		if report.rejectedMarkup && !plain {
			slog.Warn("Markup rejected, resending remaining chunks as plain text",
				"index", i,
				"remaining", len(chunks)-i,
				"error", report.Error)
			plain = true
			i--
		}
	}

	return reports
}

func (d *Dispatcher) send(ctx context.Context, index int, text, recipient string, plain bool) Report {
	start := time.Now()
	report := Report{Index: index, Plain: plain}

	for attempt := 0; ; attempt++ {
		msg, err := d.sender.Send(d.message(recipient, text, plain))
		if err == nil {
			report.Status = StatusSuccess
			report.MessageID = msg.MessageID
			report.Error = ""
			break
		}

		report.Error = err.Error()

		var apiErr *tgbotapi.Error
		if !errors.As(err, &apiErr) {
			report.Status = StatusError
			slog.Error("Failed to send message", "index", index, "error", err)
			break
		}

		report.Status = StatusFailed

		if apiErr.Code == http.StatusTooManyRequests && attempt < d.limits.RateLimitRetries {
			wait := d.limits.DefaultRetryAfter
			if apiErr.RetryAfter > 0 {
				wait = time.Duration(apiErr.RetryAfter) * time.Second
			}

			slog.Warn("Rate limited by messaging API", "index", index, "retry_after", wait, "attempt", attempt+1)

			if err := d.sleep(ctx, wait); err != nil {
				report.Status = StatusError
				report.Error = err.Error()
				break
			}
			continue
		}

		report.rejectedMarkup = isMarkupRejection(apiErr)
		slog.Error("Messaging API rejected message", "index", index, "code", apiErr.Code, "error", apiErr.Message)
		break
	}

	report.DurationMs = time.Since(start).Milliseconds()
	return report
}

func (d *Dispatcher) message(recipient, text string, plain bool) tgbotapi.MessageConfig {
	var msg tgbotapi.MessageConfig
	if chatID, err := strconv.ParseInt(recipient, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(chatID, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(recipient, text)
	}

	if !plain {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	msg.DisableWebPagePreview = d.limits.DisablePreview

	return msg
}

// Bot API descriptions for HTML the parser refused.
var markupRejections = []string{
	"can't parse entities",
	"unsupported start tag",
	"can't find end tag",
}

func isMarkupRejection(apiErr *tgbotapi.Error) bool {
	if apiErr.Code != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	for _, marker := range markupRejections {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func cancelRemaining(reports []Report, from int, err error) {
	for i := from; i < len(reports); i++ {
		reports[i] = Report{Index: i, Status: StatusError, Error: err.Error()}
	}
}

// Succeeded reports whether every chunk was delivered.
func Succeeded(reports []Report) bool {
	if len(reports) == 0 {
		return false
	}
	for _, r := range reports {
		if r.Status != StatusSuccess {
			return false
		}
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
