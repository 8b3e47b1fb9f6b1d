package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/docket-api/internal/models"
	"github.com/noah-isme/docket-api/pkg/jobs"
	"github.com/noah-isme/docket-api/pkg/mailer"
)

type adminLister interface {
	ListActiveAdmins(ctx context.Context) ([]models.User, error)
}

type mailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type notificationRecorder interface {
	RecordNotification(outcome string)
}

// NotificationService delivers purge summaries to active admins. It is the
// handler behind the notification job queue.
type NotificationService struct {
	users   adminLister
	mail    mailSender
	metrics notificationRecorder
	logger  *zap.Logger
}

// NewNotificationService constructs the notifier.
func NewNotificationService(users adminLister, mail mailSender, metrics notificationRecorder, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{users: users, mail: mail, metrics: metrics, logger: logger}
}

// Handle processes a queued job. Returning an error lets the queue retry.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case JobTypePurgeSummary:
		run, ok := job.Payload.(models.PurgeRun)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
		}
		return s.sendPurgeSummary(ctx, run)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

// OnResult records the final outcome of a notification job.
func (s *NotificationService) OnResult(job jobs.Job, err error) {
	if err != nil {
		s.logger.Error("purge summary delivery failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		s.record("failed")
	}
}

func (s *NotificationService) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordNotification(outcome)
	}
}

func (s *NotificationService) sendPurgeSummary(ctx context.Context, run models.PurgeRun) error {
	admins, err := s.users.ListActiveAdmins(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}
	if len(admins) == 0 {
		s.logger.Warn("no active admins to notify about purge")
		return nil
	}
	subject, text, body := purgeSummaryContent(run)
	var failures []string
	for _, admin := range admins {
		err := s.mail.Send(ctx, mailer.Message{
			ToName:    admin.Name,
			ToAddress: admin.Email,
			Subject:   subject,
			PlainText: text,
			HTML:      body,
		})
		if errors.Is(err, mailer.ErrDisabled) {
			s.record("disabled")
			return nil
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", admin.Email, err))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("purge summary not delivered to %s", strings.Join(failures, ", "))
	}
	s.record("sent")
	return nil
}

func purgeSummaryContent(run models.PurgeRun) (subject, text, body string) {
	subject = fmt.Sprintf("Auto-purge removed %d terminated case(s)", run.Purged)

	var plain strings.Builder
	fmt.Fprintf(&plain, "The scheduled purge at %s permanently removed %d case(s) terminated before %s.\n\n",
		run.FiredAt.Format("2006-01-02 15:04 MST"), run.Purged, run.Cutoff.Format("2006-01-02 15:04 MST"))
	for _, docketNo := range run.DocketNos {
		fmt.Fprintf(&plain, "- %s\n", docketNo)
	}

	var rich strings.Builder
	fmt.Fprintf(&rich, "<p>The scheduled purge at <strong>%s</strong> permanently removed <strong>%d</strong> case(s) terminated before %s.</p><ul>",
		html.EscapeString(run.FiredAt.Format("2006-01-02 15:04 MST")), run.Purged, html.EscapeString(run.Cutoff.Format("2006-01-02 15:04 MST")))
	for _, docketNo := range run.DocketNos {
		fmt.Fprintf(&rich, "<li>%s</li>", html.EscapeString(docketNo))
	}
	rich.WriteString("</ul>")
	return subject, plain.String(), rich.String()
}
