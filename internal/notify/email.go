package notify

import (
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/config"
	"github.com/CMZCoder/CommerzioS-sub000/internal/worker"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// SMTPSender delivers emails through the configured SMTP relay, retrying
// transient failures with backoff.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
	retry  worker.RetryPolicy
	logger *zerolog.Logger
}

func NewSMTPSender(cfg config.SMTPConfig, logger *zerolog.Logger) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		retry: worker.RetryPolicy{
			MaxRetries:    3,
			InitialDelay:  2 * time.Second,
			MaxDelay:      30 * time.Second,
			BackoffFactor: 2,
		},
		logger: logger,
	}
}

func (s *SMTPSender) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	var err error
	for attempt := 1; attempt <= s.retry.MaxRetries+1; attempt++ {
		if err = s.dialer.DialAndSend(m); err == nil {
			return nil
		}
		if attempt > s.retry.MaxRetries {
			break
		}
		delay := s.retry.NextDelay(attempt)
		s.logger.Warn().Err(err).Str("to", to).Int("attempt", attempt).
			Dur("retry_in", delay).Msg("email send failed, retrying")
		time.Sleep(delay)
	}

	s.logger.Error().Err(err).Str("to", to).Msg("email send gave up")
	return err
}
