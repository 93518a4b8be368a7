// Package sender defines Maestro's outbound notification boundary. Only the
// interface ships here: spec §1 lists the SMS/WhatsApp/etc. driver as an
// external collaborator Maestro talks to, not a component it owns.
package sender

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Sender delivers a message body to a recipient outside the process --
// typically the urgent-heartbeat path forwarding Maestro's reply to the
// superintendent's phone.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// LoggingSender logs instead of delivering, for the chat CLI and for tests
// that need a Sender without a live provider, grounded on the teacher's
// logger.go logrus usage.
type LoggingSender struct {
	Log *logrus.Entry
}

// Send logs the message at info level and never fails.
func (s LoggingSender) Send(ctx context.Context, to, body string) error {
	if s.Log != nil {
		s.Log.WithField("to", to).Info(body)
	}
	return nil
}
