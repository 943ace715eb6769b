package server

import (
	"context"
	"time"

	"songrec/internal/logging"

	"github.com/thejerf/suture/v4"
)

// ServiceFunc adapts a blocking function to suture.Service.
type ServiceFunc struct {
	Name string
	Run  func(ctx context.Context) error
}

func (s ServiceFunc) Serve(ctx context.Context) error { return s.Run(ctx) }
func (s ServiceFunc) String() string                  { return s.Name }

// NewSupervisor returns the root supervisor with restart backoff and zerolog event logging.
func NewSupervisor(name string, shutdownTimeout time.Duration) *suture.Supervisor {
	return suture.New(name, suture.Spec{
		EventHook:        logEvent,
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          shutdownTimeout,
	})
}

func logEvent(e suture.Event) {
	ev := logging.Warn()
	if e.Type() == suture.EventTypeBackoff || e.Type() == suture.EventTypeResume {
		ev = logging.Info()
	}
	ev.Fields(e.Map()).Msg(e.String())
}
