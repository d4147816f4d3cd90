// internal/core/services/clock.go
package services

import (
	"time"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/ports"
)

// SystemClock reads the wall clock
type SystemClock struct{}

var _ ports.Clock = SystemClock{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
