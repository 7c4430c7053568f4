package util

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewJobID returns a sortable outbox job id.
func NewJobID() string {
	return "job_" + ulid.MustNew(ulid.Timestamp(NowUTC()), rand.Reader).String()
}

// NewCorrelationID tags one webhook delivery across logs, ledger and outbox.
func NewCorrelationID() string {
	return "dsp_" + ulid.MustNew(ulid.Timestamp(NowUTC()), rand.Reader).String()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}
