package core

import (
	"context"

	"github.com/bluesky-social/jetstream/pkg/models"
	"github.com/zhulik/pips"
)

type BlueskyEvent = models.Event

// FirehoseSource streams live jetstream events.
type FirehoseSource interface {
	C() <-chan pips.D[*BlueskyEvent]
}

// CandidateProcessor runs one candidate through the engagement pipeline:
// dedup, quality filter, classification, rate limiting, approval,
// execution, record.
type CandidateProcessor interface {
	Process(ctx context.Context, post CandidatePost) error
}
