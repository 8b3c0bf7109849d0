package eventqueue

import (
	"context"

	"github.com/anyproto/any-sync/app/logger"
	"github.com/cheggaaa/mb/v3"
	"go.uber.org/zap"

	"github.com/anyproto/any-stream/streamplan"
)

var log = logger.NewNamed("common.streamplan.eventqueue")

const defaultSize = 100

// Queue adapts an EventListener to asynchronous consumption: events are
// buffered so a slow consumer never stalls the plan's critical section.
// When the buffer is full the event is dropped with a warning rather than
// blocking the reporting session.
type Queue struct {
	batcher *mb.MB[streamplan.StreamEvent]
}

func New(size int) *Queue {
	if size <= 0 {
		size = defaultSize
	}
	return &Queue{
		batcher: mb.New[streamplan.StreamEvent](size),
	}
}

func (q *Queue) HandleStreamEvent(ev streamplan.StreamEvent) {
	if err := q.batcher.TryAdd(ev); err != nil {
		log.Warn("stream event dropped",
			zap.Error(err),
			zap.String("planId", ev.PlanId),
			zap.Stringer("kind", ev.Kind))
	}
}

// WaitOne blocks until the next event arrives or ctx is done.
func (q *Queue) WaitOne(ctx context.Context) (streamplan.StreamEvent, error) {
	return q.batcher.WaitOne(ctx)
}

// Wait returns all buffered events, blocking while the buffer is empty.
func (q *Queue) Wait(ctx context.Context) ([]streamplan.StreamEvent, error) {
	return q.batcher.Wait(ctx)
}

func (q *Queue) Len() int {
	return q.batcher.Len()
}

func (q *Queue) Close() error {
	return q.batcher.Close()
}
