package progress

import (
	"github.com/JakeFAU/xmlstream/internal/id/uuid"
	"github.com/JakeFAU/xmlstream/pkg/saxstream"
)

// Observer adapts saxstream session callbacks into progress Events.
type Observer struct {
	emitter Emitter
	clock   Clock
	source  string
}

var _ saxstream.Observer = (*Observer)(nil)

// NewObserver builds an Observer that emits to emitter, labeling events
// with source. A nil clock selects SystemClock.
func NewObserver(emitter Emitter, clock Clock, source string) *Observer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Observer{emitter: emitter, clock: clock, source: source}
}

// SessionStarted emits SESSION_START.
func (o *Observer) SessionStarted(id string) {
	o.emit(Event{SessionID: uuid.Bytes(id), Stage: StageSessionStart})
}

// ChunkProcessed emits CHUNK.
func (o *Observer) ChunkProcessed(id string, bytes, events int) {
	o.emit(Event{
		SessionID: uuid.Bytes(id),
		Stage:     StageChunk,
		Bytes:     int64(bytes),
		Events:    int64(events),
	})
}

// SessionFinished emits SESSION_DONE or SESSION_ERROR with session totals.
func (o *Observer) SessionFinished(id string, stats saxstream.Stats, err error) {
	evt := Event{
		SessionID: uuid.Bytes(id),
		Stage:     StageSessionDone,
		Bytes:     stats.Bytes,
		Events:    int64(stats.TotalEvents()),
		Dur:       stats.Duration,
	}
	if err != nil {
		evt.Stage = StageSessionError
		evt.ErrorClass = ClassifyError(err)
		evt.Note = err.Error()
	}
	o.emit(evt)
}

func (o *Observer) emit(evt Event) {
	if o == nil || o.emitter == nil {
		return
	}
	evt.TS = o.clock.Now()
	evt.Source = o.source
	o.emitter.Emit(evt)
}
