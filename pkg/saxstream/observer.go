package saxstream

import "time"

// Stats summarizes one parse session.
type Stats struct {
	// Chunks counts non-empty reads from the source.
	Chunks int
	// Bytes counts decoded bytes fed to the tokenizer.
	Bytes int64
	// Events counts produced events by kind, including End.
	Events   map[Kind]int
	Duration time.Duration
}

// TotalEvents sums Events across kinds.
func (s Stats) TotalEvents() int {
	total := 0
	for _, n := range s.Events {
		total += n
	}
	return total
}

// Observer receives session lifecycle callbacks on the parsing goroutine.
// Implementations must not block for long; they cannot alter the parse.
type Observer interface {
	SessionStarted(id string)
	ChunkProcessed(id string, bytes, events int)
	SessionFinished(id string, stats Stats, err error)
}

type nopObserver struct{}

func (nopObserver) SessionStarted(string)                {}
func (nopObserver) ChunkProcessed(string, int, int)      {}
func (nopObserver) SessionFinished(string, Stats, error) {}

// Observers fans callbacks out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	list := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) SessionStarted(id string) {
	for _, o := range m {
		o.SessionStarted(id)
	}
}

func (m multiObserver) ChunkProcessed(id string, bytes, events int) {
	for _, o := range m {
		o.ChunkProcessed(id, bytes, events)
	}
}

func (m multiObserver) SessionFinished(id string, stats Stats, err error) {
	for _, o := range m {
		o.SessionFinished(id, stats, err)
	}
}
