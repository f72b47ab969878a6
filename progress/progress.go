// Package progress defines the lifecycle sink through which long-running
// operations report to the UI layer.
package progress

import (
	"math"
	"sync"
)

// Op names the operation an event belongs to.
type Op string

const (
	Upload   Op = "upload"
	Download Op = "download"
	Delete   Op = "delete"
	Move     Op = "move"
)

// Sink receives lifecycle events keyed by operation and handle. Methods may
// be called concurrently from transfer goroutines.
type Sink interface {
	OnInit(op Op, handle, name string)
	OnProgress(op Op, handle string, percent int)
	OnFinished(op Op, handle string)
	OnFailed(op Op, handle string, err error)
}

// Nop discards every event.
type Nop struct{}

func (Nop) OnInit(Op, string, string)  {}
func (Nop) OnProgress(Op, string, int) {}
func (Nop) OnFinished(Op, string)      {}
func (Nop) OnFailed(Op, string, error) {}

// OrNop returns s, or Nop when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}

// Percent returns round(index/total*100) capped at 99. 100 is reserved for
// the finished event.
func Percent(index, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(index) / float64(total) * 100))
	return min(max(p, 0), 99)
}

// Kind enumerates Event types recorded by Recorder.
type Kind string

const (
	KindInit     Kind = "init"
	KindProgress Kind = "progress"
	KindFinished Kind = "finished"
	KindFailed   Kind = "failed"
)

// Event is one recorded sink call.
type Event struct {
	Op      Op
	Kind    Kind
	Handle  string
	Name    string
	Percent int
	Err     error
}

// Recorder is a Sink that keeps every event in order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) OnInit(op Op, handle, name string) {
	r.add(Event{Op: op, Kind: KindInit, Handle: handle, Name: name})
}

func (r *Recorder) OnProgress(op Op, handle string, percent int) {
	r.add(Event{Op: op, Kind: KindProgress, Handle: handle, Percent: percent})
}

func (r *Recorder) OnFinished(op Op, handle string) {
	r.add(Event{Op: op, Kind: KindFinished, Handle: handle, Percent: 100})
}

func (r *Recorder) OnFailed(op Op, handle string, err error) {
	r.add(Event{Op: op, Kind: KindFailed, Handle: handle, Err: err})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Filter returns the recorded events of op and kind.
func (r *Recorder) Filter(op Op, kind Kind) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Op == op && e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
