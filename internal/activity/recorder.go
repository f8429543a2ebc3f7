package activity

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/khanhbq56/money-tracking/internal/apperr"
	"github.com/khanhbq56/money-tracking/internal/events"
	"github.com/khanhbq56/money-tracking/internal/logging"
)

// Recorder appends settled events to the activity log. Write failures are
// logged and never fail the operation that emitted the event.
type Recorder struct {
	dir string
	log logrus.FieldLogger
}

// NewRecorder creates a Recorder writing under dir.
func NewRecorder(dir string, log logrus.FieldLogger) *Recorder {
	return &Recorder{dir: dir, log: logging.OrDiscard(log)}
}

// Attach subscribes r to bus and returns the unsubscribe function.
func (r *Recorder) Attach(bus *events.Bus) func() {
	return bus.Subscribe(r.Handle)
}

// Handle records ev. In-flight toggle states are skipped.
func (r *Recorder) Handle(ev events.Event) {
	e, ok := EntryFor(ev)
	if !ok {
		return
	}
	if err := Append(r.dir, []Entry{e}); err != nil {
		r.log.WithError(err).WithField("event", ev.Type).Warn("writing activity log")
	}
}

// EntryFor converts an event to a log entry.
func EntryFor(ev events.Event) (Entry, bool) {
	e := Entry{
		Timestamp: ev.Timestamp,
		Event:     string(ev.Type),
		BankCode:  ev.BankCode,
		EventID:   ev.ID,
	}
	switch d := ev.Data.(type) {
	case events.BankStatus:
		if d.Pending {
			return Entry{}, false
		}
		state := "disabled"
		if d.Enabled {
			state = "enabled"
		}
		if d.RolledBack {
			state += " (rolled back)"
		}
		e.Details = state
	case events.SyncOutcome:
		parts := []string{d.Mode, string(d.Scope)}
		if d.Err != nil {
			parts = append(parts, string(apperr.KindOf(d.Err)), d.Err.Error())
		}
		e.Details = strings.Join(parts, " ")
		if d.Mode == "preview" {
			e.Count = d.Candidates
		} else {
			for _, s := range d.Summaries {
				e.Count += s.Created
			}
		}
	case events.ImportOutcome:
		e.Count = d.ImportedCount
		if d.Failed > 0 {
			e.Details = fmt.Sprintf("%d failed", d.Failed)
		}
	default:
		return Entry{}, false
	}
	return e, true
}
