// File: pool/bookkeeping.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Opt-in per-buffer lifecycle audit. Buffers are keyed by the address of their
// backing array, so two buffers with equal bytes are still different entries.
// Every record is dropped as soon as bookkeeping is switched off.

package pool

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-sfu/api"
)

type eventKind uint8

const (
	eventAllocated eventKind = iota
	eventReturned
)

func (k eventKind) String() string {
	if k == eventAllocated {
		return "allocation"
	}
	return "return"
}

type bufferState uint8

const (
	stateOutstanding bufferState = iota + 1
	stateReturned
)

// maxCallDepth bounds the captured call origin of one event.
const maxCallDepth = 16

type bufferEvent struct {
	kind eventKind
	at   time.Time
	pcs  []uintptr
}

type bufferRecord struct {
	id     uint64
	state  bufferState
	events *queue.Queue // of bufferEvent
}

type tracker struct {
	mu           sync.Mutex
	enabled      bool
	records      map[*byte]*bufferRecord
	nextID       uint64
	outstanding  int64
	anomalies    int64
	historyLimit int
	logger       *slog.Logger
	now          func() time.Time
}

func newTracker(logger *slog.Logger, historyLimit int) *tracker {
	return &tracker{
		records:      make(map[*byte]*bufferRecord),
		historyLimit: historyLimit,
		logger:       logger,
		now:          time.Now,
	}
}

func (t *tracker) setEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if !enabled {
		t.records = make(map[*byte]*bufferRecord)
		t.outstanding = 0
		t.anomalies = 0
	}
}

func (t *tracker) counts() (outstanding, anomalies int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outstanding, t.anomalies
}

// identity returns the key of buf, nil for zero-capacity slices which cannot be told apart.
func identity(buf []byte) *byte {
	if cap(buf) == 0 {
		return nil
	}
	return unsafe.SliceData(buf)
}

// capture records the caller of the pool method. skip counts frames above capture.
func capture(skip int) []uintptr {
	var pcs [maxCallDepth]uintptr
	n := runtime.Callers(skip+2, pcs[:])
	return append([]uintptr(nil), pcs[:n]...)
}

func (t *tracker) allocated(buf []byte) {
	key := identity(buf)
	if key == nil {
		return
	}
	ev := bufferEvent{kind: eventAllocated, at: t.now(), pcs: capture(2)}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	rec := t.recordFor(key)
	if rec.state != stateOutstanding {
		t.outstanding++
	}
	rec.state = stateOutstanding
	t.appendEvent(rec, ev)
}

// returned records a return and logs misuse. It reports ErrDoubleReturn or
// ErrUnknownReturn for the matching conditions; the caller only uses it to
// decide whether the buffer may be pooled.
func (t *tracker) returned(buf []byte, oversized bool) error {
	key := identity(buf)
	if key == nil {
		return nil
	}
	ev := bufferEvent{kind: eventReturned, at: t.now(), pcs: capture(2)}

	t.mu.Lock()
	if !t.enabled {
		t.mu.Unlock()
		return nil
	}
	rec, seen := t.records[key]
	if !seen {
		rec = t.recordFor(key)
	}
	prev := rec.state
	rec.state = stateReturned
	t.appendEvent(rec, ev)

	var anomaly error
	switch {
	case !seen:
		anomaly = api.ErrUnknownReturn
	case prev == stateReturned:
		anomaly = api.ErrDoubleReturn
	default:
		t.outstanding--
	}
	if anomaly != nil {
		t.anomalies++
	}
	if oversized {
		t.anomalies++
	}
	var timeline string
	if anomaly != nil || oversized {
		timeline = formatTimeline(rec)
	}
	id := rec.id
	t.mu.Unlock()

	switch anomaly {
	case api.ErrDoubleReturn:
		t.logger.Error("buffer returned twice without being re-acquired",
			slog.Uint64("buffer_id", id),
			slog.Int("buffer_len", len(buf)),
			slog.Any("error", anomaly),
			slog.String("timeline", timeline))
	case api.ErrUnknownReturn:
		t.logger.Error("returned a buffer the pool never handed out",
			slog.Uint64("buffer_id", id),
			slog.Int("buffer_len", len(buf)),
			slog.Any("error", anomaly),
			slog.String("timeline", timeline))
	}
	if oversized {
		t.logger.Warn("received a suspiciously large buffer",
			slog.Uint64("buffer_id", id),
			slog.Int("buffer_len", len(buf)),
			slog.Any("error", api.ErrOversizedReturn),
			slog.String("timeline", timeline))
	}
	return anomaly
}

// recordFor must be called with t.mu held.
func (t *tracker) recordFor(key *byte) *bufferRecord {
	rec, ok := t.records[key]
	if !ok {
		t.nextID++
		rec = &bufferRecord{id: t.nextID, events: queue.New()}
		t.records[key] = rec
	}
	return rec
}

// appendEvent must be called with t.mu held.
func (t *tracker) appendEvent(rec *bufferRecord, ev bufferEvent) {
	rec.events.Add(ev)
	if t.historyLimit > 0 && rec.events.Length() > t.historyLimit {
		rec.events.Remove()
	}
}

func formatTimeline(rec *bufferRecord) string {
	var sb strings.Builder
	for i := 0; i < rec.events.Length(); i++ {
		ev := rec.events.Get(i).(bufferEvent)
		fmt.Fprintf(&sb, "%s BufferEvent: timestamp=%s\n", ev.kind, ev.at.Format(time.RFC3339Nano))
		frames := runtime.CallersFrames(ev.pcs)
		for {
			fr, more := frames.Next()
			if fr.Function != "" {
				fmt.Fprintf(&sb, "\t%s\n\t\t%s:%d\n", fr.Function, fr.File, fr.Line)
			}
			if !more {
				break
			}
		}
	}
	return sb.String()
}
