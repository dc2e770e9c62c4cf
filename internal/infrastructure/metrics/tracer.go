package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SpanStatus is the completion status of a span.
type SpanStatus string

const (
	SpanStatusUnset SpanStatus = "unset"
	SpanStatusOK    SpanStatus = "ok"
	SpanStatusError SpanStatus = "error"
)

// Span is one timed unit of work inside an investigation trace. Phase
// and tool spans carry their subject as an attribute ("phase", "tool").
type Span struct {
	SpanID     string                 `json:"span_id"`
	TraceID    string                 `json:"trace_id"`
	ParentID   string                 `json:"parent_id,omitempty"`
	Name       string                 `json:"name"`
	StartTime  time.Time              `json:"start_time"`
	EndTime    time.Time              `json:"end_time,omitzero"`
	Duration   time.Duration          `json:"duration_ns"`
	Status     SpanStatus             `json:"status"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Trace is a finished trace snapshot: every span in start order plus
// the overall bounds.
type Trace struct {
	TraceID   string        `json:"trace_id"`
	QueryID   string        `json:"query_id,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time,omitzero"`
	Duration  time.Duration `json:"duration_ns"`
	RootSpan  *Span         `json:"root_span,omitempty"`
	Spans     []*Span       `json:"spans"`
	SpanCount int           `json:"span_count"`
}

// Tracer collects the spans of a single investigation in memory. Span
// IDs are "<trace>.<n>" with n assigned in start order, so the first
// span opened with no parent is the root. Safe for concurrent use.
type Tracer struct {
	mu      sync.RWMutex
	traceID string
	queryID string
	spans   []*Span
	byID    map[string]*Span
	nextID  int
}

// NewTracer creates a tracer for one investigation. An empty traceID
// gets a generated one.
func NewTracer(queryID, traceID string) *Tracer {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	return &Tracer{
		traceID: traceID,
		queryID: queryID,
		byID:    make(map[string]*Span),
	}
}

// StartSpan opens a span under the given parent; an empty parent and no
// prior parentless span makes it the root.
func (t *Tracer) StartSpan(name string, parentSpanID string) *Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	span := &Span{
		SpanID:    fmt.Sprintf("%s.%d", t.traceID, t.nextID),
		TraceID:   t.traceID,
		ParentID:  parentSpanID,
		Name:      name,
		StartTime: time.Now(),
		Status:    SpanStatusUnset,
	}
	t.spans = append(t.spans, span)
	t.byID[span.SpanID] = span
	return span
}

// StartPhaseSpan opens a "phase.<name>" span tagged with the phase.
func (t *Tracer) StartPhaseSpan(phase string, parentSpanID string) *Span {
	span := t.StartSpan("phase."+phase, parentSpanID)
	t.AddSpanAttribute(span.SpanID, "phase", phase)
	return span
}

// StartToolSpan opens a "tool.<name>" span tagged with the tool.
func (t *Tracer) StartToolSpan(tool string, parentSpanID string) *Span {
	span := t.StartSpan("tool."+tool, parentSpanID)
	t.AddSpanAttribute(span.SpanID, "tool", tool)
	return span
}

// EndSpan closes a span with the given status. Unknown IDs are ignored.
func (t *Tracer) EndSpan(spanID string, status SpanStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if span, ok := t.byID[spanID]; ok {
		span.EndTime = time.Now()
		span.Duration = span.EndTime.Sub(span.StartTime)
		span.Status = status
	}
}

// AddSpanAttribute attaches a key/value pair to an open span.
func (t *Tracer) AddSpanAttribute(spanID string, key string, value interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	span, ok := t.byID[spanID]
	if !ok {
		return
	}
	if span.Attributes == nil {
		span.Attributes = make(map[string]interface{})
	}
	span.Attributes[key] = value
}

// GetSpan returns a copy of the span, or nil for unknown IDs.
func (t *Tracer) GetSpan(spanID string) *Span {
	t.mu.RLock()
	defer t.mu.RUnlock()

	span, ok := t.byID[spanID]
	if !ok {
		return nil
	}
	return span.snapshot()
}

// GetAllSpans returns copies of every span in start order.
func (t *Tracer) GetAllSpans() []*Span {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotAll()
}

// GetTrace returns the full trace snapshot with its time bounds.
func (t *Tracer) GetTrace() *Trace {
	t.mu.RLock()
	defer t.mu.RUnlock()

	trace := &Trace{
		TraceID:   t.traceID,
		QueryID:   t.queryID,
		Spans:     t.snapshotAll(),
		SpanCount: len(t.spans),
	}

	for _, span := range trace.Spans {
		if trace.RootSpan == nil && span.ParentID == "" {
			trace.RootSpan = span
		}
		if trace.StartTime.IsZero() || span.StartTime.Before(trace.StartTime) {
			trace.StartTime = span.StartTime
		}
		if span.EndTime.After(trace.EndTime) {
			trace.EndTime = span.EndTime
		}
	}
	if !trace.EndTime.IsZero() {
		trace.Duration = trace.EndTime.Sub(trace.StartTime)
	}
	return trace
}

// Reset drops all recorded spans.
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.spans = nil
	t.byID = make(map[string]*Span)
	t.nextID = 0
}

func (t *Tracer) snapshotAll() []*Span {
	spans := make([]*Span, len(t.spans))
	for i, span := range t.spans {
		spans[i] = span.snapshot()
	}
	return spans
}

func (s *Span) snapshot() *Span {
	copied := *s
	if s.Attributes != nil {
		copied.Attributes = make(map[string]interface{}, len(s.Attributes))
		for k, v := range s.Attributes {
			copied.Attributes[k] = v
		}
	}
	return &copied
}

type contextKey string

const (
	traceIDContextKey contextKey = "trace_id"
	spanIDContextKey  contextKey = "span_id"
)

// ContextWithTrace stores trace and span IDs on the context.
func ContextWithTrace(ctx context.Context, traceID, spanID string) context.Context {
	ctx = context.WithValue(ctx, traceIDContextKey, traceID)
	return context.WithValue(ctx, spanIDContextKey, spanID)
}

// TraceIDFromContext reads the trace ID off the context, or "".
func TraceIDFromContext(ctx context.Context) string {
	traceID, _ := ctx.Value(traceIDContextKey).(string)
	return traceID
}

// SpanIDFromContext reads the span ID off the context, or "".
func SpanIDFromContext(ctx context.Context) string {
	spanID, _ := ctx.Value(spanIDContextKey).(string)
	return spanID
}
