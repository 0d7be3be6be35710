package goLearn

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goLearn/apitest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestEventsDisabledNoSinkCalls(t *testing.T) {
	srv := newTestServer(t)
	sink := &countingSink{}
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Events.Enabled = false

	c, err := New().WithConfig(cfg).WithHTTPClient(srv.Client()).WithEventSink(sink).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_, _ = c.Login(context.Background(), apitest.LearnerEmail, "wrong-password")
	_ = c.Close()

	if sink.Count() != 0 {
		t.Fatalf("expected no sink calls when disabled, got %d", sink.Count())
	}
}

func TestEventsSinkReceivesSessionEvents(t *testing.T) {
	srv := newTestServer(t)
	sink := NewChannelSink(16)
	c := newTestClient(t, srv, func(b *Builder) { b.WithEventSink(sink) })

	ctx := WithRequestID(context.Background(), "req-42")
	user, err := c.Login(ctx, apitest.LearnerEmail, apitest.Password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	srv.ExpireAll()
	if _, err := c.CurrentUser(context.Background()); err != nil {
		t.Fatalf("current user: %v", err)
	}
	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}

	var got []Event
	timeout := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case ev := <-sink.Events():
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("expected three events, got %+v", got)
		}
	}

	login := got[0]
	if login.Type != EventLogin || !login.Success || login.UserID != user.ID {
		t.Fatalf("unexpected login event %+v", login)
	}
	if login.RequestID != "req-42" || login.Timestamp.IsZero() {
		t.Fatalf("expected request id and timestamp, got %+v", login)
	}
	if got[1].Type != EventRefresh || !got[1].Success {
		t.Fatalf("unexpected refresh event %+v", got[1])
	}
	if got[2].Type != EventLogout {
		t.Fatalf("unexpected logout event %+v", got[2])
	}
}

func TestEventsNoSecrets(t *testing.T) {
	srv := newTestServer(t)
	var buf syncBuffer
	c := newTestClient(t, srv, func(b *Builder) { b.WithEventSink(NewJSONWriterSink(&buf)) })

	_, _ = c.Login(context.Background(), apitest.LearnerEmail, "super-secret-password")
	loginAs(t, c, apitest.LearnerEmail)
	tok, err := c.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	srv.ExpireAll()
	if _, err := c.CurrentUser(context.Background()); err != nil {
		t.Fatalf("current user: %v", err)
	}
	_ = c.Close()

	if !buf.Contains(`"type":"login"`) {
		t.Fatal("expected login events to be written")
	}
	for _, needle := range []string{"super-secret-password", apitest.Password, tok.AccessToken, tok.RefreshToken} {
		if buf.Contains(needle) {
			t.Fatalf("sensitive value leaked in events: %q", needle)
		}
	}
}

func TestEventsBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := newEventQueue(EventsConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), Event{Type: "e1"})
	dispatcher.Emit(context.Background(), Event{Type: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), Event{Type: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestEventsBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := newEventQueue(EventsConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), Event{Type: "e1"})
	dispatcher.Emit(context.Background(), Event{Type: "e2"})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), Event{Type: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestEventsBlockingEmitHonoursContext(t *testing.T) {
	sink := newGateSink()
	dispatcher := newEventQueue(EventsConfig{Enabled: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), Event{Type: "e1"})
	dispatcher.Emit(context.Background(), Event{Type: "e2"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	dispatcher.Emit(ctx, Event{Type: "e3"})
	if dispatcher.Dropped() != 1 {
		t.Fatalf("expected one dropped event, got %d", dispatcher.Dropped())
	}
}

func TestEventQueueCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	dispatcher := newEventQueue(EventsConfig{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, &countingSink{})

	dispatcher.Emit(context.Background(), Event{Type: "e1"})
	dispatcher.Close()
	dispatcher.Close()
	dispatcher.Emit(context.Background(), Event{Type: "e2"})

	var nilQueue *eventQueue
	nilQueue.Emit(context.Background(), Event{Type: "e3"})
	nilQueue.Close()
	if !nilQueue.Flush(context.Background()) {
		t.Fatal("flushing a nil queue should succeed")
	}
	if got := nilQueue.DroppedByType()[EventSignOut]; got != 0 {
		t.Fatalf("expected zero drops on a nil queue, got %d", got)
	}
}

func TestEventQueueCountsDropsByType(t *testing.T) {
	sink := newGateSink()
	q := newEventQueue(EventsConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() {
		close(sink.gate)
		q.Close()
	}()

	q.Emit(context.Background(), Event{Type: EventRefresh})
	waitForCondition(t, func() bool { return len(q.items) == 0 })
	q.Emit(context.Background(), Event{Type: EventRefresh})

	q.Emit(context.Background(), Event{Type: EventSignOut})
	q.Emit(context.Background(), Event{Type: EventSignOut})
	q.Emit(context.Background(), Event{Type: "custom"})

	byType := q.DroppedByType()
	if byType[EventSignOut] != 2 {
		t.Fatalf("expected 2 sign_out drops, got %v", byType)
	}
	if byType[EventTypeOther] != 1 {
		t.Fatalf("expected 1 other drop, got %v", byType)
	}
	if byType[EventLogin] != 0 || byType[EventRefresh] != 0 {
		t.Fatalf("unexpected drops %v", byType)
	}
	if _, ok := byType[EventUploadComplete]; !ok {
		t.Fatal("expected every event type to be reported")
	}
	if q.Dropped() != 3 {
		t.Fatalf("expected 3 drops in total, got %d", q.Dropped())
	}
}

func TestEventQueueFlushWaitsForEarlierEvents(t *testing.T) {
	sink := NewChannelSink(8)
	q := newEventQueue(EventsConfig{Enabled: true, BufferSize: 8}, sink)
	defer q.Close()

	q.Emit(context.Background(), Event{Type: EventRefresh})
	q.Emit(context.Background(), Event{Type: EventSignOut})
	if !q.Flush(context.Background()) {
		t.Fatal("expected flush to complete")
	}
	if got := len(sink.Events()); got != 2 {
		t.Fatalf("expected both events delivered before flush returned, got %d", got)
	}
	if ev := <-sink.Events(); ev.Type != EventRefresh {
		t.Fatalf("expected emission order, got %q first", ev.Type)
	}
}

func TestEventQueueFlushHonoursContext(t *testing.T) {
	sink := newGateSink()
	q := newEventQueue(EventsConfig{Enabled: true, BufferSize: 4}, sink)
	defer func() {
		close(sink.gate)
		q.Close()
	}()

	q.Emit(context.Background(), Event{Type: EventSignOut})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if q.Flush(ctx) {
		t.Fatal("expected flush to give up while the sink is blocked")
	}
}

func TestJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{
		Timestamp: time.Now().UTC(),
		Type:      EventSignOut,
		UserID:    "u1",
		Error:     "refresh rejected",
	})

	if !buf.Contains(`"type":"sign_out"`) {
		t.Fatal("expected JSON line to contain event type")
	}
	if !buf.Contains(`"user_id":"u1"`) {
		t.Fatal("expected JSON line to contain user id")
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Fatal("expected newline-terminated output")
	}
}

func TestZapSinkLevels(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewZapSink(zap.New(core))

	sink.Emit(context.Background(), Event{Type: EventLogin, Success: true})
	sink.Emit(context.Background(), Event{Type: EventRefresh, Error: "boom"})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected two log entries, got %d", len(entries))
	}
	if entries[0].Level != zap.InfoLevel || entries[1].Level != zap.WarnLevel {
		t.Fatalf("unexpected levels %v, %v", entries[0].Level, entries[1].Level)
	}
	if entries[1].ContextMap()["type"] != EventRefresh {
		t.Fatalf("expected type field, got %v", entries[1].ContextMap())
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func (b *syncBuffer) Contains(v string) bool {
	return strings.Contains(b.String(), v)
}
