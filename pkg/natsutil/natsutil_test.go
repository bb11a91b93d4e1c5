package natsutil

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type payload struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

type recorder struct {
	msgs []*nats.Msg
	err  error
}

func (r *recorder) PublishMsg(m *nats.Msg) error {
	r.msgs = append(r.msgs, m)
	return r.err
}

func tracedContext() context.Context {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestPublishInjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	rec := &recorder{}
	if err := Publish(tracedContext(), rec, "menu.test", payload{Name: "tea", Value: 1}); err != nil {
		t.Fatal(err)
	}
	if len(rec.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(rec.msgs))
	}
	msg := rec.msgs[0]
	if msg.Subject != "menu.test" || msg.Header.Get("traceparent") == "" {
		t.Fatalf("missing subject or traceparent: %+v", msg)
	}

	ctx, got, err := Decode[payload](msg)
	if err != nil {
		t.Fatal(err)
	}
	if got != (payload{Name: "tea", Value: 1}) {
		t.Fatalf("unexpected payload %+v", got)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.TraceID() != trace.SpanContextFromContext(tracedContext()).TraceID() {
		t.Fatalf("trace id not propagated: %v", sc.TraceID())
	}
}

func TestPublishWrapsConnError(t *testing.T) {
	boom := errors.New("boom")
	err := Publish(context.Background(), &recorder{err: boom}, "s", payload{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestPublishEncodeError(t *testing.T) {
	err := Publish(context.Background(), &recorder{}, "s", make(chan int))
	if err == nil {
		t.Fatal("expected encode error")
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, _, err := Decode[payload](&nats.Msg{Subject: "s", Data: []byte("{bad")}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestHeaderCarrierEmpty(t *testing.T) {
	c := &headerCarrier{}
	if c.Get("x") != "" || len(c.Keys()) != 0 {
		t.Fatal("empty carrier must be empty")
	}
	c.Set("k", "v")
	if c.Get("k") != "v" || len(c.Keys()) != 1 {
		t.Fatal("carrier set/get mismatch")
	}
}

func TestSubscribeRoundTrip(t *testing.T) {
	nc := startTestNATS(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ch := make(chan payload, 1)
	sub, err := Subscribe(nc, "menu.sub", logger, func(_ context.Context, p payload) { ch <- p })
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if err := nc.Publish("menu.sub", []byte("{bad")); err != nil {
		t.Fatal(err)
	}
	if err := Publish(context.Background(), nc, "menu.sub", payload{Name: "coffee", Value: 42}); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-ch:
		if p.Name != "coffee" || p.Value != 42 {
			t.Fatalf("unexpected: %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}
