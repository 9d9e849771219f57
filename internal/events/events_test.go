package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cwrk-planet/chat-service/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

func TestEncodeKeysByChat(t *testing.T) {
	msg, err := encode(MessageCreated{ChatID: "c1", MessageID: "m1", SenderID: "alice", Timestamp: 7})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(msg.Key) != "c1" {
		t.Fatalf("key = %q", msg.Key)
	}

	var ev MessageCreated
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.MessageID != "m1" || ev.Timestamp != 7 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestCompletionReportsDeliveryFailures(t *testing.T) {
	var buf bytes.Buffer
	m := metrics.New(prometheus.NewRegistry())
	p := NewKafkaPublisher([]string{"127.0.0.1:1"}, "", WithMetrics(m),
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	defer p.Close()

	if p.w.Completion == nil {
		t.Fatal("async writer without completion callback")
	}
	p.w.Completion([]kafka.Message{{Key: []byte("c1")}, {Key: []byte("c2")}}, errors.New("leader not available"))
	p.w.Completion([]kafka.Message{{Key: []byte("c3")}}, nil)

	if out := buf.String(); !strings.Contains(out, "delivery failed") || !strings.Contains(out, "leader not available") {
		t.Fatalf("failure not logged: %s", out)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`chat_events_published_total{result="failed"} 2`,
		`chat_events_published_total{result="delivered"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("missing %s in:\n%s", want, body)
		}
	}
}
