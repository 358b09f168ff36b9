package streaming

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"
)

func TestLogPublisherPublishesTopicAndPayload(t *testing.T) {
	var buf bytes.Buffer
	p := &LogPublisher{logger: log.New(&buf, "", 0), source: "test"}

	err := p.Publish(context.Background(), "accounting.cost", map[string]string{"tenant_id": "t1"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "accounting.cost") {
		t.Fatalf("expected topic in log output, got %q", out)
	}
	if !strings.Contains(out, "t1") {
		t.Fatalf("expected payload in log output, got %q", out)
	}
}

func TestLogPublisherRejectsUnmarshalablePayload(t *testing.T) {
	var buf bytes.Buffer
	p := &LogPublisher{logger: log.New(&buf, "", 0), source: "test"}

	err := p.Publish(context.Background(), "bad", make(chan int))
	if err == nil {
		t.Fatal("expected an error marshaling an unsupported payload type")
	}
}
