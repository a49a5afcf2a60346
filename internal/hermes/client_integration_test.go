//go:build integration

package hermes_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/trustfit/internal/hermes"
	"github.com/MikeSquared-Agency/trustfit/internal/processor"
	"github.com/MikeSquared-Agency/trustfit/internal/session"
)

func connect(t *testing.T) *hermes.Client {
	t.Helper()
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}
	client, err := hermes.NewClient(context.Background(), hermes.Options{
		URL:   natsURL,
		Token: os.Getenv("NATS_TOKEN"),
		Name:  "trustfit-integration",
	}, slog.Default())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(client.Close)
	if !client.Connected() {
		t.Fatal("client not connected")
	}
	return client
}

func TestIntegration_ObservationProducesEstimate(t *testing.T) {
	client := connect(t)
	sessionID := "it-" + uuid.NewString()

	estimates := make(chan hermes.EstimateEvent, 4)
	err := client.Subscribe(hermes.SubjectEstimate, func(_ string, data []byte) {
		var evt hermes.EstimateEvent
		if err := json.Unmarshal(data, &evt); err == nil && evt.SessionID == sessionID {
			estimates <- evt
		}
	})
	if err != nil {
		t.Fatalf("subscribe estimates failed: %v", err)
	}

	proc := processor.New(session.New(slog.Default(), nil), client, slog.Default())
	if err := client.Subscribe(hermes.SubjectObservation, proc.HandleObservation); err != nil {
		t.Fatalf("subscribe observations failed: %v", err)
	}

	// Give subscriptions time to propagate
	time.Sleep(100 * time.Millisecond)

	for _, obs := range []hermes.ObservationEvent{
		{SessionID: sessionID, Performance: 1, Feedback: 80},
		{SessionID: sessionID, Performance: 0, Feedback: 30},
	} {
		if err := client.Publish(hermes.SubjectObservation, obs); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
	}

	for i := 0; i < 2; i++ {
		select {
		case evt := <-estimates:
			if evt.Index != i {
				t.Errorf("estimate %d has index %d", i, evt.Index)
			}
			if evt.NewEstimate <= 0 || evt.NewEstimate >= 1 {
				t.Errorf("estimate %d = %f outside (0,1)", i, evt.NewEstimate)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for estimate %d", i)
		}
	}
}
