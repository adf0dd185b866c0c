package session

import (
	"errors"
	"testing"

	"github.com/ayusman/taiji/internal/logging"
	"github.com/ayusman/taiji/internal/store"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	st, err := store.New("")
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, logging.NewNop())
}

type doc struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestSession_PutGet(t *testing.T) {
	s := newTestSession(t)

	if s.ID() == "" {
		t.Error("ID() should not be empty")
	}

	var got doc
	if err := s.Get("missing", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.Put("calibration.v1", doc{Name: "a", Value: 1.5}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Get("calibration.v1", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != (doc{Name: "a", Value: 1.5}) {
		t.Errorf("Get() = %+v", got)
	}
	if !s.Has("calibration.v1") {
		t.Error("Has() = false after Put")
	}

	if err := s.Delete("calibration.v1"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if err := s.Delete("calibration.v1"); err != nil {
		t.Errorf("Delete() of missing key error = %v, want nil", err)
	}
}

func TestSession_PutAllAndPrefix(t *testing.T) {
	s := newTestSession(t)

	err := s.PutAll(map[string]any{
		"expert_transformed.1.S1.v1": doc{Name: "seg"},
		"expert_transformed.v1":      doc{Name: "seg"},
	})
	if err != nil {
		t.Fatalf("PutAll() error = %v", err)
	}

	keys, err := s.Keys("expert_transformed.")
	if err != nil || len(keys) != 2 {
		t.Fatalf("Keys() = %v, %v", keys, err)
	}

	n, err := s.DeletePrefix("expert_transformed.")
	if err != nil || n != 2 {
		t.Errorf("DeletePrefix() = %d, %v; want 2", n, err)
	}
}

func TestSession_PublishSubscribe(t *testing.T) {
	s := newTestSession(t)

	var all, calibration []Event
	cancelAll := s.Subscribe("", func(e Event) { all = append(all, e) })
	s.Subscribe(TopicCalibrationUpdated, func(e Event) { calibration = append(calibration, e) })

	s.Publish(Event{Topic: TopicCalibrationUpdated, Key: "calibration.v1"})
	s.Publish(Event{Topic: TopicExpertUpdated, Key: "expert_transformed.1.S1.v1", Count: 42})

	if len(all) != 2 {
		t.Fatalf("wildcard subscriber got %d events, want 2", len(all))
	}
	if all[1].Count != 42 || all[1].At.IsZero() {
		t.Errorf("expert event = %+v", all[1])
	}
	if len(calibration) != 1 {
		t.Errorf("topic subscriber got %d events, want 1", len(calibration))
	}

	cancelAll()
	cancelAll()
	s.Publish(Event{Topic: TopicExpertUpdated})
	if len(all) != 2 {
		t.Errorf("cancelled subscriber still received events: %d", len(all))
	}
}

func TestSession_UnsubscribeInsideCallback(t *testing.T) {
	s := newTestSession(t)

	calls := 0
	var cancel func()
	cancel = s.Subscribe(TopicExpertUpdated, func(Event) {
		calls++
		cancel()
	})

	s.Publish(Event{Topic: TopicExpertUpdated})
	s.Publish(Event{Topic: TopicExpertUpdated})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
