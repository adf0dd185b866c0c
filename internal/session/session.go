// Package session is the session-scoped state shared by the calibration,
// retargeting and alignment engines: JSON documents by key plus an
// in-process publish/subscribe channel for change notifications.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/taiji/internal/store"
)

// Event topics.
const (
	TopicCalibrationUpdated = "calibration:updated"
	TopicExpertUpdated      = "expert:updated"
	TopicPlaybackToggled    = "playback:toggled"
	TopicPracticeUpdated    = "practice:updated"
)

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = store.ErrNotFound

// Event is a change notification.
type Event struct {
	Topic string    `json:"topic"`
	Key   string    `json:"key,omitempty"`
	Count int       `json:"count,omitempty"`
	At    time.Time `json:"at"`
}

type subscriber struct {
	topic string
	fn    func(Event)
}

// Session owns the state of one practice session.
type Session struct {
	id     string
	state  *store.StateRepository
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[int]subscriber
	nextID int
}

// New creates a session backed by st.
func New(st *store.Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		id:     id,
		state:  st.State(),
		logger: logger.With("component", "session", "session_id", id),
		subs:   make(map[int]subscriber),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Put stores v as JSON under key, replacing any previous value.
func (s *Session) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.state.Put(key, string(data)); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

// PutAll stores several values atomically.
func (s *Session) PutAll(values map[string]any) error {
	encoded := make(map[string]string, len(values))
	for key, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		encoded[key] = string(data)
	}
	if err := s.state.PutAll(encoded); err != nil {
		return fmt.Errorf("store values: %w", err)
	}
	return nil
}

// Get decodes the value under key into v. It returns ErrNotFound when the
// key is absent.
func (s *Session) Get(key string, v any) error {
	raw, err := s.state.Get(key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Has reports whether key holds a value.
func (s *Session) Has(key string) bool {
	_, err := s.state.Get(key)
	return err == nil
}

// Delete removes key. Missing keys are not an error.
func (s *Session) Delete(key string) error {
	if err := s.state.Delete(key); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (s *Session) DeletePrefix(prefix string) (int64, error) {
	return s.state.DeletePrefix(prefix)
}

// Keys lists the keys starting with prefix.
func (s *Session) Keys(prefix string) ([]string, error) {
	return s.state.Keys(prefix)
}

// Subscribe registers fn for events on topic; an empty topic receives every
// event. The returned function unsubscribes.
func (s *Session) Subscribe(topic string, fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = subscriber{topic: topic, fn: fn}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Publish delivers e synchronously to matching subscribers in subscription
// order. Subscribers may subscribe or unsubscribe from inside a callback.
func (s *Session) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	s.mu.RLock()
	ids := make([]int, 0, len(s.subs))
	for id, sub := range s.subs {
		if sub.topic == "" || sub.topic == e.Topic {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	targets := make([]func(Event), len(ids))
	for i, id := range ids {
		targets[i] = s.subs[id].fn
	}
	s.mu.RUnlock()

	s.logger.Debug("event", "topic", e.Topic, "key", e.Key, "count", e.Count, "subscribers", len(targets))
	for _, fn := range targets {
		fn(e)
	}
}
