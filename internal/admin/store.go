package admin

import (
	"context"
	"sync"
)

// Store serialises dispatches and notifies subscribers after every change.
// In-flight lifecycles are not deduplicated.
type Store struct {
	mu          sync.Mutex
	state       State
	nextID      int
	subscribers map[int]func(State)
}

func NewStore() *Store {
	return &Store{
		state:       InitialState(),
		subscribers: make(map[int]func(State)),
	}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a to the state. Subscribers run after the lock is
// released, so they may dispatch themselves.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	s.state = reduce(s.state, a)
	state := s.state
	subs := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
	return state
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// API is the settings surface the admin screens talk to.
type API interface {
	FetchAmazonSettings(ctx context.Context) (AmazonCredentials, error)
	SaveAmazonSettings(ctx context.Context, creds AmazonCredentials) error
	VerifyAmazonSettings(ctx context.Context, creds AmazonCredentials) error
}

func FetchSettings(ctx context.Context, s *Store, api API) error {
	s.Dispatch(FetchSettingsPending{})
	creds, err := api.FetchAmazonSettings(ctx)
	if err != nil {
		s.Dispatch(FetchSettingsRejected{Err: err})
		return err
	}
	s.Dispatch(FetchSettingsFulfilled{Credentials: creds})
	return nil
}

// SaveSettings saves the credentials currently held in the form.
func SaveSettings(ctx context.Context, s *Store, api API) error {
	creds := s.State().Settings.Credentials()
	s.Dispatch(SaveSettingsPending{})
	if err := api.SaveAmazonSettings(ctx, creds); err != nil {
		s.Dispatch(SaveSettingsRejected{Err: err})
		return err
	}
	s.Dispatch(SaveSettingsFulfilled{})
	return nil
}

func VerifySettings(ctx context.Context, s *Store, api API) error {
	creds := s.State().Settings.Credentials()
	s.Dispatch(VerifySettingsPending{})
	if err := api.VerifyAmazonSettings(ctx, creds); err != nil {
		s.Dispatch(VerifySettingsRejected{Err: err})
		return err
	}
	s.Dispatch(VerifySettingsFulfilled{})
	return nil
}
