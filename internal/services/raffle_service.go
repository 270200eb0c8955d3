package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/logger"

	"chapter/internal/models"
	"chapter/internal/raffle"
	"chapter/internal/registrations"
)

// ErrNoDraw is returned when an event has no open draw dialog.
var ErrNoDraw = errors.New("no draw open for this event")

// Publisher forwards draw updates to the pages watching an event.
type Publisher interface {
	PublishDraw(eventID string, snap raffle.Snapshot)
	PublishCelebration(eventID string, snap raffle.Snapshot)
}

// DrawSession is the open draw dialog of one event.
type DrawSession struct {
	EventID      string
	Selector     *raffle.Selector
	LastActivity time.Time
}

// RaffleService manages the draw dialogs of every event.
type RaffleService struct {
	mu       sync.RWMutex
	sessions map[string]*DrawSession // Key: eventID
	// results holds every completed draw per event, oldest first.
	results map[string][]*models.DrawResult

	store     registrations.Store
	publisher Publisher
	options   []raffle.Option
}

// NewRaffleService creates a RaffleService reading participants from store.
// publisher may be nil. options are applied to every selector it opens.
func NewRaffleService(store registrations.Store, publisher Publisher, options ...raffle.Option) *RaffleService {
	return &RaffleService{
		sessions:  make(map[string]*DrawSession),
		results:   make(map[string][]*models.DrawResult),
		store:     store,
		publisher: publisher,
		options:   options,
	}
}

// OpenDraw loads the event's registrations and opens a fresh draw dialog,
// closing the previous one if it is still open.
func (s *RaffleService) OpenDraw(ctx context.Context, eventID string) (raffle.Snapshot, error) {
	participants, err := s.store.List(ctx, eventID)
	if err != nil {
		return raffle.Snapshot{}, fmt.Errorf("open draw for %s: %w", eventID, err)
	}

	session := &DrawSession{EventID: eventID, LastActivity: time.Now()}
	opts := append(append([]raffle.Option(nil), s.options...),
		raffle.WithParticipants(participants),
		raffle.WithListener(raffle.ListenerFunc(func(snap raffle.Snapshot) { s.drawChanged(session, snap) })),
		raffle.WithCelebrator(raffle.CelebratorFunc(func(snap raffle.Snapshot) { s.celebrate(session, snap) })),
	)
	session.Selector = raffle.NewSelector(opts...)

	s.mu.Lock()
	previous := s.sessions[eventID]
	s.sessions[eventID] = session
	s.mu.Unlock()

	if previous != nil {
		previous.Selector.Close()
	}

	snap := session.Selector.Announce()
	logger.Infof("Opened draw for event %s with %d participants", eventID, len(participants))
	return snap, nil
}

// getSession returns the open dialog of an event and marks it active.
func (s *RaffleService) getSession(eventID string) (*DrawSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[eventID]
	if !exists {
		return nil, ErrNoDraw
	}
	session.LastActivity = time.Now()
	return session, nil
}

// StartDraw spins the event's dialog over the participants it was opened with.
func (s *RaffleService) StartDraw(eventID string) (raffle.Snapshot, error) {
	session, err := s.getSession(eventID)
	if err != nil {
		return raffle.Snapshot{}, err
	}
	return session.Selector.StartDraw(session.Selector.Participants())
}

// ResetDraw clears the last winner so the event can spin again.
func (s *RaffleService) ResetDraw(eventID string) (raffle.Snapshot, error) {
	session, err := s.getSession(eventID)
	if err != nil {
		return raffle.Snapshot{}, err
	}
	return session.Selector.Reset()
}

// Snapshot returns the state of the event's dialog.
func (s *RaffleService) Snapshot(eventID string) (raffle.Snapshot, error) {
	session, err := s.getSession(eventID)
	if err != nil {
		return raffle.Snapshot{}, err
	}
	return session.Selector.Snapshot(), nil
}

// CloseDraw closes the event's dialog, cancelling a spin in flight.
func (s *RaffleService) CloseDraw(eventID string) error {
	s.mu.Lock()
	session, exists := s.sessions[eventID]
	delete(s.sessions, eventID)
	s.mu.Unlock()

	if !exists {
		return ErrNoDraw
	}
	s.closeSession(session)
	return nil
}

// Announce republishes the state of an event's dialog so a page that just
// connected catches up. An event without a dialog is announced as closed.
func (s *RaffleService) Announce(eventID string) {
	s.mu.RLock()
	session := s.sessions[eventID]
	if session == nil {
		if s.publisher != nil {
			s.publisher.PublishDraw(eventID, closedSnapshot())
		}
		s.mu.RUnlock()
		return
	}
	s.mu.RUnlock()
	session.Selector.Announce()
}

// GetDrawResults returns the completed draws of an event, oldest first.
func (s *RaffleService) GetDrawResults(eventID string) []*models.DrawResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.DrawResult{}, s.results[eventID]...)
}

// CleanUpInactiveSessions closes dialogs idle for longer than maxIdle and
// returns how many it closed.
func (s *RaffleService) CleanUpInactiveSessions(maxIdle time.Duration) int {
	s.mu.Lock()
	var stale []*DrawSession
	for eventID, session := range s.sessions {
		if time.Since(session.LastActivity) > maxIdle {
			stale = append(stale, session)
			delete(s.sessions, eventID)
		}
	}
	s.mu.Unlock()

	for _, session := range stale {
		logger.Infof("Closing idle draw for event %s", session.EventID)
		s.closeSession(session)
	}
	return len(stale)
}

// ClearSession removes the dialog and the draw history of an event.
func (s *RaffleService) ClearSession(eventID string) {
	s.mu.Lock()
	session := s.sessions[eventID]
	delete(s.sessions, eventID)
	delete(s.results, eventID)
	s.mu.Unlock()

	if session != nil {
		s.closeSession(session)
	}
	logger.Infof("Cleared session for event: %s", eventID)
}

// Shutdown closes every open dialog.
func (s *RaffleService) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*DrawSession)
	s.mu.Unlock()

	for _, session := range sessions {
		s.closeSession(session)
	}
}

// closeSession closes a dialog already taken out of the map and tells the
// event's pages, unless a newer dialog has been opened in its place.
func (s *RaffleService) closeSession(session *DrawSession) {
	session.Selector.Close()
	if s.publisher == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, reopened := s.sessions[session.EventID]; !reopened {
		s.publisher.PublishDraw(session.EventID, session.Selector.Snapshot())
	}
}

func closedSnapshot() raffle.Snapshot {
	return raffle.Snapshot{State: raffle.StateClosed, Participants: []models.Participant{}, WinnerIndex: -1}
}

func (s *RaffleService) current(session *DrawSession) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[session.EventID] == session
}

func (s *RaffleService) drawChanged(session *DrawSession, snap raffle.Snapshot) {
	if snap.State == raffle.StateCompleted && snap.Winner != nil {
		s.mu.Lock()
		results := s.results[session.EventID]
		// Announce repeats the completed snapshot; record each draw once.
		if n := len(results); n == 0 || results[n-1].DrawID != snap.DrawID {
			s.results[session.EventID] = append(results, &models.DrawResult{
				EventID:      session.EventID,
				DrawID:       snap.DrawID,
				WinnerName:   snap.Winner.Name,
				WinnerEmail:  snap.Winner.Email,
				Participants: len(snap.Participants),
				DrawnAt:      time.Now(),
			})
		}
		s.mu.Unlock()
	}
	// A replaced or closed dialog must not overwrite what the page shows.
	if s.publisher != nil && s.current(session) {
		s.publisher.PublishDraw(session.EventID, snap)
	}
}

func (s *RaffleService) celebrate(session *DrawSession, snap raffle.Snapshot) {
	if s.publisher != nil && s.current(session) {
		s.publisher.PublishCelebration(session.EventID, snap)
	}
}
