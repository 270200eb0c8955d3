// Package registrations keeps the people registered for each event.
// The draw service reads its participant list from here.
package registrations

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"chapter/internal/models"
)

var (
	ErrAlreadyRegistered  = errors.New("registrations: email already registered for this event")
	ErrInvalidParticipant = errors.New("registrations: invalid participant")
)

// Store lists and records event registrations in registration order.
type Store interface {
	Register(ctx context.Context, eventID string, p models.Participant) error
	List(ctx context.Context, eventID string) ([]models.Participant, error)
	Clear(ctx context.Context, eventID string) error
}

// Normalize trims the participant's fields and lower-cases the email.
// A name is required; an email is optional but must parse when present.
func Normalize(p models.Participant) (models.Participant, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.Name == "" {
		return p, errors.Join(ErrInvalidParticipant, errors.New("name is required"))
	}
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return p, errors.Join(ErrInvalidParticipant, err)
		}
	}
	return p, nil
}
