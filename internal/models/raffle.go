package models

import "time"

// Participant is a person registered for an event and entered into its raffle.
// Name is not guaranteed to be unique; Email may be empty.
type Participant struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DrawResult stores the outcome of a completed draw,
// linking the winner to the event and the draw that picked them.
type DrawResult struct {
	EventID      string    `json:"eventId"`
	DrawID       string    `json:"drawId"`
	WinnerName   string    `json:"winnerName"`
	WinnerEmail  string    `json:"winnerEmail"`
	Participants int       `json:"participants"`
	DrawnAt      time.Time `json:"drawnAt"`
}
