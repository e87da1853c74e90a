package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	// Student is a pupil paying in class credits. Balance may go negative.
	Student struct {
		ID                string `json:"id"`
		Name              string `json:"name"`
		Balance           int    `json:"balance"`
		TotalClassesTaken int    `json:"totalClassesTaken"`
		Notes             string `json:"notes,omitempty"`
		JoinedDate        Date   `json:"joinedDate"`
	}

	// ClassSession is one scheduled class on a calendar day.
	ClassSession struct {
		ID         string   `json:"id"`
		Date       Date     `json:"date"`
		StartTime  string   `json:"startTime"` // HH:mm
		EndTime    string   `json:"endTime"`   // HH:mm
		StudentIDs []string `json:"studentIds"`
		Completed  bool     `json:"completed"`
	}

	// Payment credits ClassesAdded to the referenced student's balance.
	Payment struct {
		ID           string    `json:"id"`
		StudentID    string    `json:"studentId"`
		Amount       Money     `json:"amount"`
		ClassesAdded int       `json:"classesAdded"`
		Date         time.Time `json:"date"`
		Note         string    `json:"note,omitempty"`
	}
)

// Ledger errors. Callers match them with errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateID    = errors.New("duplicate id")
	ErrEmptyAttendees = errors.New("session has no attendees")
	ErrUnknownStudent = errors.New("unknown student")
	ErrInvalidRange   = errors.New("end date precedes start date")
)

// Validation errors.
var (
	ErrEmptyID          = errors.New("empty id")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidClockTime = errors.New("invalid clock time (want HH:mm)")
	ErrZeroDate         = errors.New("date cannot be zero")
)

const clockLayout = "15:04"

// ParseClockTime checks that s is a 24h HH:mm clock time.
func ParseClockTime(s string) (time.Time, error) {
	t, err := time.Parse(clockLayout, strings.TrimSpace(s))
	if err != nil || len(strings.TrimSpace(s)) != len(clockLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	return t, nil
}

func (s Student) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (cs ClassSession) Validate() error {
	if strings.TrimSpace(cs.ID) == "" {
		return ErrEmptyID
	}
	if err := cs.Date.Validate(); err != nil {
		return err
	}
	if _, err := ParseClockTime(cs.StartTime); err != nil {
		return fmt.Errorf("start time: %w", err)
	}
	if _, err := ParseClockTime(cs.EndTime); err != nil {
		return fmt.Errorf("end time: %w", err)
	}
	if len(cs.StudentIDs) == 0 {
		return ErrEmptyAttendees
	}
	return nil
}

func (p Payment) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(p.StudentID) == "" {
		return fmt.Errorf("%w: empty student id", ErrUnknownStudent)
	}
	if p.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// UniqueIDs drops blank and repeated ids, keeping first-seen order.
func UniqueIDs(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
