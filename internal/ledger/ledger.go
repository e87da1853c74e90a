// Package ledger holds the in-memory students, sessions and payments and
// keeps each student's balance consistent with recorded payments.
//
// The ledger does no I/O. Persistence is the caller's job: take a
// Snapshot after a mutation and hand it to a storage.SnapshotStore.
package ledger

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"classbook/internal/core"
)

// StudentPatch lists the student fields an update may change. Balance is
// deliberately absent: it only moves through AddPayment.
type StudentPatch struct {
	Name              *string
	Notes             *string
	TotalClassesTaken *int
	JoinedDate        *core.Date
}

// SessionPatch lists the session fields an update may change. A non-nil
// StudentIDs replaces the attendee list.
type SessionPatch struct {
	Date       *core.Date
	StartTime  *string
	EndTime    *string
	StudentIDs []string
	Completed  *bool
}

type Ledger struct {
	mu       sync.Mutex
	students []core.Student
	sessions []core.ClassSession
	payments []core.Payment
}

func New() *Ledger {
	return &Ledger{}
}

// FromSnapshot builds a ledger holding exactly the snapshot's contents.
func FromSnapshot(s core.Snapshot) *Ledger {
	l := New()
	l.Restore(s)
	return l
}

// --- Students ---

func (l *Ledger) AddStudent(s core.Student) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("add student: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.studentIndex(s.ID) >= 0 {
		return fmt.Errorf("add student: %w: %q", core.ErrDuplicateID, s.ID)
	}
	l.students = append(l.students, s)
	return nil
}

func (l *Ledger) UpdateStudent(id string, p StudentPatch) (core.Student, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.studentIndex(id)
	if i < 0 {
		return core.Student{}, fmt.Errorf("update student: %w: student %q", core.ErrNotFound, id)
	}
	updated := l.students[i]
	if p.Name != nil {
		updated.Name = *p.Name
	}
	if p.Notes != nil {
		updated.Notes = *p.Notes
	}
	if p.TotalClassesTaken != nil {
		updated.TotalClassesTaken = *p.TotalClassesTaken
	}
	if p.JoinedDate != nil {
		updated.JoinedDate = *p.JoinedDate
	}
	if err := updated.Validate(); err != nil {
		return core.Student{}, fmt.Errorf("update student: %w", err)
	}
	l.students[i] = updated
	return updated, nil
}

// DeleteStudent removes the student only. Sessions and payments that
// reference it are left untouched.
func (l *Ledger) DeleteStudent(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.studentIndex(id)
	if i < 0 {
		return fmt.Errorf("delete student: %w: student %q", core.ErrNotFound, id)
	}
	l.students = slices.Delete(l.students, i, i+1)
	return nil
}

func (l *Ledger) Student(id string) (core.Student, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.studentIndex(id)
	if i < 0 {
		return core.Student{}, fmt.Errorf("%w: student %q", core.ErrNotFound, id)
	}
	return l.students[i], nil
}

func (l *Ledger) Students() []core.Student {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.students)
}

// --- Sessions ---

func (l *Ledger) AddSession(s core.ClassSession) error {
	return l.AddSessions([]core.ClassSession{s})
}

// AddSessions appends all sessions or none: every record is checked
// before the first one is stored.
func (l *Ledger) AddSessions(batch []core.ClassSession) error {
	prepared := make([]core.ClassSession, len(batch))
	for i, s := range batch {
		s.StudentIDs = core.UniqueIDs(s.StudentIDs)
		if err := s.Validate(); err != nil {
			return fmt.Errorf("add session %q: %w", s.ID, err)
		}
		prepared[i] = s
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	seen := make(map[string]struct{}, len(prepared))
	for _, s := range prepared {
		if _, dup := seen[s.ID]; dup || l.sessionIndex(s.ID) >= 0 {
			return fmt.Errorf("add session: %w: %q", core.ErrDuplicateID, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	l.sessions = append(l.sessions, prepared...)
	return nil
}

func (l *Ledger) UpdateSession(id string, p SessionPatch) (core.ClassSession, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.sessionIndex(id)
	if i < 0 {
		return core.ClassSession{}, fmt.Errorf("update session: %w: session %q", core.ErrNotFound, id)
	}
	updated := l.sessions[i]
	if p.Date != nil {
		updated.Date = *p.Date
	}
	if p.StartTime != nil {
		updated.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		updated.EndTime = *p.EndTime
	}
	if p.StudentIDs != nil {
		updated.StudentIDs = core.UniqueIDs(p.StudentIDs)
	} else {
		updated.StudentIDs = slices.Clone(updated.StudentIDs)
	}
	if p.Completed != nil {
		updated.Completed = *p.Completed
	}
	if err := updated.Validate(); err != nil {
		return core.ClassSession{}, fmt.Errorf("update session: %w", err)
	}
	l.sessions[i] = updated
	return cloneSession(updated), nil
}

func (l *Ledger) DeleteSession(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.sessionIndex(id)
	if i < 0 {
		return fmt.Errorf("delete session: %w: session %q", core.ErrNotFound, id)
	}
	l.sessions = slices.Delete(l.sessions, i, i+1)
	return nil
}

func (l *Ledger) Session(id string) (core.ClassSession, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.sessionIndex(id)
	if i < 0 {
		return core.ClassSession{}, fmt.Errorf("%w: session %q", core.ErrNotFound, id)
	}
	return cloneSession(l.sessions[i]), nil
}

func (l *Ledger) Sessions() []core.ClassSession {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneSessions(l.sessions)
}

// SessionsOn returns the sessions held on day, earliest start first.
func (l *Ledger) SessionsOn(day core.Date) []core.ClassSession {
	l.mu.Lock()
	var out []core.ClassSession
	for _, s := range l.sessions {
		if s.Date.Equal(day) {
			out = append(out, cloneSession(s))
		}
	}
	l.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

// SessionsForStudent returns the sessions the student attends, in date
// then start-time order.
func (l *Ledger) SessionsForStudent(studentID string) []core.ClassSession {
	l.mu.Lock()
	var out []core.ClassSession
	for _, s := range l.sessions {
		if slices.Contains(s.StudentIDs, studentID) {
			out = append(out, cloneSession(s))
		}
	}
	l.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

// Attendees resolves a session's student ids. Ids whose student has been
// deleted are skipped.
func (l *Ledger) Attendees(sessionID string) ([]core.Student, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.sessionIndex(sessionID)
	if i < 0 {
		return nil, fmt.Errorf("%w: session %q", core.ErrNotFound, sessionID)
	}
	out := make([]core.Student, 0, len(l.sessions[i].StudentIDs))
	for _, id := range l.sessions[i].StudentIDs {
		if j := l.studentIndex(id); j >= 0 {
			out = append(out, l.students[j])
		}
	}
	return out, nil
}

// --- Payments ---

// AddPayment records p and credits p.ClassesAdded to the student in the
// same locked step. Payments for unknown students are rejected and not
// recorded. The timestamp is stored in UTC.
func (l *Ledger) AddPayment(p core.Payment) (core.Student, error) {
	p.Date = p.Date.UTC()
	if err := p.Validate(); err != nil {
		return core.Student{}, fmt.Errorf("add payment: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paymentIndex(p.ID) >= 0 {
		return core.Student{}, fmt.Errorf("add payment: %w: %q", core.ErrDuplicateID, p.ID)
	}
	i := l.studentIndex(p.StudentID)
	if i < 0 {
		return core.Student{}, fmt.Errorf("add payment: %w: %q", core.ErrUnknownStudent, p.StudentID)
	}
	l.payments = append(l.payments, p)
	l.students[i].Balance += p.ClassesAdded
	return l.students[i], nil
}

func (l *Ledger) Payment(id string) (core.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.paymentIndex(id)
	if i < 0 {
		return core.Payment{}, fmt.Errorf("%w: payment %q", core.ErrNotFound, id)
	}
	return l.payments[i], nil
}

func (l *Ledger) Payments() []core.Payment {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.payments)
}

// PaymentsForStudent returns the student's payments in recording order.
func (l *Ledger) PaymentsForStudent(studentID string) []core.Payment {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []core.Payment
	for _, p := range l.payments {
		if p.StudentID == studentID {
			out = append(out, p)
		}
	}
	return out
}

// --- Snapshots ---

// Snapshot returns a deep copy of the whole ledger.
func (l *Ledger) Snapshot() core.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return core.Snapshot{
		Students: slices.Clone(l.students),
		Sessions: cloneSessions(l.sessions),
		Payments: slices.Clone(l.payments),
	}.Normalize()
}

// Restore replaces the ledger contents with s. Nothing is merged. The
// snapshot is normalized first, so repeated attendee ids collapse.
func (l *Ledger) Restore(s core.Snapshot) {
	s = s.Normalize()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.students = slices.Clone(s.Students)
	l.sessions = cloneSessions(s.Sessions)
	l.payments = slices.Clone(s.Payments)
}

func (l *Ledger) studentIndex(id string) int {
	return slices.IndexFunc(l.students, func(s core.Student) bool { return s.ID == id })
}

func (l *Ledger) sessionIndex(id string) int {
	return slices.IndexFunc(l.sessions, func(s core.ClassSession) bool { return s.ID == id })
}

func (l *Ledger) paymentIndex(id string) int {
	return slices.IndexFunc(l.payments, func(p core.Payment) bool { return p.ID == id })
}

func cloneSession(s core.ClassSession) core.ClassSession {
	s.StudentIDs = slices.Clone(s.StudentIDs)
	return s
}

func cloneSessions(in []core.ClassSession) []core.ClassSession {
	if in == nil {
		return nil
	}
	out := make([]core.ClassSession, len(in))
	for i, s := range in {
		out[i] = cloneSession(s)
	}
	return out
}
