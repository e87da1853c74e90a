package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"classbook/internal/core"
	"classbook/internal/ledger"
	"classbook/internal/log"
	"classbook/internal/storage"

	"github.com/google/uuid"
)

// ErrPersist marks a mutation that was applied in memory but whose
// snapshot could not be saved.
var ErrPersist = errors.New("persist snapshot")

// NewStudent is the input for registering a student.
type NewStudent struct {
	Name           string
	Notes          string
	InitialBalance int
}

// SessionRequest describes a single class.
type SessionRequest struct {
	Date       core.Date
	StartTime  string
	EndTime    string
	StudentIDs []string
}

// RecurringRequest books one class per matching weekday in [Start, End].
type RecurringRequest struct {
	Start      core.Date
	End        core.Date
	Weekdays   core.WeekdaySet
	StartTime  string
	EndTime    string
	StudentIDs []string
}

// PaymentRequest records money received for a number of classes.
type PaymentRequest struct {
	StudentID    string
	Amount       core.Money
	ClassesAdded int
	Note         string
}

// LedgerService applies ledger mutations and saves a snapshot after each
// successful one. When the save fails the mutation stays applied and the
// returned error wraps ErrPersist.
type LedgerService struct {
	mu     sync.Mutex
	ledger *ledger.Ledger
	store  storage.SnapshotStore
	logger *log.Logger
	now    func() time.Time
	newID  func() string
}

// NewLedgerService creates a service over an empty ledger. Call Load to
// restore persisted state. A nil now uses time.Now.
func NewLedgerService(store storage.SnapshotStore, logger *log.Logger, now func() time.Time) *LedgerService {
	if logger == nil {
		logger = log.Discard()
	}
	if now == nil {
		now = time.Now
	}
	return &LedgerService{
		ledger: ledger.New(),
		store:  store,
		logger: logger.WithComponent(log.ComponentLedger),
		now:    now,
		newID:  uuid.NewString,
	}
}

// Ledger exposes the underlying ledger for reads.
func (s *LedgerService) Ledger() *ledger.Ledger {
	return s.ledger
}

// Load replaces the in-memory state with the stored snapshot. A store with
// no record yields an empty ledger.
func (s *LedgerService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, found, err := s.store.Load(ctx)
	if err != nil {
		s.logger.LogError(ctx, "Failed to load snapshot", err, log.OpLoad, nil)
		return fmt.Errorf("load snapshot: %w", err)
	}
	s.ledger.Restore(snap)
	s.logger.InfoContext(ctx, "Ledger loaded",
		"found", found,
		"students", len(snap.Students),
		"sessions", len(snap.Sessions),
		"payments", len(snap.Payments))
	return nil
}

// --- Students ---

func (s *LedgerService) AddStudent(ctx context.Context, in NewStudent) (core.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := core.Student{
		ID:         s.newID(),
		Name:       in.Name,
		Balance:    in.InitialBalance,
		Notes:      in.Notes,
		JoinedDate: core.DateOf(s.now()),
	}
	if err := s.ledger.AddStudent(st); err != nil {
		s.logger.LogError(ctx, "Failed to add student", err, log.OpAddStudent, nil)
		return core.Student{}, err
	}
	s.logger.LogOp(ctx, "Student added", log.OpAddStudent, log.NewFields().WithStudent(st.ID))
	return st, s.persist(ctx)
}

func (s *LedgerService) UpdateStudent(ctx context.Context, id string, patch ledger.StudentPatch) (core.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.ledger.UpdateStudent(id, patch)
	if err != nil {
		s.logger.LogError(ctx, "Failed to update student", err, log.OpUpdateStudent, log.NewFields().WithStudent(id))
		return core.Student{}, err
	}
	s.logger.LogOp(ctx, "Student updated", log.OpUpdateStudent, log.NewFields().WithStudent(id))
	return st, s.persist(ctx)
}

// DeleteStudent removes the student. Sessions and payments naming it are
// kept.
func (s *LedgerService) DeleteStudent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.DeleteStudent(id); err != nil {
		s.logger.LogError(ctx, "Failed to delete student", err, log.OpDeleteStudent, log.NewFields().WithStudent(id))
		return err
	}
	s.logger.LogOp(ctx, "Student deleted", log.OpDeleteStudent, log.NewFields().WithStudent(id))
	return s.persist(ctx)
}

// --- Sessions ---

func (s *LedgerService) AddSession(ctx context.Context, req SessionRequest) (core.ClassSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := core.ClassSession{
		ID:         s.newID(),
		Date:       req.Date,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		StudentIDs: core.UniqueIDs(req.StudentIDs),
	}
	if err := s.ledger.AddSession(cs); err != nil {
		s.logger.LogError(ctx, "Failed to add session", err, log.OpAddSession, nil)
		return core.ClassSession{}, err
	}
	s.logger.LogOp(ctx, "Session added", log.OpAddSession, log.NewFields().WithSession(cs.ID))
	return cs, s.persist(ctx)
}

// ScheduleSessions creates one session per date produced by Expand, all
// sharing the request's times and attendees. The batch is stored as a
// whole or not at all. No matching dates is not an error: the result is
// empty and nothing is saved.
func (s *LedgerService) ScheduleSessions(ctx context.Context, req RecurringRequest) ([]core.ClassSession, error) {
	if err := ValidateRange(req.Start, req.End); err != nil {
		return nil, fmt.Errorf("schedule sessions: %w", err)
	}
	dates := Expand(req.Start, req.End, req.Weekdays)
	if len(dates) == 0 {
		s.logger.DebugContext(ctx, "No dates to schedule",
			log.FieldWeekdays, req.Weekdays.String(),
			"start", req.Start.String(),
			"end", req.End.String())
		return []core.ClassSession{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	attendees := core.UniqueIDs(req.StudentIDs)
	batch := make([]core.ClassSession, len(dates))
	for i, d := range dates {
		batch[i] = core.ClassSession{
			ID:         s.newID(),
			Date:       d,
			StartTime:  req.StartTime,
			EndTime:    req.EndTime,
			StudentIDs: append([]string(nil), attendees...),
		}
	}
	if err := s.ledger.AddSessions(batch); err != nil {
		s.logger.LogError(ctx, "Failed to schedule sessions", err, log.OpScheduleSession, nil)
		return nil, err
	}
	s.logger.LogOp(ctx, "Sessions scheduled", log.OpScheduleSession, log.LogFields{
		log.FieldDates:    len(dates),
		log.FieldWeekdays: req.Weekdays.String(),
	})
	return batch, s.persist(ctx)
}

func (s *LedgerService) UpdateSession(ctx context.Context, id string, patch ledger.SessionPatch) (core.ClassSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.ledger.UpdateSession(id, patch)
	if err != nil {
		s.logger.LogError(ctx, "Failed to update session", err, log.OpUpdateSession, log.NewFields().WithSession(id))
		return core.ClassSession{}, err
	}
	s.logger.LogOp(ctx, "Session updated", log.OpUpdateSession, log.NewFields().WithSession(id))
	return cs, s.persist(ctx)
}

func (s *LedgerService) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.DeleteSession(id); err != nil {
		s.logger.LogError(ctx, "Failed to delete session", err, log.OpDeleteSession, log.NewFields().WithSession(id))
		return err
	}
	s.logger.LogOp(ctx, "Session deleted", log.OpDeleteSession, log.NewFields().WithSession(id))
	return s.persist(ctx)
}

// --- Payments ---

// RecordPayment stores the payment and credits its classes to the student.
// It returns the payment and the student's updated record.
func (s *LedgerService) RecordPayment(ctx context.Context, req PaymentRequest) (core.Payment, core.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := core.Payment{
		ID:           s.newID(),
		StudentID:    req.StudentID,
		Amount:       req.Amount,
		ClassesAdded: req.ClassesAdded,
		Date:         s.now().UTC(),
		Note:         req.Note,
	}
	fields := log.NewFields().WithPayment(p.ID, p.StudentID, p.ClassesAdded, p.Amount.Cents)
	st, err := s.ledger.AddPayment(p)
	if err != nil {
		s.logger.LogError(ctx, "Failed to record payment", err, log.OpRecordPayment, fields)
		return core.Payment{}, core.Student{}, err
	}
	fields[log.FieldBalance] = st.Balance
	s.logger.LogOp(ctx, "Payment recorded", log.OpRecordPayment, fields)
	return p, st, s.persist(ctx)
}

// --- Reads ---

func (s *LedgerService) Students() []core.Student { return s.ledger.Students() }

func (s *LedgerService) Student(id string) (core.Student, error) { return s.ledger.Student(id) }

func (s *LedgerService) Sessions() []core.ClassSession { return s.ledger.Sessions() }

func (s *LedgerService) SessionsOn(day core.Date) []core.ClassSession {
	return s.ledger.SessionsOn(day)
}

func (s *LedgerService) SessionsForStudent(id string) []core.ClassSession {
	return s.ledger.SessionsForStudent(id)
}

func (s *LedgerService) Attendees(sessionID string) ([]core.Student, error) {
	return s.ledger.Attendees(sessionID)
}

func (s *LedgerService) Payments() []core.Payment { return s.ledger.Payments() }

func (s *LedgerService) PaymentsForStudent(id string) []core.Payment {
	return s.ledger.PaymentsForStudent(id)
}

func (s *LedgerService) Snapshot() core.Snapshot { return s.ledger.Snapshot() }

// persist must be called with s.mu held.
func (s *LedgerService) persist(ctx context.Context) error {
	if err := s.store.Save(ctx, s.ledger.Snapshot()); err != nil {
		s.logger.LogError(ctx, "Failed to save snapshot", err, log.OpPersist, nil)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// Close closes the store when it holds resources.
func (s *LedgerService) Close() error {
	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close ledger service: %w", err)
		}
	}
	return nil
}
