package log

import (
	"context"
	"log/slog"
)

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldError        = "error"
	FieldOperation    = "operation"
	FieldStudentID    = "student_id"
	FieldSessionID    = "session_id"
	FieldPaymentID    = "payment_id"
	FieldClassesAdded = "classes_added"
	FieldBalance      = "balance"
	FieldAmountCents  = "amount_cents"
	FieldDates        = "dates"
	FieldWeekdays     = "weekdays"
	FieldBackend      = "backend"
	FieldPath         = "path"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentBackend = "backend"
	ComponentReport  = "report"
)

// Operations defines standard operation names
const (
	OpLoad            = "load"
	OpPersist         = "persist"
	OpAddStudent      = "add_student"
	OpUpdateStudent   = "update_student"
	OpDeleteStudent   = "delete_student"
	OpAddSession      = "add_session"
	OpScheduleSession = "schedule_sessions"
	OpUpdateSession   = "update_session"
	OpDeleteSession   = "delete_session"
	OpRecordPayment   = "record_payment"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithStudent(id string) LogFields {
	f[FieldStudentID] = id
	return f
}

func (f LogFields) WithSession(id string) LogFields {
	f[FieldSessionID] = id
	return f
}

// WithPayment adds the payment id, its student and the credited classes.
func (f LogFields) WithPayment(id, studentID string, classesAdded int, amountCents int64) LogFields {
	f[FieldPaymentID] = id
	f[FieldStudentID] = studentID
	f[FieldClassesAdded] = classesAdded
	f[FieldAmountCents] = amountCents
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}

// LogError logs err at Error level with the operation attached.
func (l *Logger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	l.ErrorContext(ctx, msg, fields.WithError(err).WithOperation(operation).ToSlice()...)
}

// LogOp logs a completed operation at Info level.
func (l *Logger) LogOp(ctx context.Context, msg string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	l.Log(ctx, slog.LevelInfo, msg, fields.WithOperation(operation).ToSlice()...)
}
