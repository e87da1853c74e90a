package ledger

import (
	"math/rand"
	"strconv"
	"testing"
	"time"

	"classbook/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// LedgerTestSuite runs each test against a fresh ledger with two students.
type LedgerTestSuite struct {
	suite.Suite
	ledger *Ledger
}

func (suite *LedgerTestSuite) SetupTest() {
	suite.ledger = New()
	require.NoError(suite.T(), suite.ledger.AddStudent(student("s1", "Lin", 5)))
	require.NoError(suite.T(), suite.ledger.AddStudent(student("s2", "Mei", 0)))
}

func student(id, name string, balance int) core.Student {
	return core.Student{
		ID:         id,
		Name:       name,
		Balance:    balance,
		JoinedDate: core.NewDate(2024, 1, 1),
	}
}

func session(id string, date core.Date, start string, attendees ...string) core.ClassSession {
	return core.ClassSession{
		ID:         id,
		Date:       date,
		StartTime:  start,
		EndTime:    "23:00",
		StudentIDs: attendees,
	}
}

func payment(id, studentID string, classes int) core.Payment {
	return core.Payment{
		ID:           id,
		StudentID:    studentID,
		Amount:       core.Money{Cents: int64(classes) * 15000},
		ClassesAdded: classes,
		Date:         time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
	}
}

func ptr[T any](v T) *T { return &v }

func (suite *LedgerTestSuite) TestAddStudentDuplicateID() {
	err := suite.ledger.AddStudent(student("s1", "Other", 0))
	assert.ErrorIs(suite.T(), err, core.ErrDuplicateID)
	assert.Len(suite.T(), suite.ledger.Students(), 2)
}

func (suite *LedgerTestSuite) TestAddStudentInvalid() {
	err := suite.ledger.AddStudent(student("s3", " ", 0))
	assert.ErrorIs(suite.T(), err, core.ErrEmptyName)
}

func (suite *LedgerTestSuite) TestUpdateStudentMergesFields() {
	updated, err := suite.ledger.UpdateStudent("s1", StudentPatch{
		Notes:             ptr("prefers mornings"),
		TotalClassesTaken: ptr(3),
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Lin", updated.Name)
	assert.Equal(suite.T(), "prefers mornings", updated.Notes)
	assert.Equal(suite.T(), 3, updated.TotalClassesTaken)
	assert.Equal(suite.T(), 5, updated.Balance, "balance must not change through an update")

	stored, err := suite.ledger.Student("s1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), updated, stored)
}

func (suite *LedgerTestSuite) TestUpdateStudentErrors() {
	_, err := suite.ledger.UpdateStudent("missing", StudentPatch{Name: ptr("x")})
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)

	_, err = suite.ledger.UpdateStudent("s1", StudentPatch{Name: ptr("")})
	assert.ErrorIs(suite.T(), err, core.ErrEmptyName)
	stored, _ := suite.ledger.Student("s1")
	assert.Equal(suite.T(), "Lin", stored.Name, "failed update must not be applied")
}

func (suite *LedgerTestSuite) TestDeleteStudentKeepsDependents() {
	day := core.NewDate(2024, 1, 8)
	require.NoError(suite.T(), suite.ledger.AddSession(session("c1", day, "14:00", "s1", "s2")))
	_, err := suite.ledger.AddPayment(payment("p1", "s1", 10))
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.ledger.DeleteStudent("s1"))

	_, err = suite.ledger.Student("s1")
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)

	sess, err := suite.ledger.Session("c1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"s1", "s2"}, sess.StudentIDs)

	pay, err := suite.ledger.Payment("p1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "s1", pay.StudentID)

	attendees, err := suite.ledger.Attendees("c1")
	require.NoError(suite.T(), err)
	require.Len(suite.T(), attendees, 1)
	assert.Equal(suite.T(), "s2", attendees[0].ID)

	assert.ErrorIs(suite.T(), suite.ledger.DeleteStudent("s1"), core.ErrNotFound)
}

func (suite *LedgerTestSuite) TestAddSessionDeduplicatesAttendees() {
	require.NoError(suite.T(), suite.ledger.AddSession(
		session("c1", core.NewDate(2024, 1, 8), "14:00", "s1", "s2", "s1")))
	sess, err := suite.ledger.Session("c1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"s1", "s2"}, sess.StudentIDs)
}

func (suite *LedgerTestSuite) TestAddSessionEmptyAttendees() {
	err := suite.ledger.AddSession(session("c1", core.NewDate(2024, 1, 8), "14:00"))
	assert.ErrorIs(suite.T(), err, core.ErrEmptyAttendees)
	assert.Empty(suite.T(), suite.ledger.Sessions())
}

func (suite *LedgerTestSuite) TestAddSessionsIsAllOrNothing() {
	day := core.NewDate(2024, 1, 8)
	require.NoError(suite.T(), suite.ledger.AddSession(session("c0", day, "09:00", "s1")))

	err := suite.ledger.AddSessions([]core.ClassSession{
		session("c1", day.AddDays(1), "14:00", "s1"),
		session("c2", day.AddDays(2), "14:00"),
	})
	assert.ErrorIs(suite.T(), err, core.ErrEmptyAttendees)
	assert.Len(suite.T(), suite.ledger.Sessions(), 1)

	err = suite.ledger.AddSessions([]core.ClassSession{
		session("c1", day.AddDays(1), "14:00", "s1"),
		session("c1", day.AddDays(2), "14:00", "s1"),
	})
	assert.ErrorIs(suite.T(), err, core.ErrDuplicateID)
	assert.Len(suite.T(), suite.ledger.Sessions(), 1)

	err = suite.ledger.AddSessions([]core.ClassSession{
		session("c1", day.AddDays(1), "14:00", "s1"),
		session("c0", day.AddDays(2), "14:00", "s1"),
	})
	assert.ErrorIs(suite.T(), err, core.ErrDuplicateID)
	assert.Len(suite.T(), suite.ledger.Sessions(), 1)
}

func (suite *LedgerTestSuite) TestUpdateSession() {
	day := core.NewDate(2024, 1, 8)
	require.NoError(suite.T(), suite.ledger.AddSession(session("c1", day, "14:00", "s1")))

	newDay := core.NewDate(2024, 1, 9)
	updated, err := suite.ledger.UpdateSession("c1", SessionPatch{
		Date:       &newDay,
		StudentIDs: []string{"s2", "s2", "s1"},
		Completed:  ptr(true),
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), newDay, updated.Date)
	assert.Equal(suite.T(), "14:00", updated.StartTime)
	assert.Equal(suite.T(), []string{"s2", "s1"}, updated.StudentIDs)
	assert.True(suite.T(), updated.Completed)

	_, err = suite.ledger.UpdateSession("c1", SessionPatch{StudentIDs: []string{}})
	assert.ErrorIs(suite.T(), err, core.ErrEmptyAttendees)

	_, err = suite.ledger.UpdateSession("c1", SessionPatch{StartTime: ptr("late")})
	assert.ErrorIs(suite.T(), err, core.ErrInvalidClockTime)

	_, err = suite.ledger.UpdateSession("nope", SessionPatch{Completed: ptr(false)})
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)

	stored, err := suite.ledger.Session("c1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), updated, stored)
}

func (suite *LedgerTestSuite) TestDeleteSession() {
	require.NoError(suite.T(), suite.ledger.AddSession(session("c1", core.NewDate(2024, 1, 8), "14:00", "s1")))
	require.NoError(suite.T(), suite.ledger.DeleteSession("c1"))
	assert.Empty(suite.T(), suite.ledger.Sessions())
	assert.ErrorIs(suite.T(), suite.ledger.DeleteSession("c1"), core.ErrNotFound)
	_, err := suite.ledger.Session("c1")
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)
}

func (suite *LedgerTestSuite) TestReturnedSessionsAreCopies() {
	require.NoError(suite.T(), suite.ledger.AddSession(session("c1", core.NewDate(2024, 1, 8), "14:00", "s1")))
	got := suite.ledger.Sessions()
	got[0].StudentIDs[0] = "tampered"

	stored, err := suite.ledger.Session("c1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"s1"}, stored.StudentIDs)
}

func (suite *LedgerTestSuite) TestSessionsOnSortedByStart() {
	day := core.NewDate(2024, 1, 8)
	require.NoError(suite.T(), suite.ledger.AddSessions([]core.ClassSession{
		session("late", day, "16:00", "s1"),
		session("other-day", day.AddDays(1), "08:00", "s1"),
		session("early", day, "09:30", "s2"),
	}))

	got := suite.ledger.SessionsOn(day)
	require.Len(suite.T(), got, 2)
	assert.Equal(suite.T(), "early", got[0].ID)
	assert.Equal(suite.T(), "late", got[1].ID)
	assert.Empty(suite.T(), suite.ledger.SessionsOn(day.AddDays(5)))
}

func (suite *LedgerTestSuite) TestSessionsForStudent() {
	day := core.NewDate(2024, 1, 8)
	require.NoError(suite.T(), suite.ledger.AddSessions([]core.ClassSession{
		session("b", day.AddDays(1), "09:00", "s1"),
		session("a", day, "10:00", "s1", "s2"),
		session("x", day, "08:00", "s2"),
	}))

	got := suite.ledger.SessionsForStudent("s1")
	require.Len(suite.T(), got, 2)
	assert.Equal(suite.T(), "a", got[0].ID)
	assert.Equal(suite.T(), "b", got[1].ID)
}

func (suite *LedgerTestSuite) TestAddPaymentCreditsBalance() {
	updated, err := suite.ledger.AddPayment(payment("p1", "s1", 10))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 15, updated.Balance)

	updated, err = suite.ledger.AddPayment(payment("p2", "s1", -20))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), -5, updated.Balance, "balance may go negative")

	other, _ := suite.ledger.Student("s2")
	assert.Equal(suite.T(), 0, other.Balance)

	assert.Len(suite.T(), suite.ledger.PaymentsForStudent("s1"), 2)
	assert.Empty(suite.T(), suite.ledger.PaymentsForStudent("s2"))
}

func (suite *LedgerTestSuite) TestAddPaymentUnknownStudent() {
	_, err := suite.ledger.AddPayment(payment("p1", "s1", 1))
	require.NoError(suite.T(), err)
	before := suite.ledger.Payments()

	_, err = suite.ledger.AddPayment(payment("p2", "ghost", 10))
	assert.ErrorIs(suite.T(), err, core.ErrUnknownStudent)
	assert.Equal(suite.T(), before, suite.ledger.Payments())
}

func (suite *LedgerTestSuite) TestAddPaymentDuplicateID() {
	_, err := suite.ledger.AddPayment(payment("p1", "s1", 1))
	require.NoError(suite.T(), err)
	_, err = suite.ledger.AddPayment(payment("p1", "s1", 1))
	assert.ErrorIs(suite.T(), err, core.ErrDuplicateID)

	s, _ := suite.ledger.Student("s1")
	assert.Equal(suite.T(), 6, s.Balance)
}

func (suite *LedgerTestSuite) TestSnapshotRoundTrip() {
	require.NoError(suite.T(), suite.ledger.AddSession(session("c1", core.NewDate(2024, 1, 8), "14:00", "s1", "s2")))
	_, err := suite.ledger.AddPayment(core.Payment{
		ID:           "p1",
		StudentID:    "s2",
		Amount:       core.Money{Cents: 150050},
		ClassesAdded: 10,
		Date:         time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC),
		Note:         "cash",
	})
	require.NoError(suite.T(), err)

	snap := suite.ledger.Snapshot()
	b, err := core.EncodeSnapshot(snap)
	require.NoError(suite.T(), err)
	decoded, err := core.DecodeSnapshot(b)
	require.NoError(suite.T(), err)

	restored := FromSnapshot(decoded)
	assert.Equal(suite.T(), snap, restored.Snapshot())
}

func (suite *LedgerTestSuite) TestRestoreReplacesState() {
	suite.ledger.Restore(core.Snapshot{Students: []core.Student{student("s9", "Zhao", 2)}})
	got := suite.ledger.Students()
	require.Len(suite.T(), got, 1)
	assert.Equal(suite.T(), "s9", got[0].ID)
	assert.Empty(suite.T(), suite.ledger.Sessions())
	assert.Empty(suite.T(), suite.ledger.Payments())
}

func (suite *LedgerTestSuite) TestPaymentDatedNowSurvivesRoundTrip() {
	_, err := suite.ledger.AddPayment(core.Payment{ID: "p1", StudentID: "s1", ClassesAdded: 1, Date: time.Now()})
	require.NoError(suite.T(), err)

	snap := suite.ledger.Snapshot()
	b, err := core.EncodeSnapshot(snap)
	require.NoError(suite.T(), err)
	decoded, err := core.DecodeSnapshot(b)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), snap, decoded)

	stored, err := suite.ledger.Payment("p1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), time.UTC, stored.Date.Location())
}

func (suite *LedgerTestSuite) TestRestoreNormalizesPaymentDates() {
	zone := time.FixedZone("CST", 8*3600)
	suite.ledger.Restore(core.Snapshot{
		Students: []core.Student{student("s1", "Lin", 1)},
		Payments: []core.Payment{{ID: "p1", StudentID: "s1", ClassesAdded: 1, Date: time.Date(2024, 1, 2, 18, 0, 0, 0, zone)}},
	})
	p, err := suite.ledger.Payment("p1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), p.Date)
}

func (suite *LedgerTestSuite) TestRestoreDeduplicatesAttendees() {
	b := []byte(`{"state":{"students":[],"sessions":[{"id":"c1","date":"2024-01-08","startTime":"14:00","endTime":"16:00","studentIds":["a","a","b"],"completed":false}],"payments":[]},"version":0}`)
	snap, err := core.DecodeSnapshot(b)
	require.NoError(suite.T(), err)

	suite.ledger.Restore(snap)
	sess, err := suite.ledger.Session("c1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"a", "b"}, sess.StudentIDs)

	suite.ledger.Restore(core.Snapshot{Sessions: []core.ClassSession{
		{ID: "c2", Date: core.NewDate(2024, 1, 9), StartTime: "09:00", EndTime: "10:00", StudentIDs: []string{"x", "x"}},
	}})
	sess, err = suite.ledger.Session("c2")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"x"}, sess.StudentIDs)
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func TestEmptySnapshotRoundTrip(t *testing.T) {
	snap := New().Snapshot()
	b, err := core.EncodeSnapshot(snap)
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":{"students":[],"sessions":[],"payments":[]},"version":0}`, string(b))

	decoded, err := core.DecodeSnapshot(b)
	require.NoError(t, err)
	assert.Equal(t, snap, decoded)
}

func TestBalanceEqualsInitialPlusPayments(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		initial := rng.Intn(21) - 10
		deltas := make([]int, 1+rng.Intn(30))
		sum := 0
		for i := range deltas {
			deltas[i] = rng.Intn(41) - 20
			sum += deltas[i]
		}

		// Apply in generated order and in a shuffled order.
		orders := [][]int{deltas, append([]int(nil), deltas...)}
		rng.Shuffle(len(orders[1]), func(i, j int) { orders[1][i], orders[1][j] = orders[1][j], orders[1][i] })

		for _, order := range orders {
			l := New()
			require.NoError(t, l.AddStudent(student("s1", "Lin", initial)))
			for i, d := range order {
				_, err := l.AddPayment(payment(paymentID(i), "s1", d))
				require.NoError(t, err)
			}
			s, err := l.Student("s1")
			require.NoError(t, err)
			assert.Equal(t, initial+sum, s.Balance, "round %d", round)
		}
	}
}

func paymentID(i int) string {
	return "p" + strconv.Itoa(i)
}
