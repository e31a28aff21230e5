package schedtx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kdantuono/money-wise-sub010/internal/models"
	"github.com/kdantuono/money-wise-sub010/internal/recur"
)

// memStore is an in-memory Store with the same contract as the Postgres
// repository: copies in and out, version-guarded updates, user scoping.
type memStore struct {
	txs map[string]*models.ScheduledTransaction
}

func newMemStore() *memStore {
	return &memStore{txs: make(map[string]*models.ScheduledTransaction)}
}

func clone(tx *models.ScheduledTransaction) *models.ScheduledTransaction {
	c := *tx
	c.LinkedTransactionIDs = append([]string(nil), tx.LinkedTransactionIDs...)
	return &c
}

func (m *memStore) Create(_ context.Context, tx *models.ScheduledTransaction) error {
	m.txs[tx.ID] = clone(tx)
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string, userID int64) (*models.ScheduledTransaction, error) {
	tx, ok := m.txs[id]
	if !ok || tx.UserID != userID {
		return nil, ErrNotFound
	}
	return clone(tx), nil
}

func (m *memStore) List(_ context.Context, userID int64, filter Filter) ([]*models.ScheduledTransaction, error) {
	var out []*models.ScheduledTransaction
	for _, tx := range m.txs {
		if tx.UserID != userID {
			continue
		}
		if filter.Status != nil && tx.Status != *filter.Status {
			continue
		}
		if filter.Type != nil && tx.Type != *filter.Type {
			continue
		}
		if filter.FlowType != nil && tx.FlowType != *filter.FlowType {
			continue
		}
		out = append(out, clone(tx))
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, tx *models.ScheduledTransaction) error {
	stored, ok := m.txs[tx.ID]
	if !ok || stored.UserID != tx.UserID {
		return ErrNotFound
	}
	if stored.Version != tx.Version {
		return ErrConflict
	}
	c := clone(tx)
	c.Version++
	m.txs[tx.ID] = c
	tx.Version = c.Version
	return nil
}

func (m *memStore) Delete(_ context.Context, id string, userID int64) error {
	tx, ok := m.txs[id]
	if !ok || tx.UserID != userID {
		return ErrNotFound
	}
	delete(m.txs, id)
	return nil
}

func (m *memStore) ExistsForLiability(_ context.Context, userID int64, liabilityID string) (bool, error) {
	for _, tx := range m.txs {
		if tx.UserID == userID && tx.LiabilityID != nil && *tx.LiabilityID == liabilityID {
			return true, nil
		}
	}
	return false, nil
}

type memLiabilities struct {
	items []*models.Liability
}

func (m *memLiabilities) Create(_ context.Context, l *models.Liability) error {
	c := *l
	m.items = append(m.items, &c)
	return nil
}

func (m *memLiabilities) ListByUserID(_ context.Context, userID int64) ([]*models.Liability, error) {
	var out []*models.Liability
	for _, l := range m.items {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func intPtr(n int) *int { return &n }

func newTestService(t *testing.T, now string) (*Service, *memStore, *memLiabilities) {
	t.Helper()
	store := newMemStore()
	liabilities := &memLiabilities{}
	svc := New(store, liabilities, zerolog.Nop())
	fixed := mustDate(t, now)
	svc.WithClock(func() time.Time { return fixed })
	return svc, store, liabilities
}

const userID = int64(42)

func TestCreate(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, "2024-06-01")
	ctx := context.Background()

	start := mustDate(t, "2024-06-10")
	tx, err := svc.Create(ctx, userID, CreateInput{
		Amount:      120,
		Description: "Gym membership",
		Rule:        recur.Rule{Frequency: recur.Monthly, Interval: 1, DayOfMonth: intPtr(10)},
		SeriesStart: start,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if tx.Status != models.StatusActive {
		t.Fatalf("Status = %s, want active", tx.Status)
	}
	if !tx.NextDueDate.Equal(start) {
		t.Fatalf("NextDueDate = %s, want series start", tx.NextDueDate.Format("2006-01-02"))
	}
	if tx.OccurrenceCount != 0 {
		t.Fatalf("OccurrenceCount = %d, want 0", tx.OccurrenceCount)
	}
	if tx.ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestCreateRejectsInvalidRule(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, "2024-06-01")

	_, err := svc.Create(context.Background(), userID, CreateInput{
		Rule:        recur.Rule{Frequency: recur.Daily, Interval: 0},
		SeriesStart: mustDate(t, "2024-06-10"),
	})
	if !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("err = %v, want ErrInvalidRule", err)
	}
}

func TestSkipAdvancesNextDueDate(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, "2024-06-01")
	ctx := context.Background()

	tx, err := svc.Create(ctx, userID, CreateInput{
		Rule:        recur.Rule{Frequency: recur.Daily, Interval: 1},
		SeriesStart: mustDate(t, "2024-06-10"),
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	got, err := svc.Skip(ctx, tx.ID, userID)
	if err != nil {
		t.Fatalf("Skip error: %v", err)
	}
	if got.Status != models.StatusActive {
		t.Fatalf("Status = %s, want active", got.Status)
	}
	if want := mustDate(t, "2024-06-11"); !got.NextDueDate.Equal(want) {
		t.Fatalf("NextDueDate = %s, want %s", got.NextDueDate.Format("2006-01-02"), want.Format("2006-01-02"))
	}
	if got.OccurrenceCount != 1 {
		t.Fatalf("OccurrenceCount = %d, want 1", got.OccurrenceCount)
	}
}

func TestSkipLastOccurrenceCompletes(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, "2024-06-01")
	ctx := context.Background()

	start := mustDate(t, "2024-06-10")
	tx, err := svc.Create(ctx, userID, CreateInput{
		Rule:        recur.Rule{Frequency: recur.Daily, Interval: 1, EndCount: intPtr(1)},
		SeriesStart: start,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	got, err := svc.Skip(ctx, tx.ID, userID)
	if err != nil {
		t.Fatalf("Skip error: %v", err)
	}
	if got.Status != models.StatusCompleted {
		t.Fatalf("Status = %s, want completed", got.Status)
	}
	if !got.NextDueDate.Equal(start) {
		t.Fatalf("NextDueDate moved to %s, want frozen at %s",
			got.NextDueDate.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	// Terminal records reject further lifecycle commands.
	if _, err := svc.Skip(ctx, tx.ID, userID); !errors.Is(err, ErrNotActive) {
		t.Fatalf("Skip on completed: err = %v, want ErrNotActive", err)
	}
}

func TestCompleteLinksTransaction(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, "2024-06-01")
	ctx := context.Background()

	tx, err := svc.Create(ctx, userID, CreateInput{
		Rule:        recur.Rule{Frequency: recur.Monthly, Interval: 1},
		SeriesStart: mustDate(t, "2024-06-10"),
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	ledgerID := "ledger-tx-1"
	got, err := svc.Complete(ctx, tx.ID, userID, &ledgerID)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if len(got.LinkedTransactionIDs) != 1 || got.LinkedTransactionIDs[0] != ledgerID {
		t.Fatalf("LinkedTransactionIDs = %v, want [%s]", got.LinkedTransactionIDs, ledgerID)
	}
	if want := mustDate(t, "2024-07-10"); !got.NextDueDate.Equal(want) {
		t.Fatalf("NextDueDate = %s, want %s", got.NextDueDate.Format("2006-01-02"), want.Format("2006-01-02"))
	}
}

func TestLifecycleCommandsOnForeignRecord(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, "2024-06-01")
	ctx := context.Background()

	tx, err := svc.Create(ctx, userID, CreateInput{
		Rule:        recur.Rule{Frequency: recur.Daily, Interval: 1},
		SeriesStart: mustDate(t, "2024-06-10"),
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := svc.Skip(ctx, tx.ID, userID+1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign skip: err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(ctx, "no-such-id", userID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id: err = %v, want ErrNotFound", err)
	}
}

func TestUpdateCancelIsTerminal(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, "2024-06-01")
	ctx := context.Background()

	tx, err := svc.Create(ctx, userID, CreateInput{
		Rule:        recur.Rule{Frequency: recur.Daily, Interval: 1},
		SeriesStart: mustDate(t, "2024-06-10"),
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	got, err := svc.Update(ctx, tx.ID, userID, UpdateInput{Cancel: true})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if got.Status != models.StatusCancelled {
		t.Fatalf("Status = %s, want cancelled", got.Status)
	}
	if _, err := svc.Skip(ctx, tx.ID, userID); !errors.Is(err, ErrNotActive) {
		t.Fatalf("Skip on cancelled: err = %v, want ErrNotActive", err)
	}
	if _, err := svc.Update(ctx, tx.ID, userID, UpdateInput{Cancel: true}); !errors.Is(err, ErrNotActive) {
		t.Fatalf("Update on cancelled: err = %v, want ErrNotActive", err)
	}
}

func TestUpdateRevalidatesRule(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, "2024-06-01")
	ctx := context.Background()

	tx, err := svc.Create(ctx, userID, CreateInput{
		Rule:        recur.Rule{Frequency: recur.Daily, Interval: 1},
		SeriesStart: mustDate(t, "2024-06-10"),
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	bad := recur.Rule{Frequency: recur.Weekly, Interval: 1, DayOfWeek: intPtr(9)}
	if _, err := svc.Update(ctx, tx.ID, userID, UpdateInput{Rule: &bad}); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("err = %v, want ErrInvalidRule", err)
	}
}

func TestUpcomingWindow(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, "2024-06-01")
	ctx := context.Background()

	mk := func(desc, due string) *models.ScheduledTransaction {
		tx, err := svc.Create(ctx, userID, CreateInput{
			Description: desc,
			Rule:        recur.Rule{Frequency: recur.Monthly, Interval: 1},
			SeriesStart: mustDate(t, due),
		})
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		return tx
	}

	inWindow := mk("rent", "2024-06-05")
	mk("insurance", "2024-08-20") // past the window
	cancelled := mk("old sub", "2024-06-02")
	if _, err := svc.Update(ctx, cancelled.ID, userID, UpdateInput{Cancel: true}); err != nil {
		t.Fatalf("cancel error: %v", err)
	}

	got, err := svc.Upcoming(ctx, userID, 30)
	if err != nil {
		t.Fatalf("Upcoming error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].ID != inWindow.ID {
		t.Fatalf("got %s, want %s", got[0].Description, inWindow.Description)
	}
	if got[0].DaysUntilDue != 4 {
		t.Fatalf("DaysUntilDue = %d, want 4", got[0].DaysUntilDue)
	}
	if got[0].RecurrenceLabel != "Monthly" {
		t.Fatalf("RecurrenceLabel = %q, want Monthly", got[0].RecurrenceLabel)
	}
}

func TestCalendarEvents(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, "2024-06-01")
	ctx := context.Background()

	_, err := svc.Create(ctx, userID, CreateInput{
		Description: "salary",
		Type:        models.TransactionTypeIncome,
		Amount:      3000,
		Rule:        recur.Rule{Frequency: recur.Monthly, Interval: 1, DayOfMonth: intPtr(recur.LastDayOfMonth)},
		SeriesStart: mustDate(t, "2024-06-30"),
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	_, err = svc.Create(ctx, userID, CreateInput{
		Description: "gym",
		Amount:      40,
		Rule:        recur.Rule{Frequency: recur.Monthly, Interval: 1, DayOfMonth: intPtr(10)},
		SeriesStart: mustDate(t, "2024-06-10"),
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	events, err := svc.CalendarEvents(ctx, userID, mustDate(t, "2024-06-01"), mustDate(t, "2024-08-31"))
	if err != nil {
		t.Fatalf("CalendarEvents error: %v", err)
	}

	want := []struct {
		date  string
		title string
	}{
		{"2024-06-10", "gym"},
		{"2024-06-30", "salary"},
		{"2024-07-10", "gym"},
		{"2024-07-31", "salary"},
		{"2024-08-10", "gym"},
		{"2024-08-31", "salary"},
	}
	if len(events) != len(want) {
		t.Fatalf("len = %d, want %d", len(events), len(want))
	}
	for i, w := range want {
		if !events[i].Date.Equal(mustDate(t, w.date)) || events[i].Title != w.title {
			t.Fatalf("event %d = %s %q, want %s %q", i,
				events[i].Date.Format("2006-01-02"), events[i].Title, w.date, w.title)
		}
	}
}

func TestAddLiability(t *testing.T) {
	t.Parallel()
	svc, _, liabilities := newTestService(t, "2024-06-20")
	ctx := context.Background()

	l, err := svc.AddLiability(ctx, userID, AddLiabilityInput{
		Name:          "Car loan",
		PaymentAmount: 310,
		DueDayOfMonth: 15,
	})
	if err != nil {
		t.Fatalf("AddLiability error: %v", err)
	}
	if l.ID == "" {
		t.Fatal("expected generated id")
	}
	if l.UserID != userID {
		t.Fatalf("UserID = %d, want %d", l.UserID, userID)
	}
	if len(liabilities.items) != 1 {
		t.Fatalf("stored %d liabilities, want 1", len(liabilities.items))
	}

	listed, err := svc.Liabilities(ctx, userID)
	if err != nil {
		t.Fatalf("Liabilities error: %v", err)
	}
	if len(listed) != 1 || listed[0].Name != "Car loan" {
		t.Fatalf("listed = %v", listed)
	}

	// Seed becomes a scheduled transaction through generation.
	created, err := svc.GenerateFromLiabilities(ctx, userID)
	if err != nil {
		t.Fatalf("GenerateFromLiabilities error: %v", err)
	}
	if len(created) != 1 || *created[0].LiabilityID != l.ID {
		t.Fatalf("created = %v", created)
	}
}

func TestAddLiabilityRejectsBadDueDay(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, "2024-06-20")

	_, err := svc.AddLiability(context.Background(), userID, AddLiabilityInput{
		Name:          "Broken import",
		PaymentAmount: 10,
		DueDayOfMonth: 32,
	})
	if !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("err = %v, want ErrInvalidRule", err)
	}
}

func TestGenerateFromLiabilities(t *testing.T) {
	t.Parallel()
	svc, _, liabilities := newTestService(t, "2024-06-20")
	ctx := context.Background()

	liabilities.items = []*models.Liability{
		{ID: "liab-1", UserID: userID, Name: "Car loan", PaymentAmount: 310, DueDayOfMonth: 15},
		{ID: "liab-2", UserID: userID, Name: "Mortgage", PaymentAmount: 1200, DueDayOfMonth: 28},
		{ID: "liab-3", UserID: 99, Name: "Someone else's loan", PaymentAmount: 50, DueDayOfMonth: 1},
	}

	created, err := svc.GenerateFromLiabilities(ctx, userID)
	if err != nil {
		t.Fatalf("GenerateFromLiabilities error: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d, want 2", len(created))
	}

	byLiability := make(map[string]*models.ScheduledTransaction)
	for _, tx := range created {
		byLiability[*tx.LiabilityID] = tx
	}
	// Due day 15 has already passed on Jun 20; first due rolls to July.
	if want := mustDate(t, "2024-07-15"); !byLiability["liab-1"].NextDueDate.Equal(want) {
		t.Fatalf("liab-1 first due = %s, want %s",
			byLiability["liab-1"].NextDueDate.Format("2006-01-02"), want.Format("2006-01-02"))
	}
	// Due day 28 is still ahead in June.
	if want := mustDate(t, "2024-06-28"); !byLiability["liab-2"].NextDueDate.Equal(want) {
		t.Fatalf("liab-2 first due = %s, want %s",
			byLiability["liab-2"].NextDueDate.Format("2006-01-02"), want.Format("2006-01-02"))
	}

	// Idempotent: a second run generates nothing new.
	again, err := svc.GenerateFromLiabilities(ctx, userID)
	if err != nil {
		t.Fatalf("second GenerateFromLiabilities error: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second run created %d, want 0", len(again))
	}
}

func TestGenerateSkipsUnusableDueDay(t *testing.T) {
	t.Parallel()
	svc, _, liabilities := newTestService(t, "2024-06-20")
	liabilities.items = []*models.Liability{
		{ID: "liab-bad", UserID: userID, Name: "Broken import", PaymentAmount: 10, DueDayOfMonth: 0},
		{ID: "liab-last", UserID: userID, Name: "Credit card", PaymentAmount: 200, DueDayOfMonth: recur.LastDayOfMonth},
	}

	created, err := svc.GenerateFromLiabilities(context.Background(), userID)
	if err != nil {
		t.Fatalf("GenerateFromLiabilities error: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created %d, want 1", len(created))
	}
	if want := mustDate(t, "2024-06-30"); !created[0].NextDueDate.Equal(want) {
		t.Fatalf("first due = %s, want %s", created[0].NextDueDate.Format("2006-01-02"), want.Format("2006-01-02"))
	}
}
