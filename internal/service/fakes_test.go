package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// noopTx runs fn inline and records the lock keys it was asked for.
type noopTx struct {
	mu    sync.Mutex
	locks []string
}

func (t *noopTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

func (t *noopTx) Lock(ctx context.Context, key string) error {
	t.mu.Lock()
	t.locks = append(t.locks, key)
	t.mu.Unlock()
	return nil
}

type recordedEvent struct {
	Event string
	Data  interface{}
}

type fakePublisher struct {
	events []recordedEvent
}

func (p *fakePublisher) Publish(event string, data interface{}) {
	p.events = append(p.events, recordedEvent{event, data})
}

type fakeActivityRepo struct {
	repository.ActivityRepository
	entries []model.ActivityLog
	failLog error
}

func (r *fakeActivityRepo) Log(ctx context.Context, entry *model.ActivityLog) error {
	if r.failLog != nil {
		return r.failLog
	}
	entry.ID = uuid.New()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeActivityRepo) types() []string {
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.ActivityType)
	}
	return out
}

type fakeStaffRepo struct {
	repository.StaffRepository
	staff []model.Staff
}

func (r *fakeStaffRepo) FindByPSNAndSex(ctx context.Context, psn, sex string) (*model.Staff, error) {
	for i := range r.staff {
		if r.staff[i].PSN == psn && strings.EqualFold(r.staff[i].Sex, sex) {
			s := r.staff[i]
			return &s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeStaffRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	for i := range r.staff {
		if r.staff[i].ID == id {
			s := r.staff[i]
			return &s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeAttendanceRepo struct {
	repository.AttendanceRepository
	codes   []model.ApprovalCode
	records []model.AttendanceRecord
}

func (r *fakeAttendanceRepo) DeactivateCodes(ctx context.Context) (int64, error) {
	var n int64
	for i := range r.codes {
		if r.codes[i].IsActive {
			r.codes[i].IsActive = false
			n++
		}
	}
	return n, nil
}

func (r *fakeAttendanceRepo) CreateCode(ctx context.Context, code *model.ApprovalCode) error {
	code.ID = uuid.New()
	r.codes = append(r.codes, *code)
	return nil
}

func (r *fakeAttendanceRepo) FindUsableCode(ctx context.Context, code string, now time.Time) (*model.ApprovalCode, error) {
	for i := range r.codes {
		if r.codes[i].Code == code && usableAt(r.codes[i], now) {
			c := r.codes[i]
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAttendanceRepo) FindActiveCode(ctx context.Context, now time.Time) (*model.ApprovalCode, error) {
	for i := len(r.codes) - 1; i >= 0; i-- {
		if usableAt(r.codes[i], now) {
			c := r.codes[i]
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAttendanceRepo) activeCount() int {
	n := 0
	for _, c := range r.codes {
		if c.IsActive {
			n++
		}
	}
	return n
}

func (r *fakeAttendanceRepo) FindOpenRecord(ctx context.Context, psn string) (*model.AttendanceRecord, error) {
	for i := range r.records {
		if r.records[i].PSN == psn && r.records[i].Status == model.AttendanceClockedIn {
			rec := r.records[i]
			return &rec, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAttendanceRepo) CreateRecord(ctx context.Context, record *model.AttendanceRecord) error {
	record.ID = uuid.New()
	r.records = append(r.records, *record)
	return nil
}

func (r *fakeAttendanceRepo) UpdateRecord(ctx context.Context, record *model.AttendanceRecord) error {
	for i := range r.records {
		if r.records[i].ID == record.ID {
			r.records[i] = *record
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeAttendanceRepo) ListRecords(ctx context.Context, filter repository.AttendanceFilter) ([]model.AttendanceRecord, int64, error) {
	return r.records, int64(len(r.records)), nil
}

func (r *fakeAttendanceRepo) CountRecords(ctx context.Context, from, to *time.Time, status string) (int64, error) {
	var n int64
	for _, rec := range r.records {
		if status != "" && rec.Status != status {
			continue
		}
		if from != nil && rec.ClockInTime.Before(*from) {
			continue
		}
		if to != nil && !rec.ClockInTime.Before(*to) {
			continue
		}
		n++
	}
	return n, nil
}

func (r *fakeAttendanceRepo) AverageHours(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	sum, n := decimal.Zero, 0
	for _, rec := range r.records {
		if rec.HoursWorked.Valid && !rec.ClockInTime.Before(from) && rec.ClockInTime.Before(to) {
			sum = sum.Add(rec.HoursWorked.Decimal)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero, nil
	}
	return sum.Div(decimal.NewFromInt(int64(n))), nil
}

// clock is a settable time source.
type clock struct{ t time.Time }

func newClock(t time.Time) *clock { return &clock{t: t} }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func actorWith(role string) policy.Actor {
	return policy.Actor{ID: uuid.New(), Role: role, Status: model.UserStatusApproved}
}

func phcActor(role string, phc uuid.UUID) policy.Actor {
	a := actorWith(role)
	a.PHCID = &phc
	return a
}

// usableAt mirrors the repository's usable-code predicate: active and not yet expired.
func usableAt(c model.ApprovalCode, now time.Time) bool {
	return c.IsActive && now.Before(c.ExpiresAt)
}
