package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/repository"
	ws "phcportal/internal/websocket"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const approvalCodeLockKey = "attendance:approval-code"

var approvalCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// --- DTOs ---

type StaffIdentityRequest struct {
	PSN    string `json:"psn" binding:"required,psn"`
	Gender string `json:"gender" binding:"required"`
}

type ClockRequest struct {
	PSN    string `json:"psn" binding:"required,psn"`
	Gender string `json:"gender" binding:"required"`
	Code   string `json:"code" binding:"required"`
}

type ApprovalCodeResponse struct {
	Code      string `json:"code"`
	ExpiresAt string `json:"expires_at"`
	ExpiresIn int    `json:"expires_in"` // seconds left
}

type AttendanceRecordResponse struct {
	ID              string  `json:"id"`
	StaffID         string  `json:"staff_id"`
	PSN             string  `json:"psn"`
	StaffName       string  `json:"staff_name"`
	Gender          string  `json:"gender"`
	StaffPhone      string  `json:"staff_phone"`
	ClockInTime     string  `json:"clock_in_time"`
	ClockOutTime    *string `json:"clock_out_time"`
	Status          string  `json:"status"`
	ApprovalCodeIn  string  `json:"approval_code_in"`
	ApprovalCodeOut *string `json:"approval_code_out"`
	HoursWorked     *string `json:"hours_worked"`
}

type StaffVerificationResponse struct {
	StaffID     string                    `json:"staff_id"`
	Name        string                    `json:"name"`
	PSN         string                    `json:"psn"`
	Gender      string                    `json:"gender"`
	OpenRecord  *AttendanceRecordResponse `json:"open_record"`
	CanClockIn  bool                      `json:"can_clock_in"`
	CanClockOut bool                      `json:"can_clock_out"`
}

type AttendanceListFilter struct {
	From   *time.Time
	To     *time.Time
	Status string
	Search string
	Page   Page
}

type AttendanceSummary struct {
	Date           string `json:"date"`
	ClockedInNow   int64  `json:"clocked_in_now"`
	TotalToday     int64  `json:"total_today"`
	CompletedToday int64  `json:"completed_today"`
	AverageHours   string `json:"average_hours"`
}

// --- Interface ---

type AttendanceService interface {
	GenerateCode(ctx context.Context, actor policy.Actor) (*ApprovalCodeResponse, error)
	ActiveCode(ctx context.Context, actor policy.Actor) (*ApprovalCodeResponse, error)
	VerifyStaff(ctx context.Context, req StaffIdentityRequest) (*StaffVerificationResponse, error)
	ClockIn(ctx context.Context, req ClockRequest) (*AttendanceRecordResponse, error)
	ClockOut(ctx context.Context, req ClockRequest) (*AttendanceRecordResponse, error)
	ListRecords(ctx context.Context, actor policy.Actor, filter AttendanceListFilter) ([]AttendanceRecordResponse, int64, error)
	Summary(ctx context.Context, actor policy.Actor, day time.Time) (*AttendanceSummary, error)
	ExportRecords(ctx context.Context, actor policy.Actor, filter AttendanceListFilter) ([]byte, error)
}

type attendanceService struct {
	repo         repository.AttendanceRepository
	staffRepo    repository.StaffRepository
	activityRepo repository.ActivityRepository
	txManager    repository.TransactionManager
	policy       *policy.Policy
	events       EventPublisher
	codeTTL      time.Duration

	now     func() time.Time
	newCode func() (string, error)
}

func NewAttendanceService(
	repo repository.AttendanceRepository,
	staffRepo repository.StaffRepository,
	activityRepo repository.ActivityRepository,
	txManager repository.TransactionManager,
	pol *policy.Policy,
	events EventPublisher,
	codeTTL time.Duration,
) AttendanceService {
	if codeTTL <= 0 {
		codeTTL = 30 * time.Second
	}
	return &attendanceService{
		repo:         repo,
		staffRepo:    staffRepo,
		activityRepo: activityRepo,
		txManager:    txManager,
		policy:       pol,
		events:       publisherOrNop(events),
		codeTTL:      codeTTL,
		now:          time.Now,
		newCode:      randomApprovalCode,
	}
}

// randomApprovalCode draws a uniform code in 100000..999999.
func randomApprovalCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

// --- Implementation ---

func (s *attendanceService) GenerateCode(ctx context.Context, actor policy.Actor) (*ApprovalCodeResponse, error) {
	if !s.policy.CanMutate(actor, policy.ResourceAttendance, nil) {
		return nil, forbidden("Access denied: you cannot generate attendance codes")
	}

	code, err := s.newCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	now := s.now()
	ac := &model.ApprovalCode{
		Code:        code,
		GeneratedBy: actor.ID,
		ExpiresAt:   now.Add(s.codeTTL),
		IsActive:    true,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.txManager.Lock(txCtx, approvalCodeLockKey); err != nil {
			return fmt.Errorf("failed to lock approval codes: %w", err)
		}
		deactivated, err := s.repo.DeactivateCodes(txCtx)
		if err != nil {
			return fmt.Errorf("failed to deactivate codes: %w", err)
		}
		if err := s.repo.CreateCode(txCtx, ac); err != nil {
			return fmt.Errorf("failed to save code: %w", err)
		}
		return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), model.ActivityCodeGenerate,
			"Generated attendance approval code", map[string]interface{}{
				"expires_at":  formatTime(ac.ExpiresAt),
				"deactivated": deactivated,
			})
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ws.EventCodeGenerated, map[string]interface{}{
		"generated_by": actor.ID.String(),
		"expires_at":   formatTime(ac.ExpiresAt),
	})

	return s.codeResponse(ac, now), nil
}

func (s *attendanceService) ActiveCode(ctx context.Context, actor policy.Actor) (*ApprovalCodeResponse, error) {
	if !s.policy.CanMutate(actor, policy.ResourceAttendance, nil) {
		return nil, forbidden("Access denied: you cannot view attendance codes")
	}
	now := s.now()
	ac, err := s.repo.FindActiveCode(ctx, now)
	if err != nil {
		return nil, lookupErr(err, "active code")
	}
	return s.codeResponse(ac, now), nil
}

func (s *attendanceService) codeResponse(ac *model.ApprovalCode, now time.Time) *ApprovalCodeResponse {
	left := int(ac.ExpiresAt.Sub(now).Round(time.Second) / time.Second)
	if left < 0 {
		left = 0
	}
	return &ApprovalCodeResponse{Code: ac.Code, ExpiresAt: formatTime(ac.ExpiresAt), ExpiresIn: left}
}

func (s *attendanceService) findStaff(ctx context.Context, psn, gender string) (*model.Staff, error) {
	psn = strings.TrimSpace(psn)
	gender = strings.TrimSpace(gender)
	if psn == "" || gender == "" {
		return nil, invalid("PSN and gender are required")
	}
	staff, err := s.staffRepo.FindByPSNAndSex(ctx, psn, gender)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStaffNotFound
		}
		return nil, fmt.Errorf("failed to look up staff: %w", err)
	}
	return staff, nil
}

func (s *attendanceService) VerifyStaff(ctx context.Context, req StaffIdentityRequest) (*StaffVerificationResponse, error) {
	staff, err := s.findStaff(ctx, req.PSN, req.Gender)
	if err != nil {
		return nil, err
	}

	res := &StaffVerificationResponse{
		StaffID: staff.ID.String(),
		Name:    staff.Name,
		PSN:     staff.PSN,
		Gender:  staff.Sex,
	}

	open, err := s.repo.FindOpenRecord(ctx, staff.PSN)
	switch {
	case err == nil:
		r := toAttendanceResponse(*open)
		res.OpenRecord = &r
		res.CanClockOut = true
	case errors.Is(err, gorm.ErrRecordNotFound):
		res.CanClockIn = true
	default:
		return nil, fmt.Errorf("failed to load attendance state: %w", err)
	}
	return res, nil
}

// checkCode validates format and liveness. Wrong and expired codes are indistinguishable.
func (s *attendanceService) checkCode(ctx context.Context, code string, now time.Time) error {
	if !approvalCodePattern.MatchString(code) {
		return invalid("Approval code must be 6 digits")
	}
	if _, err := s.repo.FindUsableCode(ctx, code, now); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidCode
		}
		return fmt.Errorf("failed to check code: %w", err)
	}
	return nil
}

// ClockIn opens a record for the staff member. The open-record check runs before the code
// is looked at.
func (s *attendanceService) ClockIn(ctx context.Context, req ClockRequest) (*AttendanceRecordResponse, error) {
	staff, err := s.findStaff(ctx, req.PSN, req.Gender)
	if err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.Code)

	var record model.AttendanceRecord
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.txManager.Lock(txCtx, "attendance:psn:"+staff.PSN); err != nil {
			return fmt.Errorf("failed to lock attendance: %w", err)
		}

		if _, err := s.repo.FindOpenRecord(txCtx, staff.PSN); err == nil {
			return ErrAlreadyClockedIn
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load attendance state: %w", err)
		}

		now := s.now()
		if err := s.checkCode(txCtx, code, now); err != nil {
			return err
		}

		record = model.AttendanceRecord{
			StaffID:        staff.ID,
			PSN:            staff.PSN,
			StaffName:      staff.Name,
			Gender:         staff.Sex,
			StaffPhone:     staff.MobileNumber,
			ClockInTime:    now,
			Status:         model.AttendanceClockedIn,
			ApprovalCodeIn: code,
		}
		if err := s.repo.CreateRecord(txCtx, &record); err != nil {
			return fmt.Errorf("failed to save attendance: %w", err)
		}
		return recordActivity(txCtx, s.activityRepo, nil, model.ActivityClockIn,
			staff.Name+" clocked in", map[string]interface{}{"psn": staff.PSN, "record_id": record.ID.String()})
	})
	if err != nil {
		return nil, err
	}

	res := toAttendanceResponse(record)
	s.events.Publish(ws.EventClockIn, res)
	return &res, nil
}

// ClockOut closes the staff member's open record and stores the hours worked.
func (s *attendanceService) ClockOut(ctx context.Context, req ClockRequest) (*AttendanceRecordResponse, error) {
	staff, err := s.findStaff(ctx, req.PSN, req.Gender)
	if err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.Code)

	var record *model.AttendanceRecord
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.txManager.Lock(txCtx, "attendance:psn:"+staff.PSN); err != nil {
			return fmt.Errorf("failed to lock attendance: %w", err)
		}

		open, err := s.repo.FindOpenRecord(txCtx, staff.PSN)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotClockedIn
		}
		if err != nil {
			return fmt.Errorf("failed to load attendance state: %w", err)
		}

		now := s.now()
		if err := s.checkCode(txCtx, code, now); err != nil {
			return err
		}

		hours := decimal.NewFromFloat(now.Sub(open.ClockInTime).Hours()).Round(2)
		if hours.IsNegative() {
			hours = decimal.Zero
		}
		open.ClockOutTime = &now
		open.ApprovalCodeOut = &code
		open.Status = model.AttendanceClockedOut
		open.HoursWorked = decimal.NullDecimal{Decimal: hours, Valid: true}
		if err := s.repo.UpdateRecord(txCtx, open); err != nil {
			return fmt.Errorf("failed to save attendance: %w", err)
		}
		record = open
		return recordActivity(txCtx, s.activityRepo, nil, model.ActivityClockOut,
			staff.Name+" clocked out", map[string]interface{}{
				"psn":          staff.PSN,
				"record_id":    open.ID.String(),
				"hours_worked": hours.StringFixed(2),
			})
	})
	if err != nil {
		return nil, err
	}

	res := toAttendanceResponse(*record)
	s.events.Publish(ws.EventClockOut, res)
	return &res, nil
}

func (s *attendanceService) ListRecords(ctx context.Context, actor policy.Actor, filter AttendanceListFilter) ([]AttendanceRecordResponse, int64, error) {
	if !s.policy.CanView(actor.Role, policy.ResourceAttendance) {
		return nil, 0, forbidden("Access denied: attendance records")
	}
	page := filter.Page.normalize()
	records, total, err := s.repo.ListRecords(ctx, repository.AttendanceFilter{
		From:   filter.From,
		To:     filter.To,
		Status: filter.Status,
		Search: strings.TrimSpace(filter.Search),
		Offset: page.offset(),
		Limit:  page.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch attendance records: %w", err)
	}

	res := make([]AttendanceRecordResponse, 0, len(records))
	for _, r := range records {
		res = append(res, toAttendanceResponse(r))
	}
	return res, total, nil
}

func (s *attendanceService) Summary(ctx context.Context, actor policy.Actor, day time.Time) (*AttendanceSummary, error) {
	if !s.policy.CanView(actor.Role, policy.ResourceAttendance) {
		return nil, forbidden("Access denied: attendance records")
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1)

	total, err := s.repo.CountRecords(ctx, &from, &to, "")
	if err != nil {
		return nil, fmt.Errorf("failed to count attendance: %w", err)
	}
	completed, err := s.repo.CountRecords(ctx, &from, &to, model.AttendanceClockedOut)
	if err != nil {
		return nil, fmt.Errorf("failed to count attendance: %w", err)
	}
	open, err := s.repo.CountRecords(ctx, nil, nil, model.AttendanceClockedIn)
	if err != nil {
		return nil, fmt.Errorf("failed to count attendance: %w", err)
	}
	avg, err := s.repo.AverageHours(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to average hours: %w", err)
	}

	return &AttendanceSummary{
		Date:           from.Format("2006-01-02"),
		ClockedInNow:   open,
		TotalToday:     total,
		CompletedToday: completed,
		AverageHours:   avg.StringFixed(2),
	}, nil
}

func (s *attendanceService) ExportRecords(ctx context.Context, actor policy.Actor, filter AttendanceListFilter) ([]byte, error) {
	if !s.policy.CanView(actor.Role, policy.ResourceAttendance) {
		return nil, forbidden("Access denied: attendance records")
	}
	records, _, err := s.repo.ListRecords(ctx, repository.AttendanceFilter{
		From:   filter.From,
		To:     filter.To,
		Status: filter.Status,
		Search: strings.TrimSpace(filter.Search),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attendance records: %w", err)
	}

	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		clockOut, hours := "", ""
		if r.ClockOutTime != nil {
			clockOut = r.ClockOutTime.Format("2006-01-02 15:04")
		}
		if r.HoursWorked.Valid {
			hours = r.HoursWorked.Decimal.StringFixed(2)
		}
		rows = append(rows, []interface{}{
			r.StaffName, r.PSN, r.Gender, r.StaffPhone,
			r.ClockInTime.Format("2006-01-02 15:04"), clockOut, hours, r.Status,
		})
	}

	return buildWorkbook("Attendance",
		[]string{"Staff Name", "PSN", "Gender", "Phone", "Clock In", "Clock Out", "Hours", "Status"},
		rows)
}

func toAttendanceResponse(r model.AttendanceRecord) AttendanceRecordResponse {
	res := AttendanceRecordResponse{
		ID:              r.ID.String(),
		StaffID:         r.StaffID.String(),
		PSN:             r.PSN,
		StaffName:       r.StaffName,
		Gender:          r.Gender,
		StaffPhone:      r.StaffPhone,
		ClockInTime:     formatTime(r.ClockInTime),
		ClockOutTime:    formatTimePtr(r.ClockOutTime),
		Status:          r.Status,
		ApprovalCodeIn:  r.ApprovalCodeIn,
		ApprovalCodeOut: r.ApprovalCodeOut,
	}
	if r.HoursWorked.Valid {
		h := r.HoursWorked.Decimal.StringFixed(2)
		res.HoursWorked = &h
	}
	return res
}
