package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/repository"
)

const dateLayout = "2006-01-02"

type StaffRequest struct {
	SN                 string `json:"sn" binding:"omitempty,max=20"`
	Name               string `json:"name" binding:"required,max=255"`
	PSN                string `json:"psn" binding:"required,psn"`
	GL                 string `json:"gl" binding:"omitempty,max=20"`
	Sex                string `json:"sex" binding:"required,oneof=Male Female"`
	DateOfBirth        string `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	LGA                string `json:"lga" binding:"omitempty,max=100"`
	DateOfFirstAppt    string `json:"date_of_first_appt" binding:"omitempty,datetime=2006-01-02"`
	DateOfConfirmation string `json:"date_of_confirmation" binding:"omitempty,datetime=2006-01-02"`
	DateOfPresentAppt  string `json:"date_of_present_appt" binding:"omitempty,datetime=2006-01-02"`
	Qualification      string `json:"qualification"`
	Rank               string `json:"rank"`
	Cadre              string `json:"cadre"`
	ParentMDA          string `json:"parent_mda"`
	PresentPosting     string `json:"present_posting"`
	MobileNumber       string `json:"mobile_number" binding:"omitempty,max=30"`
	Tier               string `json:"tier"`
}

type StaffSearchFilter struct {
	Search string
	Sex    string
	LGA    string
	Tier   string
	Cadre  string
	MinAge *int
	MaxAge *int
	Page   Page
}

type StaffResponse struct {
	ID                 string  `json:"id"`
	SN                 string  `json:"sn"`
	Name               string  `json:"name"`
	PSN                string  `json:"psn"`
	GL                 string  `json:"gl"`
	Sex                string  `json:"sex"`
	DateOfBirth        *string `json:"date_of_birth"`
	Age                *int    `json:"age"`
	LGA                string  `json:"lga"`
	DateOfFirstAppt    *string `json:"date_of_first_appt"`
	DateOfConfirmation *string `json:"date_of_confirmation"`
	DateOfPresentAppt  *string `json:"date_of_present_appt"`
	Qualification      string  `json:"qualification"`
	Rank               string  `json:"rank"`
	Cadre              string  `json:"cadre"`
	ParentMDA          string  `json:"parent_mda"`
	PresentPosting     string  `json:"present_posting"`
	MobileNumber       string  `json:"mobile_number"`
	Tier               string  `json:"tier"`
}

type StaffStats struct {
	Total  int64            `json:"total"`
	BySex  map[string]int64 `json:"by_sex"`
	Tiers  []string         `json:"tiers"`
	Cadres []string         `json:"cadres"`
}

type StaffService interface {
	Search(ctx context.Context, actor policy.Actor, filter StaffSearchFilter) ([]StaffResponse, int64, error)
	Get(ctx context.Context, actor policy.Actor, id string) (*StaffResponse, error)
	Create(ctx context.Context, actor policy.Actor, req StaffRequest) (*StaffResponse, error)
	Update(ctx context.Context, actor policy.Actor, id string, req StaffRequest) (*StaffResponse, error)
	Delete(ctx context.Context, actor policy.Actor, id string) error
	Stats(ctx context.Context, actor policy.Actor) (*StaffStats, error)
	Export(ctx context.Context, actor policy.Actor, filter StaffSearchFilter) ([]byte, error)
}

type staffService struct {
	repo         repository.StaffRepository
	activityRepo repository.ActivityRepository
	txManager    repository.TransactionManager
	policy       *policy.Policy
	now          func() time.Time
}

func NewStaffService(repo repository.StaffRepository, activityRepo repository.ActivityRepository, txManager repository.TransactionManager, pol *policy.Policy) StaffService {
	return &staffService{
		repo:         repo,
		activityRepo: activityRepo,
		txManager:    txManager,
		policy:       pol,
		now:          time.Now,
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func parseDate(v, field string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, invalid("%s must be a date in YYYY-MM-DD format", field)
	}
	return &t, nil
}

func (s *staffService) toResponse(st *model.Staff) StaffResponse {
	res := StaffResponse{
		ID:                 st.ID.String(),
		SN:                 st.SN,
		Name:               st.Name,
		PSN:                st.PSN,
		GL:                 st.GL,
		Sex:                st.Sex,
		DateOfBirth:        formatDate(st.DateOfBirth),
		LGA:                st.LGA,
		DateOfFirstAppt:    formatDate(st.DateOfFirstAppt),
		DateOfConfirmation: formatDate(st.DateOfConfirmation),
		DateOfPresentAppt:  formatDate(st.DateOfPresentAppt),
		Qualification:      st.Qualification,
		Rank:               st.Rank,
		Cadre:              st.Cadre,
		ParentMDA:          st.ParentMDA,
		PresentPosting:     st.PresentPosting,
		MobileNumber:       st.MobileNumber,
		Tier:               st.Tier,
	}
	if age := st.AgeOn(s.now()); age >= 0 {
		res.Age = &age
	}
	return res
}

// ageBounds converts an inclusive age range into birth-date bounds.
func ageBounds(now time.Time, minAge, maxAge *int) (bornAfter, bornBefore *time.Time, err error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if minAge != nil {
		if *minAge < 0 {
			return nil, nil, invalid("min_age cannot be negative")
		}
		t := today.AddDate(-*minAge, 0, 0)
		bornBefore = &t
	}
	if maxAge != nil {
		if *maxAge < 0 {
			return nil, nil, invalid("max_age cannot be negative")
		}
		if minAge != nil && *maxAge < *minAge {
			return nil, nil, invalid("max_age must not be below min_age")
		}
		t := today.AddDate(-(*maxAge + 1), 0, 0)
		bornAfter = &t
	}
	return bornAfter, bornBefore, nil
}

func (s *staffService) repoFilter(filter StaffSearchFilter) (repository.StaffFilter, error) {
	after, before, err := ageBounds(s.now(), filter.MinAge, filter.MaxAge)
	if err != nil {
		return repository.StaffFilter{}, err
	}
	return repository.StaffFilter{
		Search:     strings.TrimSpace(filter.Search),
		Sex:        filter.Sex,
		LGA:        filter.LGA,
		Tier:       filter.Tier,
		Cadre:      filter.Cadre,
		BornAfter:  after,
		BornBefore: before,
	}, nil
}

func (s *staffService) Search(ctx context.Context, actor policy.Actor, filter StaffSearchFilter) ([]StaffResponse, int64, error) {
	if !s.policy.CanView(actor.Role, policy.ResourceStaff) {
		return nil, 0, forbidden("Access denied: staff records")
	}
	q, err := s.repoFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	page := filter.Page.normalize()
	q.Offset, q.Limit = page.offset(), page.Limit

	staff, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch staff: %w", err)
	}

	if q.Search != "" {
		if err := recordActivity(ctx, s.activityRepo, userRef(actor.ID), model.ActivityStaffSearch,
			"Searched staff for "+q.Search, map[string]interface{}{"query": q.Search, "results": total}); err != nil {
			return nil, 0, err
		}
	}

	res := make([]StaffResponse, 0, len(staff))
	for i := range staff {
		res = append(res, s.toResponse(&staff[i]))
	}
	return res, total, nil
}

func (s *staffService) Get(ctx context.Context, actor policy.Actor, id string) (*StaffResponse, error) {
	if !s.policy.CanView(actor.Role, policy.ResourceStaff) {
		return nil, forbidden("Access denied: staff records")
	}
	sid, err := parseID(id, "staff")
	if err != nil {
		return nil, err
	}
	st, err := s.repo.FindByID(ctx, sid)
	if err != nil {
		return nil, lookupErr(err, "staff")
	}
	res := s.toResponse(st)
	return &res, nil
}

func (s *staffService) apply(st *model.Staff, req StaffRequest) error {
	if req.Sex != model.SexMale && req.Sex != model.SexFemale {
		return invalid("sex must be Male or Female")
	}
	if req.Tier != "" && !model.IsStaffTier(req.Tier) {
		return invalid("Unknown tier %q", req.Tier)
	}
	dates := []struct {
		raw   string
		field string
		dst   **time.Time
	}{
		{req.DateOfBirth, "date_of_birth", &st.DateOfBirth},
		{req.DateOfFirstAppt, "date_of_first_appt", &st.DateOfFirstAppt},
		{req.DateOfConfirmation, "date_of_confirmation", &st.DateOfConfirmation},
		{req.DateOfPresentAppt, "date_of_present_appt", &st.DateOfPresentAppt},
	}
	for _, d := range dates {
		t, err := parseDate(d.raw, d.field)
		if err != nil {
			return err
		}
		*d.dst = t
	}

	st.SN = strings.TrimSpace(req.SN)
	st.Name = strings.TrimSpace(req.Name)
	st.PSN = strings.TrimSpace(req.PSN)
	st.GL = strings.TrimSpace(req.GL)
	st.Sex = req.Sex
	st.LGA = strings.TrimSpace(req.LGA)
	st.Qualification = strings.TrimSpace(req.Qualification)
	st.Rank = strings.TrimSpace(req.Rank)
	st.Cadre = strings.TrimSpace(req.Cadre)
	st.ParentMDA = strings.TrimSpace(req.ParentMDA)
	st.PresentPosting = strings.TrimSpace(req.PresentPosting)
	st.MobileNumber = strings.TrimSpace(req.MobileNumber)
	st.Tier = req.Tier
	return nil
}

func (s *staffService) Create(ctx context.Context, actor policy.Actor, req StaffRequest) (*StaffResponse, error) {
	if !s.policy.CanMutate(actor, policy.ResourceStaff, nil) {
		return nil, forbidden("Access denied: you cannot manage staff records")
	}
	st := &model.Staff{}
	if err := s.apply(st, req); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, st); err != nil {
			return fmt.Errorf("failed to create staff: %w", err)
		}
		return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), model.ActivityStaffCreate,
			"Added staff "+st.Name, map[string]interface{}{"staff_id": st.ID.String(), "psn": st.PSN})
	})
	if err != nil {
		return nil, err
	}
	res := s.toResponse(st)
	return &res, nil
}

func (s *staffService) Update(ctx context.Context, actor policy.Actor, id string, req StaffRequest) (*StaffResponse, error) {
	if !s.policy.CanMutate(actor, policy.ResourceStaff, nil) {
		return nil, forbidden("Access denied: you cannot manage staff records")
	}
	sid, err := parseID(id, "staff")
	if err != nil {
		return nil, err
	}
	st, err := s.repo.FindByID(ctx, sid)
	if err != nil {
		return nil, lookupErr(err, "staff")
	}
	if err := s.apply(st, req); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, st); err != nil {
			return fmt.Errorf("failed to update staff: %w", err)
		}
		return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), model.ActivityStaffUpdate,
			"Updated staff "+st.Name, map[string]interface{}{"staff_id": st.ID.String(), "psn": st.PSN})
	})
	if err != nil {
		return nil, err
	}
	res := s.toResponse(st)
	return &res, nil
}

func (s *staffService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	if !s.policy.CanMutate(actor, policy.ResourceStaff, nil) {
		return forbidden("Access denied: you cannot manage staff records")
	}
	sid, err := parseID(id, "staff")
	if err != nil {
		return err
	}
	st, err := s.repo.FindByID(ctx, sid)
	if err != nil {
		return lookupErr(err, "staff")
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Delete(txCtx, st.ID); err != nil {
			return fmt.Errorf("failed to delete staff: %w", err)
		}
		return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), model.ActivityStaffDelete,
			"Removed staff "+st.Name, map[string]interface{}{"staff_id": st.ID.String(), "psn": st.PSN})
	})
}

func (s *staffService) Stats(ctx context.Context, actor policy.Actor) (*StaffStats, error) {
	if !s.policy.CanView(actor.Role, policy.ResourceStaff) {
		return nil, forbidden("Access denied: staff records")
	}
	bySex, err := s.repo.CountBySex(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count staff: %w", err)
	}
	var total int64
	for _, n := range bySex {
		total += n
	}
	return &StaffStats{Total: total, BySex: bySex, Tiers: model.StaffTiers, Cadres: model.StaffCadres}, nil
}

func (s *staffService) Export(ctx context.Context, actor policy.Actor, filter StaffSearchFilter) ([]byte, error) {
	if !s.policy.CanView(actor.Role, policy.ResourceStaff) {
		return nil, forbidden("Access denied: staff records")
	}
	q, err := s.repoFilter(filter)
	if err != nil {
		return nil, err
	}
	staff, _, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch staff: %w", err)
	}

	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	rows := make([][]interface{}, 0, len(staff))
	for i := range staff {
		r := s.toResponse(&staff[i])
		age := ""
		if r.Age != nil {
			age = fmt.Sprint(*r.Age)
		}
		rows = append(rows, []interface{}{
			r.SN, r.Name, r.PSN, r.GL, r.Sex, str(r.DateOfBirth), age, r.LGA,
			str(r.DateOfFirstAppt), str(r.DateOfConfirmation), str(r.DateOfPresentAppt),
			r.Qualification, r.Rank, r.Cadre, r.ParentMDA, r.PresentPosting, r.MobileNumber, r.Tier,
		})
	}
	return buildWorkbook("Staff", []string{
		"S/N", "Name", "PSN", "GL", "Sex", "Date of Birth", "Age", "LGA",
		"Date of First Appt", "Date of Confirmation", "Date of Present Appt",
		"Qualification", "Rank", "Cadre", "Parent MDA", "Present Posting", "Mobile Number", "Tier",
	}, rows)
}
