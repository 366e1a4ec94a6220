package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/repository"
	"phcportal/internal/storage"

	"github.com/lib/pq"
)

type PHCRequest struct {
	Name       string   `json:"name" form:"name" binding:"required,max=255"`
	LGA        string   `json:"lga" form:"lga" binding:"required,lga"`
	Ward       string   `json:"ward" form:"ward" binding:"omitempty,max=100"`
	Address    string   `json:"address" form:"address"`
	Phone      string   `json:"phone" form:"phone" binding:"omitempty,max=30"`
	Email      string   `json:"email" form:"email" binding:"omitempty,email"`
	Services   []string `json:"services" form:"services"`
	StaffCount int      `json:"staff_count" form:"staff_count" binding:"min=0"`
	Status     string   `json:"status" form:"status" binding:"omitempty,oneof=active inactive"`
}

type PHCListFilter struct {
	Search string
	LGA    string
	Ward   string
	Status string
	Page   Page
}

type PHCResponse struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	LGA        string   `json:"lga"`
	Ward       string   `json:"ward"`
	Address    string   `json:"address"`
	Phone      string   `json:"phone"`
	Email      string   `json:"email"`
	Services   []string `json:"services"`
	StaffCount int      `json:"staff_count"`
	Status     string   `json:"status"`
	ImageURL   string   `json:"image_url"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

type PHCService interface {
	Create(ctx context.Context, actor policy.Actor, req PHCRequest, img *ImageUpload) (*PHCResponse, error)
	Update(ctx context.Context, actor policy.Actor, id string, req PHCRequest, img *ImageUpload) (*PHCResponse, error)
	Delete(ctx context.Context, actor policy.Actor, id string) error
	Get(ctx context.Context, id string) (*PHCResponse, error)
	List(ctx context.Context, actor policy.Actor, filter PHCListFilter) ([]PHCResponse, int64, error)
	ListPublic(ctx context.Context, filter PHCListFilter) ([]PHCResponse, int64, error)
}

type phcService struct {
	repo         repository.PHCRepository
	activityRepo repository.ActivityRepository
	txManager    repository.TransactionManager
	store        storage.Store
	policy       *policy.Policy
	now          func() time.Time
}

func NewPHCService(repo repository.PHCRepository, activityRepo repository.ActivityRepository, txManager repository.TransactionManager, store storage.Store, pol *policy.Policy) PHCService {
	return &phcService{
		repo:         repo,
		activityRepo: activityRepo,
		txManager:    txManager,
		store:        store,
		policy:       pol,
		now:          time.Now,
	}
}

func toPHCResponse(p *model.PHC) *PHCResponse {
	services := []string(p.Services)
	if services == nil {
		services = []string{}
	}
	return &PHCResponse{
		ID:         p.ID.String(),
		Name:       p.Name,
		LGA:        p.LGA,
		Ward:       p.Ward,
		Address:    p.Address,
		Phone:      p.Phone,
		Email:      p.Email,
		Services:   services,
		StaffCount: p.StaffCount,
		Status:     p.Status,
		ImageURL:   p.ImageURL,
		CreatedAt:  formatTime(p.CreatedAt),
		UpdatedAt:  formatTime(p.UpdatedAt),
	}
}

func cleanServices(in []string) pq.StringArray {
	out := make(pq.StringArray, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" || seen[strings.ToLower(part)] {
				continue
			}
			seen[strings.ToLower(part)] = true
			out = append(out, part)
		}
	}
	return out
}

func (s *phcService) apply(p *model.PHC, req PHCRequest) error {
	if !model.IsKwaraLGA(req.LGA) {
		return invalid("Unknown LGA %q", req.LGA)
	}
	if req.StaffCount < 0 {
		return invalid("staff_count cannot be negative")
	}
	p.Name = strings.TrimSpace(req.Name)
	p.LGA = req.LGA
	p.Ward = strings.TrimSpace(req.Ward)
	p.Address = strings.TrimSpace(req.Address)
	p.Phone = strings.TrimSpace(req.Phone)
	p.Email = strings.TrimSpace(req.Email)
	p.Services = cleanServices(req.Services)
	p.StaffCount = req.StaffCount
	if req.Status != "" {
		p.Status = req.Status
	}
	if p.Status == "" {
		p.Status = model.PHCStatusActive
	}
	return nil
}

func (s *phcService) Create(ctx context.Context, actor policy.Actor, req PHCRequest, img *ImageUpload) (*PHCResponse, error) {
	if !s.policy.CanMutate(actor, policy.ResourcePHCs, nil) {
		return nil, forbidden("Access denied: you cannot manage PHCs")
	}
	phc := &model.PHC{}
	if err := s.apply(phc, req); err != nil {
		return nil, err
	}

	err := saveWithImage(ctx, s.store, storage.BucketPHCImages, "phcs", img, s.now(), func(obj *storage.Object) error {
		if obj != nil {
			phc.ImageURL, phc.ImagePath = obj.PublicURL, obj.Path
		}
		return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.repo.Create(txCtx, phc); err != nil {
				return fmt.Errorf("failed to create PHC: %w", err)
			}
			return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), model.ActivityPHCCreate,
				"Created PHC "+phc.Name, map[string]interface{}{"phc_id": phc.ID.String(), "lga": phc.LGA, "image": describeUpload(obj)})
		})
	})
	if err != nil {
		return nil, err
	}
	return toPHCResponse(phc), nil
}

func (s *phcService) Update(ctx context.Context, actor policy.Actor, id string, req PHCRequest, img *ImageUpload) (*PHCResponse, error) {
	if !s.policy.CanMutate(actor, policy.ResourcePHCs, nil) {
		return nil, forbidden("Access denied: you cannot manage PHCs")
	}
	pid, err := parseID(id, "PHC")
	if err != nil {
		return nil, err
	}
	phc, err := s.repo.FindByID(ctx, pid)
	if err != nil {
		return nil, lookupErr(err, "PHC")
	}
	if err := s.apply(phc, req); err != nil {
		return nil, err
	}

	oldPath := phc.ImagePath
	err = saveWithImage(ctx, s.store, storage.BucketPHCImages, "phcs", img, s.now(), func(obj *storage.Object) error {
		if obj != nil {
			phc.ImageURL, phc.ImagePath = obj.PublicURL, obj.Path
		}
		return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.repo.Update(txCtx, phc); err != nil {
				return fmt.Errorf("failed to update PHC: %w", err)
			}
			return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), model.ActivityPHCUpdate,
				"Updated PHC "+phc.Name, map[string]interface{}{"phc_id": phc.ID.String()})
		})
	})
	if err != nil {
		return nil, err
	}
	if img != nil && oldPath != phc.ImagePath {
		replacedObject(s.store, storage.BucketPHCImages, oldPath)
	}
	return toPHCResponse(phc), nil
}

func (s *phcService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	if !s.policy.CanMutate(actor, policy.ResourcePHCs, nil) {
		return forbidden("Access denied: you cannot manage PHCs")
	}
	pid, err := parseID(id, "PHC")
	if err != nil {
		return err
	}
	phc, err := s.repo.FindByID(ctx, pid)
	if err != nil {
		return lookupErr(err, "PHC")
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Delete(txCtx, phc.ID); err != nil {
			return fmt.Errorf("failed to delete PHC: %w", err)
		}
		return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), model.ActivityPHCDelete,
			"Deleted PHC "+phc.Name, map[string]interface{}{"phc_id": phc.ID.String()})
	})
	if err != nil {
		return err
	}
	replacedObject(s.store, storage.BucketPHCImages, phc.ImagePath)
	return nil
}

func (s *phcService) Get(ctx context.Context, id string) (*PHCResponse, error) {
	pid, err := parseID(id, "PHC")
	if err != nil {
		return nil, err
	}
	phc, err := s.repo.FindByID(ctx, pid)
	if err != nil {
		return nil, lookupErr(err, "PHC")
	}
	return toPHCResponse(phc), nil
}

func (s *phcService) list(ctx context.Context, filter PHCListFilter) ([]PHCResponse, int64, error) {
	page := filter.Page.normalize()
	phcs, total, err := s.repo.List(ctx, repository.PHCFilter{
		Search: strings.TrimSpace(filter.Search),
		LGA:    filter.LGA,
		Ward:   filter.Ward,
		Status: filter.Status,
		Offset: page.offset(),
		Limit:  page.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch PHCs: %w", err)
	}
	res := make([]PHCResponse, 0, len(phcs))
	for i := range phcs {
		res = append(res, *toPHCResponse(&phcs[i]))
	}
	return res, total, nil
}

func (s *phcService) List(ctx context.Context, actor policy.Actor, filter PHCListFilter) ([]PHCResponse, int64, error) {
	if !s.policy.CanView(actor.Role, policy.ResourcePHCs) {
		return nil, 0, forbidden("Access denied: PHCs")
	}
	return s.list(ctx, filter)
}

// ListPublic serves the facility directory on the public site. Only active PHCs are listed.
func (s *phcService) ListPublic(ctx context.Context, filter PHCListFilter) ([]PHCResponse, int64, error) {
	filter.Status = model.PHCStatusActive
	return s.list(ctx, filter)
}
