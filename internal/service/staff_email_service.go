package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/repository"

	"gorm.io/gorm"
)

const (
	mailboxCreatedMessage = "Email created successfully! You can now use it to access your account."
	mailboxPendingMessage = "Email record saved. Please contact IT support to activate the email in cPanel."
)

// MailboxProvisioner creates mailboxes on the hosting control panel.
type MailboxProvisioner interface {
	Enabled() bool
	AddMailbox(ctx context.Context, address, password string) error
	RemoveMailbox(ctx context.Context, address string) error
}

type CreateStaffEmailRequest struct {
	PSN      string `json:"psn" binding:"required,psn"`
	Sex      string `json:"sex" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

type CreateStaffEmailResponse struct {
	Success       bool    `json:"success"`
	Email         string  `json:"email"`
	CPanelCreated bool    `json:"cpanel_created"`
	Message       string  `json:"message"`
	CPanelError   *string `json:"cpanel_error"`
}

type StaffEmailResponse struct {
	ID            string `json:"id"`
	PSN           string `json:"psn"`
	Email         string `json:"email"`
	StaffName     string `json:"staff_name"`
	StaffSex      string `json:"staff_sex"`
	StaffLGA      string `json:"staff_lga"`
	CPanelCreated bool   `json:"cpanel_created"`
	CreatedAt     string `json:"created_at"`
}

type StaffEmailService interface {
	Create(ctx context.Context, req CreateStaffEmailRequest) (*CreateStaffEmailResponse, error)
	List(ctx context.Context, actor policy.Actor, search string, page Page) ([]StaffEmailResponse, int64, error)
}

type staffEmailService struct {
	repo         repository.StaffEmailRepository
	staffRepo    repository.StaffRepository
	activityRepo repository.ActivityRepository
	txManager    repository.TransactionManager
	mailboxes    MailboxProvisioner
	policy       *policy.Policy
	domain       string
}

// NewStaffEmailService wires the provisioning flow. domain, when set, restricts requested
// addresses to that mail domain.
func NewStaffEmailService(
	repo repository.StaffEmailRepository,
	staffRepo repository.StaffRepository,
	activityRepo repository.ActivityRepository,
	txManager repository.TransactionManager,
	mailboxes MailboxProvisioner,
	pol *policy.Policy,
	domain string,
) StaffEmailService {
	return &staffEmailService{
		repo:         repo,
		staffRepo:    staffRepo,
		activityRepo: activityRepo,
		txManager:    txManager,
		mailboxes:    mailboxes,
		policy:       pol,
		domain:       strings.ToLower(strings.TrimSpace(domain)),
	}
}

func (s *staffEmailService) validate(req *CreateStaffEmailRequest) error {
	req.PSN = strings.TrimSpace(req.PSN)
	req.Sex = strings.TrimSpace(req.Sex)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.PSN == "" || req.Sex == "" || req.Email == "" || req.Password == "" {
		return invalid("Missing required fields")
	}
	addr, err := mail.ParseAddress(req.Email)
	if err != nil || addr.Address != req.Email {
		return invalid("Invalid email address")
	}
	if len(req.Password) < 8 {
		return invalid("Password must be at least 8 characters")
	}
	if s.domain != "" && !strings.HasSuffix(req.Email, "@"+s.domain) {
		return invalid("Email address must end with @%s", s.domain)
	}
	return nil
}

// Create provisions an official mailbox for a staff member. The tracking row is saved even
// when the control panel call fails so support can finish the job by hand.
//
// The control panel call runs between two short transactions: the first checks the PSN and
// address are free, the second re-checks and saves the row with its activity entry. A mailbox
// whose row could not be saved is removed again.
func (s *staffEmailService) Create(ctx context.Context, req CreateStaffEmailRequest) (*CreateStaffEmailResponse, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	staff, err := s.staffRepo.FindByPSNAndSex(ctx, req.PSN, req.Sex)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStaffNotFound
		}
		return nil, fmt.Errorf("failed to look up staff: %w", err)
	}

	lockKey := "staff-email:" + staff.PSN
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.txManager.Lock(txCtx, lockKey); err != nil {
			return fmt.Errorf("failed to lock staff email: %w", err)
		}
		return s.ensureAvailable(txCtx, staff.PSN, req.Email)
	})
	if err != nil {
		return nil, err
	}

	res := &CreateStaffEmailResponse{Success: true, Email: req.Email}
	res.CPanelCreated, res.CPanelError = s.provision(ctx, req.Email, req.Password)

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.txManager.Lock(txCtx, lockKey); err != nil {
			return fmt.Errorf("failed to lock staff email: %w", err)
		}
		if err := s.ensureAvailable(txCtx, staff.PSN, req.Email); err != nil {
			return err
		}

		record := &model.StaffEmail{
			PSN:           staff.PSN,
			Email:         req.Email,
			StaffName:     staff.Name,
			StaffSex:      staff.Sex,
			StaffLGA:      staff.LGA,
			CPanelCreated: res.CPanelCreated,
		}
		if err := s.repo.Create(txCtx, record); err != nil {
			return fmt.Errorf("failed to save email record: %w", err)
		}
		return recordActivity(txCtx, s.activityRepo, nil, model.ActivityStaffEmailCreate,
			"Staff email requested for "+staff.Name, map[string]interface{}{
				"psn":            staff.PSN,
				"email":          req.Email,
				"cpanel_created": res.CPanelCreated,
			})
	})
	if err != nil {
		if res.CPanelCreated {
			s.removeMailbox(req.Email)
		}
		return nil, err
	}

	res.Message = mailboxPendingMessage
	if res.CPanelCreated {
		res.Message = mailboxCreatedMessage
	}
	return res, nil
}

// ensureAvailable fails when the PSN already has an address or the address belongs to
// someone else.
func (s *staffEmailService) ensureAvailable(ctx context.Context, psn, email string) error {
	existing, err := s.repo.FindByPSN(ctx, psn)
	if err == nil {
		return &ExistingEmailError{Email: existing.Email}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check existing email: %w", err)
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return ErrEmailInUse
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}
	return nil
}

func (s *staffEmailService) provision(ctx context.Context, address, password string) (bool, *string) {
	if s.mailboxes == nil || !s.mailboxes.Enabled() {
		log.Println("[STAFF_EMAIL] cPanel credentials not configured, saving record only")
		return false, nil
	}
	if err := s.mailboxes.AddMailbox(ctx, address, password); err != nil {
		log.Printf("[STAFF_EMAIL] cPanel error for %s: %v", address, err)
		msg := err.Error()
		return false, &msg
	}
	return true, nil
}

// removeMailbox undoes a mailbox whose tracking row was not saved. It runs on a fresh
// context so a cancelled request still cleans up.
func (s *staffEmailService) removeMailbox(address string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.mailboxes.RemoveMailbox(ctx, address); err != nil {
		log.Printf("[STAFF_EMAIL] orphaned mailbox %s, remove it in cPanel by hand: %v", address, err)
	}
}

func (s *staffEmailService) List(ctx context.Context, actor policy.Actor, search string, page Page) ([]StaffEmailResponse, int64, error) {
	if !s.policy.CanView(actor.Role, policy.ResourceStaff) {
		return nil, 0, forbidden("Access denied: staff emails")
	}
	page = page.normalize()
	rows, total, err := s.repo.List(ctx, strings.TrimSpace(search), page.offset(), page.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch staff emails: %w", err)
	}
	res := make([]StaffEmailResponse, 0, len(rows))
	for _, r := range rows {
		res = append(res, StaffEmailResponse{
			ID:            r.ID.String(),
			PSN:           r.PSN,
			Email:         r.Email,
			StaffName:     r.StaffName,
			StaffSex:      r.StaffSex,
			StaffLGA:      r.StaffLGA,
			CPanelCreated: r.CPanelCreated,
			CreatedAt:     formatTime(r.CreatedAt),
		})
	}
	return res, total, nil
}
