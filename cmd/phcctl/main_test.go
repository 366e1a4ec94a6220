package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type memUsers struct {
	repository.UserRepository
	byEmail map[string]*model.User
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) Create(ctx context.Context, u *model.User) error {
	u.ID = uuid.New()
	m.byEmail[u.Email] = u
	return nil
}

func TestCreateSuperAdmin(t *testing.T) {
	users := &memUsers{byEmail: map[string]*model.User{}}
	in := superAdminInput{Email: "root@kwaraphc.gov.ng", Username: "root", FullName: "Root", Password: "s3cret-pass"}

	user, err := createSuperAdmin(context.Background(), users, in)
	if err != nil {
		t.Fatalf("createSuperAdmin: %v", err)
	}
	if user.Role != model.RoleSuperAdmin || user.Status != model.UserStatusApproved {
		t.Fatalf("role/status = %s/%s, want super_admin/approved", user.Role, user.Status)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		t.Fatalf("stored password is not a hash of the input")
	}

	if _, err := createSuperAdmin(context.Background(), users, in); err == nil {
		t.Fatalf("second create succeeded, want duplicate error")
	}
}

func TestSuperAdminInputValidate(t *testing.T) {
	ok := superAdminInput{Email: "a@b.c", Username: "a", FullName: "A", Password: "12345678"}
	if err := ok.validate(); err != nil {
		t.Fatalf("validate() = %v, want nil", err)
	}

	short := ok
	short.Password = "123"
	if err := short.validate(); err == nil {
		t.Fatalf("short password accepted")
	}
	noEmail := ok
	noEmail.Email = "root"
	if err := noEmail.validate(); err == nil {
		t.Fatalf("invalid email accepted")
	}
}

func TestPrintPolicy(t *testing.T) {
	cmd := newPolicyCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := printPolicy(cmd, policy.Default()); err != nil {
		t.Fatalf("printPolicy: %v", err)
	}
	text := out.String()
	for _, want := range []string{"RESOURCE", policy.ResourceAttendance, policy.ResourceSettings} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}
