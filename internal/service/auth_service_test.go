package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type authUserRepo struct {
	*fakeUserRepo
}

// brokenUserRepo fails every email lookup as an unreachable database would.
type brokenUserRepo struct {
	authUserRepo
}

func (brokenUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func (r authUserRepo) Create(ctx context.Context, user *model.User) error {
	user.ID = uuid.New()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r authUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r authUserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeSettingsRepo struct {
	repository.SettingsRepository
	signup      model.SignupSettings
	system      model.SystemSettings
	invitations []model.SignupInvitation
	saves       int
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{signup: model.DefaultSignupSettings(), system: model.DefaultSystemSettings()}
}

func (r *fakeSettingsRepo) GetSignup(ctx context.Context) (*model.SignupSettings, error) {
	s := r.signup
	return &s, nil
}

func (r *fakeSettingsRepo) GetSystem(ctx context.Context) (*model.SystemSettings, error) {
	s := r.system
	return &s, nil
}

func (r *fakeSettingsRepo) SaveSignup(ctx context.Context, s *model.SignupSettings) error {
	r.signup = *s
	r.saves++
	return nil
}

func (r *fakeSettingsRepo) SaveSystem(ctx context.Context, s *model.SystemSettings) error {
	r.system = *s
	r.saves++
	return nil
}

func (r *fakeSettingsRepo) CreateInvitation(ctx context.Context, inv *model.SignupInvitation) error {
	inv.ID = uuid.New()
	r.invitations = append(r.invitations, *inv)
	return nil
}

func (r *fakeSettingsRepo) FindInvitationForUpdate(ctx context.Context, code string) (*model.SignupInvitation, error) {
	for i := range r.invitations {
		if r.invitations[i].Code == code {
			inv := r.invitations[i]
			return &inv, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeSettingsRepo) UpdateInvitation(ctx context.Context, inv *model.SignupInvitation) error {
	for i := range r.invitations {
		if r.invitations[i].ID == inv.ID {
			r.invitations[i] = *inv
		}
	}
	return nil
}

type fakeTokenRepo struct {
	repository.RefreshTokenRepository
	tokens map[string]model.RefreshToken
}

func (r *fakeTokenRepo) Create(ctx context.Context, token *model.RefreshToken) error {
	r.tokens[token.Token] = *token
	return nil
}

func (r *fakeTokenRepo) GetByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	t, ok := r.tokens[token]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &t, nil
}

func (r *fakeTokenRepo) DeleteByToken(ctx context.Context, token string) error {
	delete(r.tokens, token)
	return nil
}

type authFixture struct {
	svc      *authService
	users    authUserRepo
	settings *fakeSettingsRepo
	tokens   *fakeTokenRepo
	logs     *fakeActivityRepo
	clock    *clock
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		users:    authUserRepo{newFakeUserRepo()},
		settings: newFakeSettingsRepo(),
		tokens:   &fakeTokenRepo{tokens: map[string]model.RefreshToken{}},
		logs:     &fakeActivityRepo{},
		clock:    newClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)),
	}
	svc := NewAuthService(f.users, f.tokens, nil, f.settings, f.logs, &noopTx{}, policy.Default(), []byte("test-secret")).(*authService)
	svc.now = f.clock.now
	f.svc = svc
	return f
}

func signupRequest(email string) SignupRequest {
	return SignupRequest{
		Email:    email,
		Username: "user-" + email,
		FullName: "Amina Bello",
		Password: "s3cret-pass",
		LGA:      "Ilorin West",
	}
}

func TestSignupDefaultsToPendingUser(t *testing.T) {
	f := newAuthFixture()

	res, err := f.svc.Signup(context.Background(), signupRequest("Amina@Example.com"))
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if res.User.Status != model.UserStatusPending || res.User.Role != model.RoleUser {
		t.Fatalf("user = %s/%s, want pending user", res.User.Status, res.User.Role)
	}
	if res.User.Email != "amina@example.com" {
		t.Fatalf("email = %q, want lowercased", res.User.Email)
	}
	if got := f.logs.types(); len(got) != 1 || got[0] != model.ActivitySignup {
		t.Fatalf("activity = %v", got)
	}

	_, err = f.svc.Login(context.Background(), LoginUserRequest{Email: "amina@example.com", Password: "s3cret-pass"})
	if !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("Login pending err = %v, want ErrAccountInactive", err)
	}

	if _, err := f.svc.Signup(context.Background(), signupRequest("amina@example.com")); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate signup err = %v, want ErrConflict", err)
	}
}

func TestSignupRespectsSettings(t *testing.T) {
	f := newAuthFixture()
	f.settings.signup.AllowSignup = false
	if _, err := f.svc.Signup(context.Background(), signupRequest("a@example.com")); !errors.Is(err, ErrForbidden) {
		t.Fatalf("closed signup err = %v, want ErrForbidden", err)
	}

	f.settings.signup.AllowSignup = true
	f.settings.signup.RequireApproval = false
	res, err := f.svc.Signup(context.Background(), signupRequest("b@example.com"))
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if res.User.Status != model.UserStatusApproved {
		t.Fatalf("status = %s, want approved", res.User.Status)
	}

	bad := signupRequest("c@example.com")
	bad.LGA = "Lagos Island"
	if _, err := f.svc.Signup(context.Background(), bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown LGA err = %v, want ErrValidation", err)
	}
}

func TestSignupWithInvitation(t *testing.T) {
	f := newAuthFixture()
	f.settings.signup.RequireInvitation = true
	f.settings.invitations = []model.SignupInvitation{
		{ID: uuid.New(), Code: "welcome", Email: "nurse@example.com", Role: model.RoleBlogger, ExpiresAt: f.clock.now().Add(time.Hour)},
	}

	if _, err := f.svc.Signup(context.Background(), signupRequest("nurse@example.com")); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing code err = %v, want ErrValidation", err)
	}

	other := signupRequest("someone@example.com")
	other.InvitationCode = "welcome"
	if _, err := f.svc.Signup(context.Background(), other); !errors.Is(err, ErrValidation) {
		t.Fatalf("wrong email err = %v, want ErrValidation", err)
	}

	req := signupRequest("nurse@example.com")
	req.InvitationCode = "welcome"
	res, err := f.svc.Signup(context.Background(), req)
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if res.User.Role != model.RoleBlogger {
		t.Fatalf("role = %s, want blogger", res.User.Role)
	}
	if f.settings.invitations[0].UsedAt == nil {
		t.Fatalf("invitation not marked used")
	}

	again := signupRequest("nurse2@example.com")
	again.InvitationCode = "welcome"
	if _, err := f.svc.Signup(context.Background(), again); !errors.Is(err, ErrValidation) {
		t.Fatalf("reused invitation err = %v, want ErrValidation", err)
	}
}

func TestLoginAndRefreshRotation(t *testing.T) {
	f := newAuthFixture()
	hashed, err := HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user := &model.User{ID: uuid.New(), Email: "admin@example.com", Password: hashed, Role: model.RoleAdmin, Status: model.UserStatusApproved}
	f.users.users[user.ID] = user

	if _, err := f.svc.Login(context.Background(), LoginUserRequest{Email: user.Email, Password: "wrong"}); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("bad password err = %v, want ErrBadCredentials", err)
	}

	res, err := f.svc.Login(context.Background(), LoginUserRequest{Email: user.Email, Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" || len(res.RefreshToken) != 64 {
		t.Fatalf("tokens = %q / %q", res.Token, res.RefreshToken)
	}
	if res.ExpiresIn != int(AccessTokenTTL/time.Second) {
		t.Fatalf("ExpiresIn = %d", res.ExpiresIn)
	}

	rotated, err := f.svc.Refresh(context.Background(), res.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.RefreshToken == res.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}
	if _, err := f.svc.Refresh(context.Background(), res.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("reused refresh token err = %v, want ErrUnauthorized", err)
	}

	f.clock.advance(RefreshTokenTTL + time.Minute)
	if _, err := f.svc.Refresh(context.Background(), rotated.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expired refresh token err = %v, want ErrUnauthorized", err)
	}
}

func TestLoginSeparatesUnknownAccountFromLookupFailure(t *testing.T) {
	f := newAuthFixture()
	if _, err := f.svc.Login(context.Background(), LoginUserRequest{Email: "nobody@example.com", Password: "x"}); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("unknown email err = %v, want ErrBadCredentials", err)
	}

	broken := NewAuthService(brokenUserRepo{f.users}, f.tokens, nil, f.settings, f.logs, &noopTx{}, policy.Default(), []byte("test-secret"))
	_, err := broken.Login(context.Background(), LoginUserRequest{Email: "admin@example.com", Password: "x"})
	if err == nil || errors.Is(err, ErrBadCredentials) {
		t.Fatalf("lookup failure err = %v, want a wrapped database error", err)
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		t.Fatalf("lookup failure surfaced as user-facing error %q", svcErr.Message)
	}
}

func TestPrincipalReflectsCurrentAccount(t *testing.T) {
	f := newAuthFixture()
	phc := uuid.New()
	user := &model.User{ID: uuid.New(), Email: "p@example.com", Role: model.RolePHCAdministrator, Status: model.UserStatusApproved, PHCID: &phc}
	f.users.users[user.ID] = user

	actor, err := f.svc.Principal(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Principal: %v", err)
	}
	if actor.Role != model.RolePHCAdministrator || actor.PHCID == nil || *actor.PHCID != phc {
		t.Fatalf("actor = %+v", actor)
	}

	if _, err := f.svc.Principal(context.Background(), uuid.New()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("missing account err = %v, want ErrUnauthorized", err)
	}

	me, err := f.svc.Me(context.Background(), actor)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me.CanEditSettings {
		t.Fatalf("PHC administrator can edit settings")
	}
	for _, item := range me.Navigation {
		if item.Resource == policy.ResourceUsers {
			t.Fatalf("PHC administrator sees the users screen")
		}
	}
}
