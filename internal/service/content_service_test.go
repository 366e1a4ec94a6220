package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/repository"
	"phcportal/internal/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (s *memoryStore) Upload(ctx context.Context, bucket, path, contentType string, data []byte) (storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+path] = data
	return storage.Object{Bucket: bucket, Path: path, PublicURL: "https://cdn.example.com/" + bucket + "/" + path}, nil
}

func (s *memoryStore) Delete(ctx context.Context, bucket, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, bucket+"/"+path)
	s.deleted = append(s.deleted, bucket+"/"+path)
	return nil
}

type fakeGalleryRepo struct {
	repository.GalleryRepository
	images    []model.GalleryImage
	failWrite error
}

func (r *fakeGalleryRepo) Create(ctx context.Context, g *model.GalleryImage) error {
	if r.failWrite != nil {
		return r.failWrite
	}
	g.ID = uuid.New()
	r.images = append(r.images, *g)
	return nil
}

func (r *fakeGalleryRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.GalleryImage, error) {
	for i := range r.images {
		if r.images[i].ID == id {
			g := r.images[i]
			return &g, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeGalleryRepo) Update(ctx context.Context, g *model.GalleryImage) error {
	for i := range r.images {
		if r.images[i].ID == g.ID {
			r.images[i] = *g
		}
	}
	return nil
}

func pngUpload(t *testing.T, width int) *ImageUpload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, 10))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return &ImageUpload{Filename: "clinic.png", Body: &buf}
}

func TestGalleryUploadIsRemovedWhenSaveFails(t *testing.T) {
	store := newMemoryStore()
	repo := &fakeGalleryRepo{failWrite: errors.New("insert failed")}
	svc := NewGalleryService(repo, &fakeActivityRepo{}, &noopTx{}, store, policy.Default())

	_, err := svc.Create(context.Background(), actorWith(model.RoleBlogger), GalleryImageRequest{Title: "Outreach"}, pngUpload(t, 20))
	if err == nil {
		t.Fatalf("Create succeeded despite failing insert")
	}
	if len(store.objects) != 0 {
		t.Fatalf("orphaned objects left: %d", len(store.objects))
	}
	if len(store.deleted) != 1 || !strings.HasPrefix(store.deleted[0], storage.BucketGallery+"/images/") {
		t.Fatalf("deleted = %v", store.deleted)
	}
}

func TestGalleryReplaceRemovesOldImage(t *testing.T) {
	store := newMemoryStore()
	repo := &fakeGalleryRepo{}
	svc := NewGalleryService(repo, &fakeActivityRepo{}, &noopTx{}, store, policy.Default())
	actor := actorWith(model.RoleManager)

	created, err := svc.Create(context.Background(), actor, GalleryImageRequest{Title: "Outreach"}, pngUpload(t, 20))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != model.GalleryStatusActive {
		t.Fatalf("status = %s, want active", created.Status)
	}
	first := repo.images[0].ImagePath

	if _, err := svc.Update(context.Background(), actor, created.ID, GalleryImageRequest{Title: "Outreach day"}, pngUpload(t, 30)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != storage.BucketGallery+"/"+first {
		t.Fatalf("deleted = %v, want old image %s", store.deleted, first)
	}
	if len(store.objects) != 1 {
		t.Fatalf("objects = %d, want 1", len(store.objects))
	}
}

func TestGalleryRequiresImageAndRole(t *testing.T) {
	svc := NewGalleryService(&fakeGalleryRepo{}, &fakeActivityRepo{}, &noopTx{}, newMemoryStore(), policy.Default())

	if _, err := svc.Create(context.Background(), actorWith(model.RoleBlogger), GalleryImageRequest{Title: "x"}, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing image err = %v, want ErrValidation", err)
	}
	if _, err := svc.Create(context.Background(), actorWith(model.RolePHCAdministrator), GalleryImageRequest{Title: "x"}, pngUpload(t, 5)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("phc administrator err = %v, want ErrForbidden", err)
	}
	bad := &ImageUpload{Filename: "notes.txt", Body: strings.NewReader("not an image")}
	if _, err := svc.Create(context.Background(), actorWith(model.RoleBlogger), GalleryImageRequest{Title: "x"}, bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("text upload err = %v, want ErrValidation", err)
	}
}

func TestYouTubeEmbedURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "https://www.youtube.com/embed/dQw4w9WgXcQ", false},
		{"https://youtu.be/dQw4w9WgXcQ", "https://www.youtube.com/embed/dQw4w9WgXcQ", false},
		{"https://m.youtube.com/shorts/dQw4w9WgXcQ", "https://www.youtube.com/embed/dQw4w9WgXcQ", false},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "https://www.youtube.com/embed/dQw4w9WgXcQ", false},
		{"https://vimeo.com/12345", "", true},
		{"https://youtu.be/short", "", true},
		{"javascript:alert(1)", "", true},
	}
	for _, tt := range tests {
		got, err := YouTubeEmbedURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("YouTubeEmbedURL(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("YouTubeEmbedURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMakeExcerpt(t *testing.T) {
	if got := makeExcerpt("First  paragraph\nwraps.\n\nSecond paragraph."); got != "First paragraph wraps." {
		t.Fatalf("makeExcerpt = %q", got)
	}
	long := strings.Repeat("word ", 100)
	got := makeExcerpt(long)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) > excerptLength+3 {
		t.Fatalf("makeExcerpt(long) = %q", got)
	}
}

func TestRenderMarkdown(t *testing.T) {
	html := renderMarkdown("# Title\n\nLine one\nline two")
	if !strings.Contains(html, "<h1>Title</h1>") || !strings.Contains(html, "<br>") {
		t.Fatalf("renderMarkdown = %q", html)
	}
}

func TestAgeBounds(t *testing.T) {
	now := time.Date(2026, 6, 15, 14, 0, 0, 0, time.UTC)
	minAge, maxAge := 30, 40

	after, before, err := ageBounds(now, &minAge, &maxAge)
	if err != nil {
		t.Fatalf("ageBounds: %v", err)
	}
	if want := time.Date(1996, 6, 15, 0, 0, 0, 0, time.UTC); !before.Equal(want) {
		t.Fatalf("bornBefore = %v, want %v", before, want)
	}
	if want := time.Date(1985, 6, 15, 0, 0, 0, 0, time.UTC); !after.Equal(want) {
		t.Fatalf("bornAfter = %v, want %v", after, want)
	}

	if _, _, err := ageBounds(now, &maxAge, &minAge); !errors.Is(err, ErrValidation) {
		t.Fatalf("inverted range err = %v, want ErrValidation", err)
	}
	after, before, err = ageBounds(now, nil, nil)
	if err != nil || after != nil || before != nil {
		t.Fatalf("ageBounds(nil, nil) = %v, %v, %v", after, before, err)
	}
}

func TestSettingsUpdateIsSuperAdminOnly(t *testing.T) {
	repo := newFakeSettingsRepo()
	logs := &fakeActivityRepo{}
	svc := NewSettingsService(repo, logs, &noopTx{}, policy.Default())
	closed := false

	for _, role := range []string{model.RoleAdmin, model.RoleManager, model.RoleUser} {
		_, err := svc.Update(context.Background(), actorWith(role), UpdateSettingsRequest{AllowSignup: &closed})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("Update as %s err = %v, want ErrForbidden", role, err)
		}
	}
	if repo.saves != 0 || len(logs.entries) != 0 {
		t.Fatalf("forbidden update wrote %d saves, %d logs", repo.saves, len(logs.entries))
	}

	view, err := svc.Get(context.Background(), actorWith(model.RoleAdmin))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !view.ReadOnly {
		t.Fatalf("admin settings view is editable")
	}

	res, err := svc.Update(context.Background(), actorWith(model.RoleSuperAdmin), UpdateSettingsRequest{AllowSignup: &closed})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res.Signup.AllowSignup || res.ReadOnly {
		t.Fatalf("settings = %+v", res)
	}
	if got := logs.types(); len(got) != 1 || got[0] != model.ActivitySettingsUpdate {
		t.Fatalf("activity = %v", got)
	}
}

func TestCreateInvitationLimitsRole(t *testing.T) {
	repo := newFakeSettingsRepo()
	svc := NewSettingsService(repo, &fakeActivityRepo{}, &noopTx{}, policy.Default())

	if _, err := svc.CreateInvitation(context.Background(), actorWith(model.RoleAdmin), CreateInvitationRequest{Role: model.RoleSuperAdmin}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("admin inviting super admin err = %v, want ErrForbidden", err)
	}
	inv, err := svc.CreateInvitation(context.Background(), actorWith(model.RoleAdmin), CreateInvitationRequest{Email: "New@Example.com"})
	if err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}
	if inv.Role != model.RoleUser || inv.Email != "new@example.com" || len(inv.Code) != 24 {
		t.Fatalf("invitation = %+v", inv)
	}
}
