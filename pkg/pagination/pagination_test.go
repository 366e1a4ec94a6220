package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestParse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", 1, 20},
		{"?page=3&limit=10", 3, 10},
		{"?page=0&limit=0", 1, 20},
		{"?page=abc&limit=500", 1, 100},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/items"+tt.query, nil)
		p := Parse(c)
		if p.Page != tt.wantPage || p.Limit != tt.wantLimit {
			t.Fatalf("Parse(%q) = %d/%d, want %d/%d", tt.query, p.Page, p.Limit, tt.wantPage, tt.wantLimit)
		}
		if p.Offset != (p.Page-1)*p.Limit {
			t.Fatalf("Parse(%q).Offset = %d", tt.query, p.Offset)
		}
	}
}

func TestMeta(t *testing.T) {
	m := New(2, 20).Meta(41)
	if m.TotalPages != 3 || m.Total != 41 || m.Page != 2 {
		t.Fatalf("Meta = %+v", m)
	}
	if m := New(1, 20).Meta(0); m.TotalPages != 0 {
		t.Fatalf("empty Meta = %+v", m)
	}
}
