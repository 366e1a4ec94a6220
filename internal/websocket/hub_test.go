package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		ServeWs(hub, c, "admin")
	})
	return httptest.NewServer(r)
}

func TestPublishReachesClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	srv := newTestServer(t, hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d, want 1", hub.ClientCount())
	}

	hub.Publish(EventClockIn, map[string]string{"psn": "P001"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	if msg.Event != EventClockIn || msg.Data["psn"] != "P001" {
		t.Fatalf("message = %+v", msg)
	}
}

func TestOriginCheck(t *testing.T) {
	hub := NewHub("http://localhost:5173", "https://portal.kwsphcda.gov.ng/")
	go hub.Run()
	srv := newTestServer(t, hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	cases := []struct {
		origin string
		ok     bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"https://portal.kwsphcda.gov.ng", true},
		{srv.URL, true},
		{"https://evil.example", false},
		{"http://localhost:5174", false},
	}
	for _, tc := range cases {
		header := http.Header{}
		if tc.origin != "" {
			header.Set("Origin", tc.origin)
		}
		conn, resp, err := websocket.DefaultDialer.Dial(url, header)
		if tc.ok {
			if err != nil {
				t.Fatalf("origin %q: dial: %v", tc.origin, err)
			}
			conn.Close()
			continue
		}
		if err == nil {
			conn.Close()
			t.Fatalf("origin %q: connected, want rejection", tc.origin)
		}
		if resp == nil || resp.StatusCode != http.StatusForbidden {
			t.Fatalf("origin %q: response = %v, want 403", tc.origin, resp)
		}
	}
}
