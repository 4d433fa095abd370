package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(10, time.Second)
	connID := "test-conn-1"

	for i := 0; i < 10; i++ {
		if !limiter.Allow(connID) {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	if limiter.Allow(connID) {
		t.Error("11th request should be denied")
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	limiter := NewRateLimiter(2, 100*time.Millisecond)
	connID := "test-conn-2"

	if !limiter.Allow(connID) || !limiter.Allow(connID) {
		t.Fatal("First two requests should be allowed")
	}
	if limiter.Allow(connID) {
		t.Error("Third request should be denied")
	}

	time.Sleep(150 * time.Millisecond)

	if !limiter.Allow(connID) {
		t.Error("Request after the window should be allowed")
	}
}

func TestRateLimiter_PerConnection(t *testing.T) {
	limiter := NewRateLimiter(5, time.Second)

	for i := 0; i < 5; i++ {
		limiter.Allow("conn-1")
	}
	if limiter.Allow("conn-1") {
		t.Error("conn-1 should be rate limited")
	}

	for i := 0; i < 5; i++ {
		if !limiter.Allow("conn-2") {
			t.Errorf("conn-2 request %d should be allowed", i+1)
		}
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(10, 100*time.Millisecond)

	for i := 0; i < 5; i++ {
		limiter.Allow(fmt.Sprintf("conn-%d", i))
	}
	assert.Equal(t, 5, limiter.tracked())

	time.Sleep(200 * time.Millisecond)
	limiter.Allow("conn-fresh")
	limiter.Cleanup()

	assert.Equal(t, 1, limiter.tracked(), "only the fresh connection survives")

	limiter.RemoveConnection("conn-fresh")
	assert.Equal(t, 0, limiter.tracked())
}

func TestConnectionHealth_IsInactive(t *testing.T) {
	health := NewConnectionHealth()
	connID := "test-conn"

	if health.IsInactive(connID, time.Minute) {
		t.Error("Untracked connection should not be inactive")
	}

	health.UpdateActivity(connID)
	if health.IsInactive(connID, time.Minute) {
		t.Error("Recently active connection should not be inactive")
	}

	health.mu.Lock()
	health.lastActivity[connID] = time.Now().Add(-2 * time.Minute)
	health.mu.Unlock()

	if !health.IsInactive(connID, time.Minute) {
		t.Error("Connection with old activity should be inactive")
	}
}

func TestConnectionHealth_GetInactiveConnections(t *testing.T) {
	health := NewConnectionHealth()

	health.UpdateActivity("active-1")
	health.UpdateActivity("active-2")

	health.mu.Lock()
	health.lastActivity["inactive-1"] = time.Now().Add(-6 * time.Minute)
	health.lastActivity["inactive-2"] = time.Now().Add(-10 * time.Minute)
	health.mu.Unlock()

	inactive := health.GetInactiveConnections(5 * time.Minute)
	assert.ElementsMatch(t, []string{"inactive-1", "inactive-2"}, inactive)

	health.RemoveConnection("inactive-1")
	assert.Equal(t, []string{"inactive-2"}, health.GetInactiveConnections(5*time.Minute))
}

func TestValidateMessageType(t *testing.T) {
	valid := []string{"ping", "create_room", "join_room", "ready", "play_card",
		"leave_room", "join", "send_message"}
	for _, msgType := range valid {
		assert.NoError(t, ValidateMessageType(msgType), msgType)
	}

	invalid := []string{"invalid", "create_game", "PING", ""}
	for _, msgType := range invalid {
		err := ValidateMessageType(msgType)
		if assert.Error(t, err, msgType) {
			assert.Contains(t, err.Error(), "INVALID_MESSAGE_TYPE")
		}
	}
}

func TestCorsAndLogMiddleware(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	s := &Server{log: log}

	h := s.logMiddleware(s.corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/health", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	entry := hook.LastEntry()
	if assert.NotNil(t, entry) {
		assert.Equal(t, "HTTP request", entry.Message)
		assert.Equal(t, http.StatusTeapot, entry.Data["status"])
		assert.Equal(t, "/health", entry.Data["path"])
	}
}
