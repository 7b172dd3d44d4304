package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResolveMintsAndRoundTrips(t *testing.T) {
	mgr := NewManager("secret", "test", time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/polls/1/votes", nil)
	id, isNew := mgr.Resolve(req)
	if !isNew {
		t.Fatalf("expected new session for cookie-less request")
	}
	if id == "" {
		t.Fatalf("expected non-empty session id")
	}

	rec := httptest.NewRecorder()
	if err := mgr.Issue(rec, id); err != nil {
		t.Fatalf("issue cookie: %v", err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName {
		t.Fatalf("expected session cookie, got %+v", cookies)
	}
	if !cookies[0].HttpOnly || cookies[0].Path != "/" {
		t.Fatalf("cookie must be http-only and scoped to /: %+v", cookies[0])
	}

	next := httptest.NewRequest(http.MethodPost, "/polls/1/votes", nil)
	next.AddCookie(cookies[0])

	got, isNew := mgr.Resolve(next)
	if isNew {
		t.Fatalf("expected existing session to resolve")
	}
	if got != id {
		t.Fatalf("expected session %q, got %q", id, got)
	}
}

func TestResolveRejectsTamperedToken(t *testing.T) {
	mgr := NewManager("secret", "test", time.Hour)
	other := NewManager("other-secret", "test", time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/polls/1/votes", nil)
	id, _ := mgr.Resolve(req)

	rec := httptest.NewRecorder()
	if err := other.Issue(rec, id); err != nil {
		t.Fatalf("issue cookie: %v", err)
	}

	forged := httptest.NewRequest(http.MethodPost, "/polls/1/votes", nil)
	forged.AddCookie(rec.Result().Cookies()[0])

	got, isNew := mgr.Resolve(forged)
	if !isNew {
		t.Fatalf("expected tampered token to be treated as absent")
	}
	if got == id {
		t.Fatalf("expected a fresh session id")
	}
}

func TestResolveTreatsExpiredAsAbsent(t *testing.T) {
	mgr := NewManager("secret", "test", -time.Minute)

	req := httptest.NewRequest(http.MethodPost, "/polls/1/votes", nil)
	id, _ := mgr.Resolve(req)

	rec := httptest.NewRecorder()
	if err := mgr.Issue(rec, id); err != nil {
		t.Fatalf("issue cookie: %v", err)
	}

	expired := httptest.NewRequest(http.MethodPost, "/polls/1/votes", nil)
	expired.AddCookie(rec.Result().Cookies()[0])

	if _, isNew := mgr.Resolve(expired); !isNew {
		t.Fatalf("expected expired token to mint a new session")
	}
}
