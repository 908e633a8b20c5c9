package fetch

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != defaultUserAgent {
			t.Errorf("user agent: %s", ua)
		}
		w.Write([]byte(`{"value": 42}`))
	}))
	defer srv.Close()

	var out struct {
		Value int `json:"value"`
	}
	s := NewSession()
	if err := s.GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.Value != 42 {
		t.Fatalf("value: %d", out.Value)
	}
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s := NewSession(WithMaxRetries(5))
	body, err := s.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(body) != "ok" || atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("body %q calls %d", body, calls)
	}
}

func TestGet_ClientFaultIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewSession(WithMaxRetries(5))
	_, err := s.Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsClientFault(err) {
		t.Fatalf("not classified as client fault: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("4xx was retried: %d calls", calls)
	}
}

func TestGetCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ts,mw\n2024-06-01T00:00:00Z,480\n2024-06-01T00:15:00Z,495,extra\n"))
	}))
	defer srv.Close()

	s := NewSession()
	rows, err := s.GetCSV(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(rows) != 3 || rows[1][1] != "480" {
		t.Fatalf("rows: %#v", rows)
	}
}

func TestSession_KeepsCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc"})
			w.Write([]byte("ok"))
			return
		}
		c, err := r.Cookie("sid")
		if err != nil || c.Value != "abc" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	s := NewSession()
	if _, err := s.Get(context.Background(), srv.URL+"/login"); err != nil {
		t.Fatalf("login: %v", err)
	}
	body, err := s.Get(context.Background(), srv.URL+"/data")
	if err != nil {
		t.Fatalf("data: %v", err)
	}
	if string(body) != "data" {
		t.Fatalf("body: %q", body)
	}
}

func TestDialSnapshot(t *testing.T) {
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Wait for the subscribe frame, then push one snapshot.
		if _, msg, err := conn.ReadMessage(); err != nil || string(msg) != "sub" {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"snapshot":true}`))
	}))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]
	msg, err := DialSnapshot(context.Background(), wsURL, []byte("sub"), 5*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if string(msg) != `{"snapshot":true}` {
		t.Fatalf("msg: %s", msg)
	}
}

func TestWithLegacyTLS_KeepsTransportDefaults(t *testing.T) {
	s := NewSession(WithLegacyTLS())
	tr, ok := s.client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport type %T", s.client.Transport)
	}
	if tr.TLSClientConfig == nil || tr.TLSClientConfig.MinVersion != tls.VersionTLS10 {
		t.Fatalf("min version not lowered: %+v", tr.TLSClientConfig)
	}
	if tr.Proxy == nil {
		t.Fatal("proxy resolution dropped from cloned transport")
	}
	if tr.DialContext == nil {
		t.Fatal("dialer dropped from cloned transport")
	}
}
