package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"spendigo/internal/log"
)

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("plain http", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sources", nil))

		want := map[string]string{
			"X-Content-Type-Options":  "nosniff",
			"X-Frame-Options":         "DENY",
			"Cache-Control":           "no-store",
			"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		}
		for k, v := range want {
			if got := rec.Header().Get(k); got != v {
				t.Errorf("%s = %q, want %q", k, got, v)
			}
		}
		if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
			t.Errorf("HSTS set over plain http: %q", got)
		}
	})

	t.Run("tls", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/sources", nil)
		req.TLS = &tls.ConnectionState{}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
			t.Errorf("HSTS = %q", got)
		}
	})
}

func TestDetector_IsSuspicious(t *testing.T) {
	d := NewDetector(log.Nop())
	tests := []struct {
		name   string
		method string
		target string
		ua     string
		want   bool
	}{
		{"normal api call", http.MethodGet, "/api/expenses?source=all", "spendigoctl/1.0", false},
		{"curl is fine", http.MethodPost, "/api/voice/extract", "curl/8.5.0", false},
		{"path traversal", http.MethodGet, "/api/../../etc/passwd", "", true},
		{"dotenv probe", http.MethodGet, "/.env", "", true},
		{"sql in query", http.MethodGet, "/api/expenses?source=1%20union%20select", "", true},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			req.Header.Set("User-Agent", tt.ua)
			if got := d.IsSuspicious(req); got != tt.want {
				t.Errorf("IsSuspicious() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetector_Middleware(t *testing.T) {
	d := NewDetector(log.Nop())
	called := false
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wp-admin", nil))
	if rec.Code != http.StatusBadRequest || called {
		t.Fatalf("probe got status %d, handler called %v", rec.Code, called)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if !called {
		t.Fatal("normal request did not reach handler")
	}
}

func TestDetector_ClientIP(t *testing.T) {
	d := NewDetector(log.Nop())
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct public peer ignores headers", "203.0.113.9:5000", "1.2.3.4", "", "203.0.113.9"},
		{"trusted proxy forwards", "10.0.0.2:5000", "198.51.100.7, 10.0.0.2", "", "198.51.100.7"},
		{"trusted proxy real ip", "127.0.0.1:5000", "", "198.51.100.8", "198.51.100.8"},
		{"trusted proxy garbage header", "127.0.0.1:5000", "not-an-ip", "", "127.0.0.1"},
		{"unparseable remote", "somewhere", "", "", "somewhere"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}

	if err := d.AddTrustedProxy("bogus"); err == nil {
		t.Error("AddTrustedProxy accepted an invalid CIDR")
	}
}
