package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"spendigo/internal/log"
	"spendigo/internal/metrics"
)

var probePatterns = []string{
	"../", "..\\", ".env", "wp-admin", "phpmyadmin",
	"admin.php", "config.php", ".git", ".ssh",
	"eval(", "javascript:", "<script", "union select",
	"etc/passwd", "cmd.exe",
}

var scannerAgents = []string{
	"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab",
}

const maxURLLength = 2048

// Detector resolves client addresses behind trusted proxies and flags
// requests that look like scans.
type Detector struct {
	mu             sync.RWMutex
	trustedProxies []*net.IPNet
	logger         *log.Logger
}

func NewDetector(logger *log.Logger) *Detector {
	if logger == nil {
		logger = log.Nop()
	}
	d := &Detector{logger: logger.WithComponent(log.ComponentHTTP)}
	for _, cidr := range []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128"} {
		if err := d.AddTrustedProxy(cidr); err != nil {
			panic(err)
		}
	}
	return d
}

// AddTrustedProxy adds a trusted proxy network
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.mu.Lock()
	d.trustedProxies = append(d.trustedProxies, network)
	d.mu.Unlock()
	return nil
}

// IsSuspicious reports whether r matches a probe path, query, scanner
// user agent, unusual method or oversized URL.
func (d *Detector) IsSuspicious(r *http.Request) bool {
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	if q, err := url.QueryUnescape(query); err == nil {
		query = q
	}
	for _, p := range probePatterns {
		if strings.Contains(path, p) || strings.Contains(query, p) {
			return true
		}
	}

	ua := strings.ToLower(r.Header.Get("User-Agent"))
	for _, a := range scannerAgents {
		if strings.Contains(ua, a) {
			return true
		}
	}

	switch r.Method {
	case "TRACE", "TRACK", "DEBUG", "CONNECT":
		return true
	}
	return len(r.URL.String()) > maxURLLength
}

// Middleware rejects suspicious requests with 400 before they reach a
// handler.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.IsSuspicious(r) {
			metrics.HTTPSuspicious.Inc()
			d.logger.WarnContext(r.Context(), "Rejected suspicious request",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, d.ClientIP(r))
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the caller's address, honouring X-Forwarded-For and
// X-Real-IP only when the direct peer is a trusted proxy.
func (d *Detector) ClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	peer := net.ParseIP(directIP)
	if peer == nil || !d.isTrustedProxy(peer) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
