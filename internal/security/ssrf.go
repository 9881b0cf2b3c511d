// Package security guards outbound HTTP calls the decision engine makes to
// external data sources and LLM providers against SSRF: private/loopback/
// link-local destinations are rejected before a request is ever dialed.
package security

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// ValidateURL rejects schemes other than http/https and any host that
// resolves to a private, loopback, link-local, or unspecified address.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("URL has no host")
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		// Let DNS failures surface at request time rather than here.
		return nil
	}
	for _, ip := range ips {
		if isBlockedIP(ip) {
			return fmt.Errorf("URL host %q resolves to a disallowed address %s", host, ip)
		}
	}
	return nil
}

func isBlockedIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// SafeHTTPClient returns an http.Client whose dialer re-validates the
// destination address for every connection, including ones made after
// following a redirect, closing the TOCTOU gap a one-shot ValidateURL leaves.
func SafeHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			for _, ip := range resolveHost(host) {
				if isBlockedIP(ip) {
					return nil, fmt.Errorf("refusing to dial disallowed address %s", addr)
				}
			}
			return dialer.DialContext(ctx, network, addr)
		},
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if err := ValidateURL(req.URL.String()); err != nil {
				return err
			}
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

func resolveHost(host string) []net.IP {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil
	}
	return ips
}

// SafeGet validates the URL, performs a GET with the given timeout, and
// returns the raw response for the caller to drain and close.
func SafeGet(rawURL string, timeout time.Duration) (*http.Response, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	client := SafeHTTPClient(timeout)
	return client.Get(rawURL)
}

// DrainAndClose consumes and discards the body before closing it so the
// underlying connection can be reused by the client's transport pool.
func DrainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
