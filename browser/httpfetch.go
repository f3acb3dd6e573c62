package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	tls2 "github.com/refraction-networking/utls"

	"github.com/use-agent/propscout/config"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// maxBodySize caps a fetched document.
const maxBodySize = 10 * 1024 * 1024

// errNoDocument is returned by Locate before the first successful Goto.
var errNoDocument = errors.New("page has no document loaded")

// HTTPLauncher fetches pages over HTTP with a Chrome TLS fingerprint and
// evaluates locators against the static DOM. It runs no JavaScript.
type HTTPLauncher struct {
	cfg config.BrowserConfig
}

// NewHTTPLauncher creates a launcher for the HTTP backend.
func NewHTTPLauncher(cfg config.BrowserConfig) *HTTPLauncher {
	return &HTTPLauncher{cfg: cfg}
}

func (l *HTTPLauncher) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr)
		},
	}
	if l.cfg.Proxy != "" {
		proxyURL, err := url.Parse(l.cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", l.cfg.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	ua := l.cfg.UserAgent
	if ua == "" {
		ua = chromeUA
	}
	return &httpSession{client: &http.Client{Transport: transport}, userAgent: ua, cfg: l.cfg}, nil
}

type httpSession struct {
	client    *http.Client
	userAgent string
	cfg       config.BrowserConfig
}

func (s *httpSession) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &httpPage{session: s}, nil
}

func (s *httpSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

type httpPage struct {
	session *httpSession
	doc     *Document
	url     string
}

// Goto fetches url and replaces the current document. The previously loaded
// URL is sent as Referer. The previous document is discarded even when the
// fetch fails.
func (p *httpPage) Goto(ctx context.Context, target string) error {
	referer := p.url
	p.doc, p.url = nil, ""

	if p.session.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.session.cfg.NavigationTimeout)
		defer cancel()
	}

	body, err := p.fetch(ctx, target, referer)
	if err != nil {
		return err
	}
	doc, err := ParseDocument(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("httpfetch: %w", err)
	}
	p.doc, p.url = doc, target
	return nil
}

func (p *httpPage) fetch(ctx context.Context, target, referer string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", p.session.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := p.session.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(target, resp.StatusCode); err != nil {
		return nil, fmt.Errorf("httpfetch: %w", err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("httpfetch: read body: %w", err)
	}
	return body, nil
}

func (p *httpPage) Locate(ctx context.Context, loc Locator) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.doc == nil {
		return nil, errNoDocument
	}
	return p.doc.Locate(loc)
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint via
// utls. ALPN is restricted to http/1.1 because net/http cannot speak HTTP/2
// over a connection returned from DialTLSContext.
func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	spec, err := tls2.UTLSIdToSpec(tls2.HelloChrome_Auto)
	if err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("chrome hello spec: %w", err)
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls2.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls2.UClient(rawConn, &tls2.Config{ServerName: host}, tls2.HelloCustom)
	if err := tlsConn.ApplyPreset(&spec); err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("apply chrome hello: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
