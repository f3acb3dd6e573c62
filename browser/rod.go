package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/propscout/config"
)

// RodLauncher starts a dedicated headless Chromium per session.
type RodLauncher struct {
	cfg config.BrowserConfig
}

// NewRodLauncher creates a launcher for the Rod backend.
func NewRodLauncher(cfg config.BrowserConfig) *RodLauncher {
	return &RodLauncher{cfg: cfg}
}

// Launch starts Chromium and connects to it over CDP. On any failure the
// half-started process is killed before returning.
func (l *RodLauncher) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lch := launcher.New().
		Headless(l.cfg.Headless).
		NoSandbox(l.cfg.NoSandbox)
	if l.cfg.BrowserBin != "" {
		lch = lch.Bin(l.cfg.BrowserBin)
	}
	if l.cfg.Proxy != "" {
		lch = lch.Proxy(l.cfg.Proxy)
	}

	lch.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	lch.Delete(flags.Flag("enable-automation"))
	lch.Set(flags.Flag("disable-features"), "TranslateUI")
	lch.Set(flags.Flag("disable-dev-shm-usage"))
	lch.Set(flags.Flag("disable-extensions"))
	lch.Set(flags.Flag("disable-component-update"))
	lch.Set(flags.Flag("no-first-run"))

	controlURL, err := lch.Launch()
	if err != nil {
		lch.Kill()
		lch.Cleanup()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		lch.Kill()
		lch.Cleanup()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL)

	return &rodSession{cfg: l.cfg, launcher: lch, browser: b}, nil
}

type rodSession struct {
	cfg      config.BrowserConfig
	launcher *launcher.Launcher
	browser  *rod.Browser

	mu      sync.Mutex
	routers []*rod.HijackRouter
	closed  bool
}

func (s *rodSession) NewPage(ctx context.Context) (Page, error) {
	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	// Drop the creation context so later calls are bound per operation.
	page = page.Context(context.Background())

	if s.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if router := blockResources(page, s.cfg.BlockedResourceTypes, s.cfg.BlockTrackers); router != nil {
		s.mu.Lock()
		s.routers = append(s.routers, router)
		s.mu.Unlock()
	}

	return &rodPage{page: page, cfg: s.cfg}, nil
}

// Close stops interceptors, closes the browser over CDP and kills the
// process. The process is killed even if the CDP close fails.
func (s *rodSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, r := range s.routers {
		if err := r.Stop(); err != nil {
			slog.Debug("hijack router stop failed", "error", err)
		}
	}
	if err := s.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	s.launcher.Kill()
	s.launcher.Cleanup()
	return errors.Join(errs...)
}

type rodPage struct {
	page *rod.Page
	cfg  config.BrowserConfig
	url  string // last successfully loaded URL
}

// navigationStatusJS reads the main document's HTTP status without CDP
// network listeners, which conflict with the hijack router. 0 if unknown.
const navigationStatusJS = `() => {
	try {
		const entries = performance.getEntriesByType("navigation");
		if (entries.length > 0) return entries[0].responseStatus || 0;
	} catch (e) {}
	return 0;
}`

// navigationHeaders builds the extra request headers for a navigation.
func navigationHeaders(referer string) proto.NetworkHeaders {
	h := proto.NetworkHeaders{
		"Accept-Language": gson.New("en-US,en;q=0.9"),
	}
	if referer != "" {
		h["Referer"] = gson.New(referer)
	}
	return h
}

// Goto navigates and waits for the load event, then waits briefly for
// client-side rendering to settle. The settle step is best-effort.
func (p *rodPage) Goto(ctx context.Context, url string) error {
	referer := p.url
	p.url = ""

	navCtx, cancel := context.WithTimeout(ctx, p.cfg.NavigationTimeout)
	defer cancel()

	pg := p.page.Context(navCtx)
	if err := (proto.NetworkSetExtraHTTPHeaders{Headers: navigationHeaders(referer)}).Call(pg); err != nil {
		slog.Debug("extra headers not applied", "url", url, "error", err)
	}
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	if res, err := pg.Eval(navigationStatusJS); err == nil {
		if err := checkStatus(url, res.Value.Int()); err != nil {
			return err
		}
	}

	if p.cfg.SettleTimeout > 0 {
		settleCtx, cancelSettle := context.WithTimeout(ctx, p.cfg.SettleTimeout)
		defer cancelSettle()
		if err := p.page.Context(settleCtx).WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
			slog.Debug("DOM did not settle, proceeding with current DOM", "url", url, "error", err)
		}
	}
	p.url = url
	return nil
}

func (p *rodPage) Locate(ctx context.Context, loc Locator) ([]Element, error) {
	pg := p.page.Context(ctx)

	var (
		els rod.Elements
		err error
	)
	switch loc.Kind {
	case XPath:
		els, err = pg.ElementsX(loc.Expr)
	case CSS:
		els, err = pg.Elements(loc.Expr)
	default:
		return nil, fmt.Errorf("unknown locator kind %d", loc.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", loc, err)
	}

	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = rodElement{el: el}
	}
	return out, nil
}

type rodElement struct {
	el *rod.Element
}

func (e rodElement) Attribute(name string) (string, bool, error) {
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

// TextContent reads the DOM textContent property rather than Rod's Text,
// which returns the rendered innerText.
func (e rodElement) TextContent() (string, error) {
	res, err := e.el.Eval(`() => this.textContent`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}
