package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/use-agent/propscout/browser"
	"github.com/use-agent/propscout/config"
)

const testOrigin = "https://www.bayut.com"

const testSearchURL = testOrigin + "/to-rent/villas/uae/?rent_frequency=monthly&price_min=5000&price_max=6000"

func testConfig() config.ScraperConfig {
	return config.ScraperConfig{
		BaseOrigin:         testOrigin,
		DefaultSearchURL:   testSearchURL,
		MaxProperties:      5,
		MaxPropertiesLimit: 25,
		DetailPathSegment:  "property/details",
	}
}

// fixtureLauncher serves in-memory HTML through the static DOM engine and
// records session lifecycle so tests can check for leaks.
type fixtureLauncher struct {
	pages     map[string]string
	launchErr error
	closeErr  error
	navErr    map[string]error
	locateErr error

	mu       sync.Mutex
	launched int
	open     int
	visited  []string
}

func newFixtureLauncher(pages map[string]string) *fixtureLauncher {
	return &fixtureLauncher{pages: pages, navErr: map[string]error{}}
}

func (l *fixtureLauncher) Launch(ctx context.Context) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched++
	l.open++
	return &fixtureSession{l: l}, nil
}

func (l *fixtureLauncher) openSessions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}

func (l *fixtureLauncher) visits() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.visited...)
}

type fixtureSession struct {
	l      *fixtureLauncher
	closed bool
}

func (s *fixtureSession) NewPage(ctx context.Context) (browser.Page, error) {
	return &fixturePage{l: s.l}, nil
}

func (s *fixtureSession) Close() error {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.l.open--
	}
	return s.l.closeErr
}

type fixturePage struct {
	l   *fixtureLauncher
	doc *browser.Document
}

func (p *fixturePage) Goto(ctx context.Context, url string) error {
	p.doc = nil
	p.l.mu.Lock()
	p.l.visited = append(p.l.visited, url)
	navErr := p.l.navErr[url]
	p.l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if navErr != nil {
		return navErr
	}
	body, ok := p.l.pages[url]
	if !ok {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED %s", url)
	}
	doc, err := browser.ParseDocument(strings.NewReader(body))
	if err != nil {
		return err
	}
	p.doc = doc
	return nil
}

func (p *fixturePage) Locate(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	if p.l.locateErr != nil {
		return nil, p.l.locateErr
	}
	if p.doc == nil {
		return nil, errors.New("no document")
	}
	return p.doc.Locate(loc)
}

// searchPage renders a results page with one anchor per href.
func searchPage(hrefs ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><main><ul>`)
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<li><article><a href="%s">Villa</a></article></li>`, h)
	}
	b.WriteString(`</ul></main></body></html>`)
	return b.String()
}

// detailPage renders a detail page. Empty arguments omit that section.
func detailPage(price, header, description string) string {
	var b strings.Builder
	b.WriteString(`<html><body>`)
	if price != "" {
		fmt.Fprintf(&b, `<div class="_2923a568 fc84e39c cd769dae">%s</div>`, price)
	}
	if header != "" {
		fmt.Fprintf(&b, `<div aria-label="Property header">%s</div>`, header)
	}
	if description != "" {
		fmt.Fprintf(&b, `<div aria-label="Property description"><span>%s</span></div>`, description)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func detailPath(i int) string {
	return fmt.Sprintf("/property/details-%d.html", i)
}

// site builds a search page linking n detail pages, all of them present.
func site(n int) map[string]string {
	pages := make(map[string]string, n+1)
	hrefs := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		hrefs = append(hrefs, detailPath(i))
		pages[testOrigin+detailPath(i)] = detailPage(
			fmt.Sprintf("AED %d,000 Monthly", i),
			fmt.Sprintf("Villa %d, Dubai Hills", i),
			fmt.Sprintf("Description %d", i),
		)
	}
	pages[testSearchURL] = searchPage(hrefs...)
	return pages
}
