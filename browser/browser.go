// Package browser is the page-rendering collaborator of the extraction core.
//
// A Launcher starts a Session, a Session opens Pages, and a Page is navigated
// and queried with Locators. Two backends implement the interfaces: a headless
// Chromium driven by Rod, and a plain HTTP fetcher that evaluates locators
// against the static DOM.
package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/use-agent/propscout/config"
)

// Locator match failures. The scraper treats both as field-level misses.
var (
	ErrNoMatch        = errors.New("locator matched no element")
	ErrAmbiguousMatch = errors.New("locator matched more than one element")
)

// ErrHTTPStatus is wrapped by Goto when the document was served with a
// status of 400 or above.
var ErrHTTPStatus = errors.New("document served with error status")

// Launcher starts browser sessions.
type Launcher interface {
	// Launch acquires a fresh session. The caller owns it and must Close it.
	Launch(ctx context.Context) (Session, error)
}

// Session is one exclusively-owned browser instance.
type Session interface {
	NewPage(ctx context.Context) (Page, error)

	// Close releases every resource held by the session, including the
	// browser process. It is safe to call on a partially initialised session.
	Close() error
}

// Page is a single tab. It is reused serially across navigations.
type Page interface {
	// Goto loads url and returns once the document is ready to be queried.
	// A document served with status 400 or above fails with ErrHTTPStatus
	// on every backend. The previously loaded URL is sent as Referer.
	Goto(ctx context.Context, url string) error

	// Locate returns every element matching loc, in document order.
	Locate(ctx context.Context, loc Locator) ([]Element, error)
}

// Element is a matched DOM element.
type Element interface {
	// Attribute returns the attribute value and whether it is present.
	Attribute(name string) (string, bool, error)

	// TextContent returns the raw DOM textContent, whitespace untouched.
	TextContent() (string, error)
}

// NewLauncher returns the launcher for the configured backend.
func NewLauncher(cfg config.BrowserConfig) (Launcher, error) {
	switch cfg.Backend {
	case "rod", "":
		return NewRodLauncher(cfg), nil
	case "http":
		return NewHTTPLauncher(cfg), nil
	default:
		return nil, fmt.Errorf("unknown browser backend %q", cfg.Backend)
	}
}

// checkStatus reports a document status of 400 or above as ErrHTTPStatus.
// A zero status means the backend could not observe it and is accepted.
func checkStatus(url string, status int) error {
	if status >= 400 {
		return fmt.Errorf("%w: HTTP %d for %s", ErrHTTPStatus, status, url)
	}
	return nil
}
