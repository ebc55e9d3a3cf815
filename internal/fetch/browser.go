// Package fetch - browser.go provides the headless browser session used to fill application forms.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/jonathan/apply-agent/internal/logger"
)

// DefaultActionTimeout bounds a single browser action.
const DefaultActionTimeout = 30 * time.Second

// ErrSessionClosed is returned by actions on a closed session.
var ErrSessionClosed = errors.New("browser session closed")

// Element is a handle to a DOM node found by a Session.
// Handle is owned by the Session that produced it.
type Element struct {
	Selector string
	Handle   any
}

// Session drives a single browser page.
type Session interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	// Find returns the first element matching any selector, tried in order.
	Find(ctx context.Context, selectors ...string) (Element, bool, error)
	FindAll(ctx context.Context, selector string) ([]Element, error)
	Fill(ctx context.Context, el Element, value string) error
	Click(ctx context.Context, el Element) error
	UploadFile(ctx context.Context, el Element, path string) error
	ReadText(ctx context.Context, el Element) (string, error)
	Attr(ctx context.Context, el Element, name string) (string, error)
	Value(ctx context.Context, el Element) (string, error)
	// PageText returns the visible body text of the current page.
	PageText(ctx context.Context) (string, error)
	// SaveState persists cookies so a later session can reuse the login.
	SaveState(ctx context.Context, path string) error
	Close() error
}

// SessionOptions configures a new browser session.
type SessionOptions struct {
	Headless  bool
	StatePath string
	Timeout   time.Duration
	UserAgent string
}

// SessionFactory opens browser sessions.
type SessionFactory interface {
	Open(ctx context.Context, opts SessionOptions) (Session, error)
}

// BrowserFactory opens chromedp-backed sessions.
// Requires Chrome/Chromium to be installed on the system.
type BrowserFactory struct {
	// ExtraFlags are appended to the default allocator flags.
	ExtraFlags []chromedp.ExecAllocatorOption
}

// Open launches a browser and restores cookies from opts.StatePath when present.
func (f *BrowserFactory) Open(ctx context.Context, opts SessionOptions) (Session, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultActionTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	allocOpts = append(allocOpts, f.ExtraFlags...)

	// The browser outlives individual calls, so it is not bound to ctx.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		ctx:     browserCtx,
		timeout: opts.Timeout,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}

	// Starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		s.cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	if opts.StatePath != "" {
		if err := s.loadState(ctx, opts.StatePath); err != nil {
			logger.FromContext(ctx).Warn("Failed to restore browser state",
				logger.String("path", opts.StatePath),
				logger.Error(err))
		}
	}
	return s, nil
}

type chromeSession struct {
	ctx     context.Context
	timeout time.Duration
	cancel  func()
	closed  bool
}

// run executes actions on the page, bounded by the session timeout and the caller's ctx.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.closed {
		return ErrSessionClosed
	}
	opCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(opCtx, actions...)
}

func nodeOf(el Element) (*cdp.Node, error) {
	node, ok := el.Handle.(*cdp.Node)
	if !ok || node == nil {
		return nil, fmt.Errorf("element %q has no browser node", el.Selector)
	}
	return node, nil
}

func nodeIDs(node *cdp.Node) []cdp.NodeID {
	return []cdp.NodeID{node.NodeID}
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	logger.FromContext(ctx).Debug("Navigating", logger.String("url", url))
	if err := s.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body")); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (s *chromeSession) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

func (s *chromeSession) Find(ctx context.Context, selectors ...string) (Element, bool, error) {
	for _, sel := range selectors {
		found, err := s.FindAll(ctx, sel)
		if err != nil {
			return Element{}, false, err
		}
		if len(found) > 0 {
			return found[0], true, nil
		}
	}
	return Element{}, false, nil
}

func (s *chromeSession) FindAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, Element{Selector: selector, Handle: n})
	}
	return elements, nil
}

func (s *chromeSession) Fill(ctx context.Context, el Element, value string) error {
	node, err := nodeOf(el)
	if err != nil {
		return err
	}
	var actions []chromedp.Action
	if strings.EqualFold(node.NodeName, "select") {
		actions = []chromedp.Action{chromedp.SetValue(nodeIDs(node), value, chromedp.ByNodeID)}
	} else {
		actions = []chromedp.Action{
			chromedp.Clear(nodeIDs(node), chromedp.ByNodeID),
			chromedp.SendKeys(nodeIDs(node), value, chromedp.ByNodeID),
		}
	}
	if err := s.run(ctx, actions...); err != nil {
		return fmt.Errorf("failed to fill %q: %w", el.Selector, err)
	}
	return nil
}

func (s *chromeSession) Click(ctx context.Context, el Element) error {
	node, err := nodeOf(el)
	if err != nil {
		return err
	}
	if err := s.run(ctx, chromedp.Click(nodeIDs(node), chromedp.ByNodeID)); err != nil {
		return fmt.Errorf("failed to click %q: %w", el.Selector, err)
	}
	return nil
}

func (s *chromeSession) UploadFile(ctx context.Context, el Element, path string) error {
	node, err := nodeOf(el)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve upload path: %w", err)
	}
	if err := s.run(ctx, chromedp.SetUploadFiles(nodeIDs(node), []string{abs}, chromedp.ByNodeID)); err != nil {
		return fmt.Errorf("failed to upload %s: %w", abs, err)
	}
	return nil
}

func (s *chromeSession) ReadText(ctx context.Context, el Element) (string, error) {
	node, err := nodeOf(el)
	if err != nil {
		return "", err
	}
	var text string
	if err := s.run(ctx, chromedp.Text(nodeIDs(node), &text, chromedp.ByNodeID)); err != nil {
		return "", fmt.Errorf("failed to read text of %q: %w", el.Selector, err)
	}
	return strings.TrimSpace(text), nil
}

func (s *chromeSession) Attr(ctx context.Context, el Element, name string) (string, error) {
	node, err := nodeOf(el)
	if err != nil {
		return "", err
	}
	var (
		value string
		ok    bool
	)
	if err := s.run(ctx, chromedp.AttributeValue(nodeIDs(node), name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", fmt.Errorf("failed to read attribute %s of %q: %w", name, el.Selector, err)
	}
	return value, nil
}

func (s *chromeSession) Value(ctx context.Context, el Element) (string, error) {
	node, err := nodeOf(el)
	if err != nil {
		return "", err
	}
	var value string
	if err := s.run(ctx, chromedp.Value(nodeIDs(node), &value, chromedp.ByNodeID)); err != nil {
		return "", fmt.Errorf("failed to read value of %q: %w", el.Selector, err)
	}
	return value, nil
}

func (s *chromeSession) PageText(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}
	return ExtractMainText(html, nil)
}

func (s *chromeSession) SaveState(ctx context.Context, path string) error {
	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("failed to read cookies: %w", err)
	}
	return writeState(path, cookiesToState(cookies))
}

func (s *chromeSession) loadState(ctx context.Context, path string) error {
	state, err := readState(path)
	if err != nil {
		return err
	}
	if len(state.Cookies) == 0 {
		return nil
	}
	params := state.params()
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
}

func (s *chromeSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	return nil
}

// StorageState is the on-disk browser state.
type StorageState struct {
	Cookies []StoredCookie `json:"cookies"`
}

// StoredCookie is a persisted browser cookie. Expires is unix seconds; -1 marks a session cookie.
type StoredCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

func cookiesToState(cookies []*network.Cookie) StorageState {
	state := StorageState{Cookies: make([]StoredCookie, 0, len(cookies))}
	for _, c := range cookies {
		if c == nil {
			continue
		}
		expires := c.Expires
		if c.Session {
			expires = -1
		}
		state.Cookies = append(state.Cookies, StoredCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return state
}

func (st StorageState) params() []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(st.Cookies))
	for _, c := range st.Cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: network.CookieSameSite(c.SameSite),
		}
		if c.Expires > 0 {
			sec := int64(c.Expires)
			expires := cdp.TimeSinceEpoch(time.Unix(sec, 0))
			p.Expires = &expires
		}
		params = append(params, p)
	}
	return params
}

func readState(path string) (StorageState, error) {
	var state StorageState
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state, nil
		}
		return state, fmt.Errorf("failed to read browser state: %w", err)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("failed to parse browser state %s: %w", path, err)
	}
	return state, nil
}

func writeState(path string, state StorageState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode browser state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write browser state: %w", err)
	}
	return nil
}
