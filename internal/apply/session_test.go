package apply

import (
	"context"
	"errors"
	"sync"

	"github.com/jonathan/apply-agent/internal/fetch"
)

// fakeNode is a DOM element in a fakeSession screen.
type fakeNode struct {
	attrs   map[string]string
	text    string
	value   string
	onClick func(s *fakeSession)
}

// fakeScreen maps exact selector strings to the nodes they match.
type fakeScreen struct {
	elements map[string][]*fakeNode
	text     string
}

// fakeSession implements fetch.Session over a list of screens.
type fakeSession struct {
	mu          sync.Mutex
	screens     []fakeScreen
	current     int
	navigated   []string
	uploads     []string
	saved       []string
	closed      bool
	navigateErr error
	clicks      int
}

func (s *fakeSession) screen() fakeScreen {
	if s.current >= len(s.screens) {
		return fakeScreen{}
	}
	return s.screens[s.current]
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigated = append(s.navigated, url)
	return s.navigateErr
}

func (s *fakeSession) CurrentURL(context.Context) (string, error) {
	if len(s.navigated) == 0 {
		return "", nil
	}
	return s.navigated[len(s.navigated)-1], nil
}

func (s *fakeSession) Find(ctx context.Context, selectors ...string) (fetch.Element, bool, error) {
	for _, sel := range selectors {
		found, _ := s.FindAll(ctx, sel)
		if len(found) > 0 {
			return found[0], true, nil
		}
	}
	return fetch.Element{}, false, nil
}

func (s *fakeSession) FindAll(_ context.Context, selector string) ([]fetch.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fetch.ErrSessionClosed
	}
	nodes := s.screen().elements[selector]
	out := make([]fetch.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, fetch.Element{Selector: selector, Handle: n})
	}
	return out, nil
}

func nodeFor(el fetch.Element) (*fakeNode, error) {
	n, ok := el.Handle.(*fakeNode)
	if !ok {
		return nil, errors.New("not a fake node")
	}
	return n, nil
}

func (s *fakeSession) Fill(_ context.Context, el fetch.Element, value string) error {
	n, err := nodeFor(el)
	if err != nil {
		return err
	}
	n.value = value
	return nil
}

func (s *fakeSession) Click(_ context.Context, el fetch.Element) error {
	n, err := nodeFor(el)
	if err != nil {
		return err
	}
	s.clicks++
	if n.onClick != nil {
		n.onClick(s)
	}
	return nil
}

func (s *fakeSession) UploadFile(_ context.Context, el fetch.Element, path string) error {
	if _, err := nodeFor(el); err != nil {
		return err
	}
	s.uploads = append(s.uploads, path)
	return nil
}

func (s *fakeSession) ReadText(_ context.Context, el fetch.Element) (string, error) {
	n, err := nodeFor(el)
	if err != nil {
		return "", err
	}
	return n.text, nil
}

func (s *fakeSession) Attr(_ context.Context, el fetch.Element, name string) (string, error) {
	n, err := nodeFor(el)
	if err != nil {
		return "", err
	}
	return n.attrs[name], nil
}

func (s *fakeSession) Value(_ context.Context, el fetch.Element) (string, error) {
	n, err := nodeFor(el)
	if err != nil {
		return "", err
	}
	return n.value, nil
}

func (s *fakeSession) PageText(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen().text, nil
}

func (s *fakeSession) SaveState(_ context.Context, path string) error {
	s.saved = append(s.saved, path)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// MockSessionFactory implements fetch.SessionFactory for testing
type MockSessionFactory struct {
	Session  *fakeSession
	OpenErr  error
	Opened   []fetch.SessionOptions
	OpenFunc func(ctx context.Context, opts fetch.SessionOptions) (fetch.Session, error)
}

func (m *MockSessionFactory) Open(ctx context.Context, opts fetch.SessionOptions) (fetch.Session, error) {
	m.Opened = append(m.Opened, opts)
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, opts)
	}
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	return m.Session, nil
}

func goTo(i int) func(*fakeSession) {
	return func(s *fakeSession) { s.current = i }
}

func input(id, label, inputType, value string) (*fakeNode, *fakeNode) {
	in := &fakeNode{attrs: map[string]string{"id": id, "type": inputType}, value: value}
	lbl := &fakeNode{text: label}
	return in, lbl
}
