package usecases

import (
	"context"
	"sync"

	"github.com/0xcro3dile/searchchat-go/internal/domain/entities"
	"github.com/0xcro3dile/searchchat-go/internal/domain/ports"
)

// mockBackend implements ports.SearchBackend for testing
type mockBackend struct {
	mu       sync.Mutex
	calls    []*entities.SearchRequest
	searchFn func(req *entities.SearchRequest) (*entities.SearchResponse, error)
	healthy  error
}

func (m *mockBackend) Search(ctx context.Context, req *entities.SearchRequest) (*entities.SearchResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(req)
	}
	return &entities.SearchResponse{}, nil
}

func (m *mockBackend) Health(ctx context.Context) error {
	return m.healthy
}

func (m *mockBackend) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// stubImages implements ports.ImageChecker for testing
type stubImages struct {
	broken map[string]bool
	during func()
}

func (s *stubImages) Reachable(ctx context.Context, url string) bool {
	if s.during != nil {
		s.during()
	}
	return !s.broken[url]
}

// recordingView implements ports.TranscriptView and ports.PromptView for testing
type recordingView struct {
	mu          sync.Mutex
	appended    []entities.ChatEntry
	removed     []string
	placeholder string
	preview     *ports.AttachmentPreview
	inputClears int
}

func (v *recordingView) Append(e entities.ChatEntry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.appended = append(v.appended, e)
}

func (v *recordingView) Remove(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.removed = append(v.removed, id)
}

func (v *recordingView) ClearInput() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.inputClears++
}

func (v *recordingView) SetPlaceholder(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.placeholder = text
}

func (v *recordingView) ShowPreview(p ports.AttachmentPreview) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.preview = &p
}

func (v *recordingView) ClearPreview() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.preview = nil
}

// mockArchive implements ports.TranscriptArchive for testing
type mockArchive struct {
	mu      sync.Mutex
	entries []entities.ChatEntry
}

func (a *mockArchive) Record(ctx context.Context, sessionID string, e entities.ChatEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *mockArchive) Recent(ctx context.Context, limit int) ([]entities.ChatEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries, nil
}

// mockLoader implements ports.AttachmentLoader for testing
type mockLoader struct {
	err error
}

func (l *mockLoader) Load(ctx context.Context, path string) (*entities.Attachment, error) {
	if l.err != nil {
		return nil, l.err
	}
	return entities.NewAttachment(path, "image/png", []byte("png-bytes")), nil
}

func (l *mockLoader) SupportedExtensions() []string {
	return []string{".png"}
}

func newTestChat(backend *mockBackend, opts Options) (*SearchChat, *recordingView) {
	view := &recordingView{}
	transcript := NewTranscript(nil, nil, view)
	attachments := NewAttachmentManager(view, &mockLoader{}, 0, nil)
	return NewSearchChat(backend, transcript, attachments, view, nil, opts), view
}

func kinds(entries []entities.ChatEntry) []entities.EntryKind {
	out := make([]entities.EntryKind, len(entries))
	for i, e := range entries {
		out[i] = e.Kind
	}
	return out
}
