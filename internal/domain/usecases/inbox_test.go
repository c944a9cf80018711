package usecases

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/0xcro3dile/searchchat-go/internal/domain/ports"
)

// mockWatcher implements ports.FileWatcher for testing
type mockWatcher struct {
	events []ports.FileEvent
	err    error
}

func (w *mockWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if w.err != nil {
		return nil, w.err
	}
	ch := make(chan ports.FileEvent, len(w.events))
	for _, e := range w.events {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func (w *mockWatcher) Stop() error { return nil }

func TestInbox_AttachesDroppedImages(t *testing.T) {
	watcher := &mockWatcher{events: []ports.FileEvent{
		{Path: "/inbox/first.png", Operation: ports.FileCreated},
		{Path: "/inbox/first.png", Operation: ports.FileDeleted},
		{Path: "/inbox/second.png", Operation: ports.FileModified},
	}}
	attachments := NewAttachmentManager(nil, &mockLoader{}, 0, nil)

	err := NewInbox(watcher, attachments, nil).Run(context.Background(), "/inbox")

	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	current := attachments.Current()
	if current == nil || current.Name != "/inbox/second.png" {
		t.Errorf("latest drop should be attached, got %+v", current)
	}
}

func TestInbox_SkipsUnloadableFiles(t *testing.T) {
	watcher := &mockWatcher{events: []ports.FileEvent{
		{Path: "/inbox/half-written.png", Operation: ports.FileCreated},
	}}
	attachments := NewAttachmentManager(nil, &mockLoader{err: errors.New("empty")}, 0, nil)

	if err := NewInbox(watcher, attachments, nil).Run(context.Background(), "/inbox"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if attachments.Current() != nil {
		t.Error("nothing should be attached")
	}
}

func TestInbox_WatchError(t *testing.T) {
	watcher := &mockWatcher{err: errors.New("no such dir")}
	attachments := NewAttachmentManager(nil, &mockLoader{}, 0, nil)

	if err := NewInbox(watcher, attachments, nil).Run(context.Background(), "/missing"); err == nil {
		t.Error("watch error should propagate")
	}
}
