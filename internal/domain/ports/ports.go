// Package ports defines the boundaries between the chat controller and the outside world.
// Usecases depend on these interfaces; adapters implement them.
package ports

import (
	"context"

	"github.com/0xcro3dile/searchchat-go/internal/domain/entities"
)

// SearchBackend sends one search to the remote product-search service.
type SearchBackend interface {
	// Search issues exactly one request and decodes the response.
	// Failures are *entities.NetworkError, *entities.ServerError
	// or *entities.MalformedResponseError.
	Search(ctx context.Context, req *entities.SearchRequest) (*entities.SearchResponse, error)

	// Health checks that the backend is reachable.
	Health(ctx context.Context) error
}

// TranscriptView displays transcript changes.
// Append must make the newest entry visible. Both methods are called with the
// transcript locked and must not call back into it.
type TranscriptView interface {
	Append(entry entities.ChatEntry)
	Remove(id string)
}

// ImageChecker reports whether a product image can be loaded.
type ImageChecker interface {
	Reachable(ctx context.Context, url string) bool
}

// PromptView is the input area: text field, placeholder and attachment preview.
type PromptView interface {
	ClearInput()
	SetPlaceholder(text string)
	ShowPreview(preview AttachmentPreview)
	ClearPreview()
}

// AttachmentPreview is what the prompt shows for a staged attachment.
// Remove is bound to the preview's remove control.
type AttachmentPreview struct {
	Name       string
	SizeKB     string
	PreviewURL string
	Remove     func()
}

// AttachmentLoader reads an image into an attachment.
type AttachmentLoader interface {
	Load(ctx context.Context, path string) (*entities.Attachment, error)

	// SupportedExtensions returns the file extensions the loader accepts.
	SupportedExtensions() []string
}

// TranscriptArchive keeps finalized entries beyond the in-memory transcript.
type TranscriptArchive interface {
	Record(ctx context.Context, sessionID string, entry entities.ChatEntry) error

	// Recent returns up to limit entries, oldest first.
	Recent(ctx context.Context, limit int) ([]entities.ChatEntry, error)
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
