// Package usecases contains the chat controller: attachment handling,
// the transcript and the search orchestration.
// No framework code lives here; views, backends and stores come in through ports.
package usecases

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/searchchat-go/internal/domain/entities"
	"github.com/0xcro3dile/searchchat-go/internal/domain/ports"
)

// AttachmentManager owns the single pending-attachment slot.
type AttachmentManager struct {
	mu       sync.Mutex
	current  *entities.Attachment
	view     ports.PromptView
	loader   ports.AttachmentLoader
	maxBytes int64
	log      logrus.FieldLogger
}

// NewAttachmentManager creates an AttachmentManager.
// maxBytes <= 0 disables the size limit. loader may be nil if files are never attached by path.
func NewAttachmentManager(view ports.PromptView, loader ports.AttachmentLoader, maxBytes int64, log logrus.FieldLogger) *AttachmentManager {
	if view == nil {
		view = nopPromptView{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AttachmentManager{
		view:     view,
		loader:   loader,
		maxBytes: maxBytes,
		log:      log,
	}
}

// Attach stages att for the next submission, replacing any pending attachment.
func (m *AttachmentManager) Attach(att *entities.Attachment) error {
	if att == nil {
		return entities.ErrNoAttachment
	}
	if m.maxBytes > 0 && att.Size > m.maxBytes {
		return &entities.AttachmentTooLargeError{Size: att.Size, Limit: m.maxBytes}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = att
	m.view.ShowPreview(ports.AttachmentPreview{
		Name:       att.Name,
		SizeKB:     att.SizeKB(),
		PreviewURL: att.PreviewURL,
		Remove:     m.Detach,
	})
	m.view.SetPlaceholder(CaptionPlaceholder)

	m.log.WithFields(logrus.Fields{
		"name": att.Name,
		"size": att.Size,
		"type": att.ContentType,
	}).Debug("attachment staged")
	return nil
}

// AttachFile loads path through the loader and attaches it.
func (m *AttachmentManager) AttachFile(ctx context.Context, path string) error {
	if m.loader == nil {
		return errors.New("no attachment loader configured")
	}
	att, err := m.loader.Load(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "loading %s", path)
	}
	return m.Attach(att)
}

// Detach drops the pending attachment. Safe to call when nothing is attached.
func (m *AttachmentManager) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

// Current returns the pending attachment, or nil.
func (m *AttachmentManager) Current() *entities.Attachment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Take hands the pending attachment to a submission and hides its preview.
// The placeholder keeps its caption prompt until Release.
func (m *AttachmentManager) Take() *entities.Attachment {
	m.mu.Lock()
	defer m.mu.Unlock()

	att := m.current
	if att != nil {
		m.current = nil
		m.view.ClearPreview()
	}
	return att
}

// Release runs when a submission resolves. It resets the prompt unless
// a newer attachment was staged while the submission was in flight.
func (m *AttachmentManager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return
	}
	m.clearLocked()
}

func (m *AttachmentManager) clearLocked() {
	m.current = nil
	m.view.ClearPreview()
	m.view.SetPlaceholder(DefaultPlaceholder)
}

type nopPromptView struct{}

func (nopPromptView) ClearInput() {}
func (nopPromptView) SetPlaceholder(string) {}
func (nopPromptView) ShowPreview(ports.AttachmentPreview) {}
func (nopPromptView) ClearPreview() {}
