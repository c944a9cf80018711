package usecases

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/searchchat-go/internal/domain/ports"
)

// Inbox attaches images dropped into a watched directory.
type Inbox struct {
	watcher     ports.FileWatcher
	attachments *AttachmentManager
	log         logrus.FieldLogger
}

// NewInbox creates an Inbox.
func NewInbox(watcher ports.FileWatcher, attachments *AttachmentManager, log logrus.FieldLogger) *Inbox {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Inbox{watcher: watcher, attachments: attachments, log: log}
}

// Run watches dir until ctx is done. Each created or rewritten image
// becomes the pending attachment; the latest drop wins.
func (in *Inbox) Run(ctx context.Context, dir string) error {
	events, err := in.watcher.Watch(ctx, dir)
	if err != nil {
		return errors.Wrapf(err, "watching %s", dir)
	}
	in.log.WithField("dir", dir).Info("watching inbox for images")

	for ev := range events {
		if ev.Operation == ports.FileDeleted {
			continue
		}
		log := in.log.WithField("path", ev.Path)
		// A create event can arrive before the file has been written.
		if err := in.attachments.AttachFile(ctx, ev.Path); err != nil {
			log.WithError(err).Debug("inbox file not attached")
			continue
		}
		log.Info("attached image from inbox")
	}
	return ctx.Err()
}
