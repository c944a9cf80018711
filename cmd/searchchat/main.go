package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/searchchat-go/internal/adapters/archive"
	"github.com/0xcro3dile/searchchat-go/internal/adapters/backend"
	"github.com/0xcro3dile/searchchat-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/searchchat-go/internal/adapters/loader"
	"github.com/0xcro3dile/searchchat-go/internal/adapters/render"
	"github.com/0xcro3dile/searchchat-go/internal/config"
	"github.com/0xcro3dile/searchchat-go/internal/domain/ports"
	"github.com/0xcro3dile/searchchat-go/internal/domain/usecases"
	httpserver "github.com/0xcro3dile/searchchat-go/internal/infrastructure/http"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "searchchat:", err)
		os.Exit(2)
	}
	log := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, os.Stdin, os.Stdout); err != nil {
		log.WithError(err).Fatal("searchchat failed")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger, in io.Reader, out io.Writer) error {
	term := render.NewTerminal(out)

	var store ports.TranscriptArchive
	if cfg.ArchivePath != "" {
		sqlite, err := archive.NewSQLiteArchive(cfg.ArchivePath)
		if err != nil {
			return err
		}
		defer sqlite.Close()
		store = sqlite
	} else {
		store = archive.NewMemoryArchive(0)
	}

	images := loader.NewImageLoader(nil)
	client := backend.NewHTTPBackend(cfg.BackendURL, cfg.Contract, log)
	transcript := usecases.NewTranscript(store, log, term)
	attachments := usecases.NewAttachmentManager(term, images, cfg.MaxAttachmentBytes, log)
	opts := usecases.Options{
		Timeout:   cfg.Timeout,
		Serialize: cfg.Serialize,
	}
	if cfg.CheckImages {
		opts.Images = render.NewHTTPImageChecker(3 * time.Second)
	}
	chat := usecases.NewSearchChat(client, transcript, attachments, term, log, opts)
	attachments.Detach() // shows the default placeholder

	log.WithFields(logrus.Fields{
		"backend":  cfg.BackendURL,
		"contract": cfg.Contract.Name,
		"timeout":  cfg.Timeout,
	}).Info("searchchat ready")

	if cfg.InboxDir != "" {
		watcher, err := filewatcher.NewFSNotifyWatcher(images.SupportedExtensions(), log)
		if err != nil {
			return err
		}
		defer watcher.Stop()

		inbox := usecases.NewInbox(watcher, attachments, log)
		go func() {
			if err := inbox.Run(ctx, cfg.InboxDir); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("inbox stopped")
			}
		}()
	}

	serving := cfg.ServeAddr != ""
	if serving {
		srv := httpserver.NewServer(chat, cfg.ServeAddr, log)
		go func() {
			if err := srv.Start(ctx); err != nil {
				log.WithError(err).Error("web chat stopped")
			}
		}()
	}

	switch err := newREPL(chat, term, store, out).Run(ctx, in); {
	case err == io.EOF && serving:
		// stdin closed but the web chat keeps running
		<-ctx.Done()
		return nil
	case err == io.EOF, err == context.Canceled:
		return nil
	default:
		return err
	}
}
