// Package config loads settings from the environment, an optional .env file
// and command-line flags. Flags win over the environment.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/searchchat-go/internal/adapters/backend"
)

// Config holds the settings for one run.
type Config struct {
	BackendURL         string
	Contract           backend.Contract
	Timeout            time.Duration
	MaxAttachmentBytes int64
	InboxDir           string
	ArchivePath        string // empty keeps history in memory
	ServeAddr          string // empty disables the HTTP surface
	Serialize          bool
	CheckImages        bool
	LogLevel           logrus.Level
}

// Load reads .env (if present), the SEARCHCHAT_* variables and then args.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()
	return parse(args, os.Getenv)
}

func parse(args []string, getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv("SEARCHCHAT_" + key)); v != "" {
			return v
		}
		return def
	}

	fs := flag.NewFlagSet("searchchat", flag.ContinueOnError)
	backendURL := fs.String("backend", env("BACKEND_URL", "http://localhost:8000"), "search backend base URL")
	contract := fs.String("contract", env("CONTRACT", "chat"), "backend contract: chat or search")
	timeout := fs.String("timeout", env("TIMEOUT", "60s"), "per-request timeout, 0 for none")
	maxBytes := fs.String("max-attachment-bytes", env("MAX_ATTACHMENT_BYTES", "0"), "largest accepted image, 0 for no limit")
	inbox := fs.String("inbox", env("INBOX_DIR", ""), "directory watched for dropped images")
	archive := fs.String("archive", env("ARCHIVE_PATH", ""), "SQLite file for transcript history")
	serve := fs.String("serve", env("SERVE_ADDR", ""), "address for the web chat, e.g. :8080")
	serialize := fs.String("serialize", env("SERIALIZE", "false"), "reject a search while another is running")
	checkImages := fs.String("check-images", env("CHECK_IMAGES", "false"), "check product images before printing them")
	level := fs.String("log-level", env("LOG_LEVEL", "info"), "log level")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		BackendURL:  strings.TrimRight(*backendURL, "/"),
		InboxDir:    *inbox,
		ArchivePath: *archive,
		ServeAddr:   *serve,
	}

	var err error
	if cfg.Contract, err = backend.ContractByName(*contract); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = parseTimeout(*timeout); err != nil {
		return nil, err
	}
	if cfg.MaxAttachmentBytes, err = strconv.ParseInt(*maxBytes, 10, 64); err != nil || cfg.MaxAttachmentBytes < 0 {
		return nil, errors.Errorf("invalid max attachment bytes %q", *maxBytes)
	}
	if cfg.Serialize, err = strconv.ParseBool(*serialize); err != nil {
		return nil, errors.Wrap(err, "serialize")
	}
	if cfg.CheckImages, err = strconv.ParseBool(*checkImages); err != nil {
		return nil, errors.Wrap(err, "check-images")
	}
	if cfg.LogLevel, err = logrus.ParseLevel(*level); err != nil {
		return nil, errors.Wrap(err, "log-level")
	}
	return cfg, nil
}

// parseTimeout accepts a Go duration or a plain number of seconds.
func parseTimeout(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		if secs < 0 {
			return 0, errors.Errorf("invalid timeout %q", s)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, errors.Errorf("invalid timeout %q", s)
	}
	return d, nil
}

// NewLogger builds the process logger.
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.Level = c.LogLevel
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	log.Out = os.Stderr
	return log
}
