// Package backend provides the HTTP adapter for the product-search service.
// Adapter implementing ports.SearchBackend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/searchchat-go/internal/domain/entities"
)

// Contract fixes the endpoints and form field names the backend expects.
type Contract struct {
	Name         string
	TextPath     string
	ImagePath    string
	QueryField   string // text mode
	FileField    string // image mode binary
	CaptionField string // image mode optional text
	TypeField    string // optional discriminator field, sent as "text" or "image"
	HealthPath   string // empty when the backend has no health route
}

var (
	// ChatContract talks to the /chat and /search-image routes.
	ChatContract = Contract{
		Name:         "chat",
		TextPath:     "/chat",
		ImagePath:    "/search-image",
		QueryField:   "message",
		FileField:    "file",
		CaptionField: "message",
	}

	// SearchContract talks to the single /search route with a type discriminator.
	SearchContract = Contract{
		Name:         "search",
		TextPath:     "/search",
		ImagePath:    "/search",
		QueryField:   "query",
		FileField:    "image",
		CaptionField: "query",
		TypeField:    "type",
		HealthPath:   "/health",
	}
)

// ContractByName returns a preset contract.
func ContractByName(name string) (Contract, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "chat":
		return ChatContract, nil
	case "search":
		return SearchContract, nil
	default:
		return Contract{}, errors.Errorf("unknown backend contract %q", name)
	}
}

// HTTPBackend implements ports.SearchBackend over multipart HTTP.
type HTTPBackend struct {
	baseURL  string
	contract Contract
	client   *http.Client
	log      logrus.FieldLogger
}

// NewHTTPBackend creates a new backend client.
// The request timeout is applied by the caller's context.
func NewHTTPBackend(baseURL string, contract Contract, log logrus.FieldLogger) *HTTPBackend {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	if contract.TextPath == "" {
		contract = ChatContract
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &HTTPBackend{
		baseURL:  strings.TrimRight(baseURL, "/"),
		contract: contract,
		client:   &http.Client{},
		log:      log,
	}
}

// Contract returns the contract in use.
func (b *HTTPBackend) Contract() Contract {
	return b.contract
}

// Search sends one multipart request and decodes the response.
func (b *HTTPBackend) Search(ctx context.Context, req *entities.SearchRequest) (*entities.SearchResponse, error) {
	path, body, contentType, err := b.encode(req)
	if err != nil {
		return nil, errors.Wrap(err, "encoding request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	log := b.log.WithFields(logrus.Fields{"submission": req.ID, "path": path, "mode": req.Mode})
	start := time.Now()
	resp, err := b.client.Do(httpReq)
	if err != nil {
		log.WithError(err).Debug("backend unreachable")
		return nil, &entities.NetworkError{Err: errors.Wrap(err, "calling search backend")}
	}
	defer resp.Body.Close()

	log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("backend responded")

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &entities.NetworkError{Err: errors.Wrap(err, "reading response")}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &entities.ServerError{StatusCode: resp.StatusCode, Detail: errorDetail(raw)}
	}

	var out entities.SearchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &entities.MalformedResponseError{Err: errors.Wrap(err, "decoding response")}
	}
	for _, bad := range out.UnreadableScores {
		log.WithField("item", bad).Warn("unreadable relevance score, showing 0")
	}
	return &out, nil
}

// Health checks the backend's health route. Without one, any HTTP answer from
// the base URL counts as healthy.
func (b *HTTPBackend) Health(ctx context.Context) error {
	path := b.contract.HealthPath
	if path == "" {
		path = "/"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return &entities.NetworkError{Err: errors.Wrap(err, "calling search backend")}
	}
	defer resp.Body.Close()

	if b.contract.HealthPath == "" {
		b.log.WithField("status", resp.StatusCode).Debug("backend answered, no health route")
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return &entities.ServerError{StatusCode: resp.StatusCode, Detail: errorDetail(raw)}
	}
	return nil
}

// encode builds the multipart body for req and picks the endpoint.
func (b *HTTPBackend) encode(req *entities.SearchRequest) (string, io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	c := b.contract

	path := c.TextPath
	switch req.Mode {
	case entities.ModeImage:
		path = c.ImagePath
		att := req.Attachment
		if att == nil {
			return "", nil, "", errors.New("image search without attachment")
		}
		part, err := w.CreatePart(filePartHeader(c.FileField, att))
		if err != nil {
			return "", nil, "", err
		}
		if _, err := part.Write(att.Data); err != nil {
			return "", nil, "", err
		}
		if req.Query != "" {
			if err := w.WriteField(c.CaptionField, req.Query); err != nil {
				return "", nil, "", err
			}
		}
	default:
		if err := w.WriteField(c.QueryField, req.Query); err != nil {
			return "", nil, "", err
		}
	}

	if c.TypeField != "" {
		if err := w.WriteField(c.TypeField, string(req.Mode)); err != nil {
			return "", nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", nil, "", err
	}
	return path, &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// filePartHeader is multipart.CreateFormFile with the attachment's real content type.
func filePartHeader(field string, att *entities.Attachment) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(att.Name)))
	h.Set("Content-Type", att.ContentType)
	return h
}

// errorDetail pulls a human-readable reason out of an error body.
// FastAPI sends {"detail": ...}; Flask handlers send {"error": ...}.
func errorDetail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if len(body.Detail) > 0 {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil {
			return s
		}
		// validation errors come back as a list of objects
		var list []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(body.Detail, &list); err == nil {
			msgs := make([]string, 0, len(list))
			for _, m := range list {
				if m.Msg != "" {
					msgs = append(msgs, m.Msg)
				}
			}
			return strings.Join(msgs, "; ")
		}
	}
	return body.Error
}
