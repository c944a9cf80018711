// Package entities contains the core chat and search objects.
// Pure domain types: no knowledge of HTTP, terminals or storage.
package entities

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who a transcript entry belongs to.
type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

// EntryKind describes how an entry should be rendered.
type EntryKind string

const (
	KindText        EntryKind = "text"
	KindQuery       EntryKind = "query"
	KindLoading     EntryKind = "loading"
	KindExplanation EntryKind = "explanation"
	KindResults     EntryKind = "results"
	KindDetail      EntryKind = "detail"
	KindWarning     EntryKind = "warning"
	KindError       EntryKind = "error"
	KindNoResults   EntryKind = "no_results"
)

// ChatEntry is one item of the transcript.
// Image fields are set for a query entry that carried an attachment.
type ChatEntry struct {
	ID           string       `json:"id"`
	SubmissionID string       `json:"submission_id,omitempty"`
	Role         Role         `json:"role"`
	Kind         EntryKind    `json:"kind"`
	Text         string       `json:"text,omitempty"`
	ImageName    string       `json:"image_name,omitempty"`
	ImagePreview string       `json:"image_preview,omitempty"`
	Items        []ResultItem `json:"items,omitempty"`
	Item         *ResultItem  `json:"item,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Transient reports whether the entry is a loading marker.
func (e ChatEntry) Transient() bool {
	return e.Kind == KindLoading
}

// NewID returns a fresh random identifier for entries and submissions.
func NewID() string {
	return uuid.NewString()
}

// Attachment is an image staged for the next submission.
type Attachment struct {
	Data        []byte
	Name        string
	Size        int64
	ContentType string
	PreviewURL  string // data: URL used for thumbnails
}

// NewAttachment builds an attachment and its data-URL preview.
func NewAttachment(name, contentType string, data []byte) *Attachment {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Attachment{
		Data:        data,
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentType,
		PreviewURL:  "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}
}

// SizeKB renders the size in kilobytes with two decimals.
func (a *Attachment) SizeKB() string {
	return strconv.FormatFloat(float64(a.Size)/1024, 'f', 2, 64) + " KB"
}

// SearchMode selects the backend endpoint.
type SearchMode string

const (
	ModeText  SearchMode = "text"
	ModeImage SearchMode = "image"
)

// SearchRequest is built fresh for every submission.
type SearchRequest struct {
	ID         string
	Mode       SearchMode
	Query      string // query in text mode, optional caption in image mode
	Attachment *Attachment
}

// NewSearchRequest validates the input and picks the mode.
// An attachment always wins; text alone must be non-empty after trimming.
func NewSearchRequest(text string, att *Attachment) (*SearchRequest, error) {
	query := strings.TrimSpace(text)
	switch {
	case att != nil:
		return &SearchRequest{ID: NewID(), Mode: ModeImage, Query: query, Attachment: att}, nil
	case query != "":
		return &SearchRequest{ID: NewID(), Mode: ModeText, Query: query}, nil
	default:
		return nil, &ValidationError{Err: ErrEmptySubmission}
	}
}

// Score is a relevance score. The backend sends it either as a number
// or as a preformatted numeric string.
type Score float64

// UnmarshalJSON accepts 0.87, "0.870" and null.
func (s *Score) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" || raw == `""` {
		*s = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid score %q", raw)
	}
	*s = Score(v)
	return nil
}

// String renders the score with fixed precision.
func (s Score) String() string {
	return strconv.FormatFloat(float64(s), 'f', 2, 64)
}

// ResultItem is one product returned by the search backend.
type ResultItem struct {
	Title       string `json:"ProductTitle"`
	ImageURL    string `json:"ImageURL,omitempty"`
	SubCategory string `json:"SubCategory"`
	Colour      string `json:"Colour"`
	Usage       string `json:"Usage"`
	Score       Score  `json:"rerank_score"`

	// ImageUnavailable is set when ImageURL was checked and could not be loaded.
	ImageUnavailable bool `json:"image_unavailable,omitempty"`
}

// SearchResponse is the decoded backend body.
type SearchResponse struct {
	Answer string
	Items  []ResultItem

	// UnreadableScores lists the items whose score was not a number.
	// Their Score is 0.
	UnreadableScores []string
}

// wireItem holds the score undecoded so one bad score cannot fail the response.
type wireItem struct {
	ResultItem
	RawScore json.RawMessage `json:"rerank_score"`
}

// UnmarshalJSON reads both response shapes the backend has used:
// answer/items and ai_explanation/results.
func (r *SearchResponse) UnmarshalJSON(b []byte) error {
	var wire struct {
		Answer        string     `json:"answer"`
		AIExplanation string     `json:"ai_explanation"`
		Response      string     `json:"response"`
		Items         []wireItem `json:"items"`
		Results       []wireItem `json:"results"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	r.Answer = firstNonEmpty(wire.Answer, wire.AIExplanation, wire.Response)
	items := wire.Items
	if len(items) == 0 {
		items = wire.Results
	}

	r.Items = nil
	r.UnreadableScores = nil
	for _, w := range items {
		item := w.ResultItem
		if len(w.RawScore) > 0 {
			if err := item.Score.UnmarshalJSON(w.RawScore); err != nil {
				item.Score = 0
				r.UnreadableScores = append(r.UnreadableScores, fmt.Sprintf("%s: %v", item.Title, err))
			}
		}
		r.Items = append(r.Items, item)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
