package usecases

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/searchchat-go/internal/domain/entities"
	"github.com/0xcro3dile/searchchat-go/internal/domain/ports"
)

// Phase is the state of one submission.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseComposing  Phase = "composing"
	PhaseSubmitted  Phase = "submitted"
	PhaseSucceeded  Phase = "resolved_success"
	PhaseFailed     Phase = "resolved_failure"
)

// Options tune the orchestrator.
type Options struct {
	// Timeout bounds each backend request. Zero means no limit.
	Timeout time.Duration
	// Serialize rejects a submission while another one is in flight.
	// Otherwise submissions overlap safely, each keyed to its own loading marker.
	Serialize bool
	// Images, when set, checks every product image before the results are shown.
	Images ports.ImageChecker
}

// SearchChat drives one request/response cycle per submission.
type SearchChat struct {
	backend     ports.SearchBackend
	transcript  *Transcript
	attachments *AttachmentManager
	prompt      ports.PromptView
	log         logrus.FieldLogger
	opts        Options
	inflight    int32
}

// NewSearchChat wires the orchestrator to its collaborators.
func NewSearchChat(
	backend ports.SearchBackend,
	transcript *Transcript,
	attachments *AttachmentManager,
	prompt ports.PromptView,
	log logrus.FieldLogger,
	opts Options,
) *SearchChat {
	if prompt == nil {
		prompt = nopPromptView{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SearchChat{
		backend:     backend,
		transcript:  transcript,
		attachments: attachments,
		prompt:      prompt,
		log:         log,
		opts:        opts,
	}
}

// Transcript returns the transcript the orchestrator writes to.
func (c *SearchChat) Transcript() *Transcript { return c.transcript }

// Attachments returns the attachment slot.
func (c *SearchChat) Attachments() *AttachmentManager { return c.attachments }

// InFlight returns the number of unresolved submissions.
func (c *SearchChat) InFlight() int {
	return int(atomic.LoadInt32(&c.inflight))
}

// Submit runs one full cycle for the given input text and the pending attachment.
// It returns the validation or backend error; the controller stays usable either way.
func (c *SearchChat) Submit(ctx context.Context, text string) error {
	_, err := c.SubmitWithID(ctx, text)
	return err
}

// SubmitWithID is Submit that also returns the submission ID. Every entry the
// submission appends, warnings included, carries that ID.
func (c *SearchChat) SubmitWithID(ctx context.Context, text string) (string, error) {
	id := entities.NewID()
	return id, c.submit(ctx, id, text)
}

func (c *SearchChat) submit(ctx context.Context, id, text string) error {
	log := c.log.WithField("submission", id)
	c.enter(log, PhaseValidating)

	if c.opts.Serialize {
		if !atomic.CompareAndSwapInt32(&c.inflight, 0, 1) {
			c.transcript.Append(systemEntry(id, entities.KindWarning, BusyText))
			c.enter(log, PhaseIdle)
			return entities.ErrSubmissionInFlight
		}
	} else {
		atomic.AddInt32(&c.inflight, 1)
	}
	defer atomic.AddInt32(&c.inflight, -1)

	att := c.attachments.Take()
	req, err := entities.NewSearchRequest(text, att)
	if err != nil {
		c.transcript.Append(systemEntry(id, entities.KindWarning, EmptySubmissionText))
		c.enter(log, PhaseIdle)
		return err
	}
	req.ID = id
	log = c.log.WithFields(logrus.Fields{"submission": req.ID, "mode": req.Mode})

	c.enter(log, PhaseComposing)
	c.transcript.Append(queryEntry(req))
	c.prompt.ClearInput()

	c.enter(log, PhaseSubmitted)
	loadingID := c.transcript.Append(systemEntry(req.ID, entities.KindLoading, LoadingText))
	resp, err := c.send(ctx, req)
	var items []entities.ResultItem
	if err == nil {
		items = c.checkImages(ctx, resp.Items)
	}

	c.transcript.Remove(loadingID)
	defer c.attachments.Release()

	if err != nil {
		c.transcript.Append(systemEntry(req.ID, entities.KindError, failureMessage(err)))
		log.WithError(err).Warn("search failed")
		c.enter(log, PhaseFailed)
		c.enter(log, PhaseIdle)
		return err
	}

	if resp.Answer != "" {
		c.transcript.Append(systemEntry(req.ID, entities.KindExplanation, resp.Answer))
	}
	if len(items) > 0 {
		c.transcript.RenderResults(req.ID, items)
	} else {
		c.transcript.Append(systemEntry(req.ID, entities.KindNoResults, NoResultsText))
	}

	log.WithField("results", len(items)).Info("search resolved")
	c.enter(log, PhaseSucceeded)
	c.enter(log, PhaseIdle)
	return nil
}

// SelectCard shows the detail view of one card of a results entry.
func (c *SearchChat) SelectCard(entryID string, index int) error {
	return c.transcript.SelectCard(entryID, index)
}

// Health reports whether the backend answers.
func (c *SearchChat) Health(ctx context.Context) error {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	return c.backend.Health(ctx)
}

func (c *SearchChat) send(ctx context.Context, req *entities.SearchRequest) (*entities.SearchResponse, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	resp, err := c.backend.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, &entities.MalformedResponseError{Err: errors.New("empty response")}
	}
	return resp, nil
}

// checkImages marks the items whose image cannot be loaded.
// The transcript lock must not be held while it runs.
func (c *SearchChat) checkImages(ctx context.Context, items []entities.ResultItem) []entities.ResultItem {
	if c.opts.Images == nil {
		return items
	}
	checked := make([]entities.ResultItem, len(items))
	copy(checked, items)

	var wg sync.WaitGroup
	for i := range checked {
		if checked[i].ImageURL == "" {
			continue
		}
		wg.Add(1)
		go func(item *entities.ResultItem) {
			defer wg.Done()
			item.ImageUnavailable = !c.opts.Images.Reachable(ctx, item.ImageURL)
		}(&checked[i])
	}
	wg.Wait()
	return checked
}

func (c *SearchChat) enter(log logrus.FieldLogger, p Phase) {
	log.WithField("phase", p).Debug("submission phase")
}

// failureMessage prefers the server's own detail over a generic message.
func failureMessage(err error) string {
	var se *entities.ServerError
	if errors.As(err, &se) {
		if se.Detail != "" {
			return fmt.Sprintf(ErrorDetailFormat, se.Detail)
		}
		return ServerErrorText
	}
	return NetworkErrorText
}

func queryEntry(req *entities.SearchRequest) entities.ChatEntry {
	entry := entities.ChatEntry{
		SubmissionID: req.ID,
		Role:         entities.RoleUser,
		Kind:         entities.KindQuery,
		Text:         req.Query,
	}
	if req.Attachment != nil {
		entry.ImageName = req.Attachment.Name
		entry.ImagePreview = req.Attachment.PreviewURL
		if entry.Text == "" {
			entry.Text = ImageSearchLabel
		}
	}
	return entry
}

func systemEntry(submissionID string, kind entities.EntryKind, text string) entities.ChatEntry {
	return entities.ChatEntry{
		SubmissionID: submissionID,
		Role:         entities.RoleSystem,
		Kind:         kind,
		Text:         text,
	}
}
