package usecases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/searchchat-go/internal/domain/entities"
	"github.com/0xcro3dile/searchchat-go/internal/domain/ports"
)

// Transcript is the ordered chat log. Entries are only ever appended,
// except loading markers which are removed by ID.
type Transcript struct {
	mu        sync.Mutex
	entries   []entities.ChatEntry
	views     map[int]ports.TranscriptView
	nextView  int
	archive   ports.TranscriptArchive
	sessionID string
	log       logrus.FieldLogger
}

// NewTranscript creates an empty transcript. archive may be nil.
func NewTranscript(archive ports.TranscriptArchive, log logrus.FieldLogger, views ...ports.TranscriptView) *Transcript {
	if log == nil {
		log = logrus.StandardLogger()
	}
	t := &Transcript{
		entries:   make([]entities.ChatEntry, 0, 64),
		views:     make(map[int]ports.TranscriptView),
		archive:   archive,
		sessionID: entities.NewID(),
		log:       log,
	}
	for _, v := range views {
		t.Subscribe(v)
	}
	return t
}

// SessionID identifies this transcript in the archive.
func (t *Transcript) SessionID() string {
	return t.sessionID
}

// Subscribe registers a view and returns a function that unregisters it.
func (t *Transcript) Subscribe(view ports.TranscriptView) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextView
	t.nextView++
	t.views[id] = view
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.views, id)
	}
}

// Append adds entry at the end and returns its ID.
func (t *Transcript) Append(entry entities.ChatEntry) string {
	if entry.ID == "" {
		entry.ID = entities.NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	for _, v := range t.orderedViews() {
		v.Append(entry)
	}
	t.mu.Unlock()

	if t.archive != nil && !entry.Transient() {
		if err := t.archive.Record(context.Background(), t.sessionID, entry); err != nil {
			t.log.WithError(err).WithField("entry", entry.ID).Warn("archiving entry failed")
		}
	}
	return entry.ID
}

// Remove deletes the entry with the given ID. Unknown IDs are ignored.
func (t *Transcript) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, e := range t.entries {
		if e.ID != id {
			continue
		}
		t.entries = append(t.entries[:i], t.entries[i+1:]...)
		for _, v := range t.orderedViews() {
			v.Remove(id)
		}
		return true
	}
	return false
}

// Entries returns a copy of the transcript.
func (t *Transcript) Entries() []entities.ChatEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]entities.ChatEntry, len(t.entries))
	copy(cp, t.entries)
	return cp
}

// Entry looks up one entry by ID.
func (t *Transcript) Entry(id string) (entities.ChatEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.ID == id {
			return e, true
		}
	}
	return entities.ChatEntry{}, false
}

// RenderResults appends one results entry: a count header followed by the cards.
func (t *Transcript) RenderResults(submissionID string, items []entities.ResultItem) string {
	if len(items) == 0 {
		return ""
	}
	cards := make([]entities.ResultItem, len(items))
	copy(cards, items)
	return t.Append(entities.ChatEntry{
		SubmissionID: submissionID,
		Role:         entities.RoleSystem,
		Kind:         entities.KindResults,
		Text:         fmt.Sprintf(ResultsHeaderFormat, len(cards)),
		Items:        cards,
	})
}

// ShowDetail appends the expanded view of one result.
func (t *Transcript) ShowDetail(item entities.ResultItem) string {
	it := item
	return t.Append(entities.ChatEntry{
		Role: entities.RoleSystem,
		Kind: entities.KindDetail,
		Text: item.Title,
		Item: &it,
	})
}

// SelectCard shows the detail of card index (0-based) of a results entry.
func (t *Transcript) SelectCard(entryID string, index int) error {
	entry, ok := t.Entry(entryID)
	if !ok || entry.Kind != entities.KindResults {
		return errors.Errorf("no results entry %q", entryID)
	}
	if index < 0 || index >= len(entry.Items) {
		return errors.Errorf("card %d out of range (%d cards)", index+1, len(entry.Items))
	}
	t.ShowDetail(entry.Items[index])
	return nil
}

// orderedViews returns views in subscription order. Caller holds t.mu.
func (t *Transcript) orderedViews() []ports.TranscriptView {
	out := make([]ports.TranscriptView, 0, len(t.views))
	for i := 0; i < t.nextView; i++ {
		if v, ok := t.views[i]; ok {
			out = append(out, v)
		}
	}
	return out
}
