// Package render draws the transcript and the prompt on a text terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/0xcro3dile/searchchat-go/internal/domain/entities"
	"github.com/0xcro3dile/searchchat-go/internal/domain/ports"
)

// Fallback images shown instead of a missing or broken product image.
const (
	NoImageURL     = "https://via.placeholder.com/400x500/8b5cf6/ffffff?text=No+Image"
	BrokenImageURL = "https://via.placeholder.com/400x500/8b5cf6/ffffff?text=Error"
)

// CardRef locates one numbered card in the transcript.
type CardRef struct {
	EntryID string
	Index   int
}

// Terminal implements ports.TranscriptView and ports.PromptView on an io.Writer.
// Cards are numbered across the whole session so they can be picked by number.
type Terminal struct {
	mu          sync.Mutex
	out         io.Writer
	cards       []CardRef
	placeholder string
	preview     string
}

// NewTerminal creates a Terminal.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// Append prints one entry.
func (t *Terminal) Append(e entities.ChatEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e.Kind {
	case entities.KindQuery:
		fmt.Fprintf(t.out, "\nyou> %s\n", e.Text)
		if e.ImageName != "" {
			fmt.Fprintf(t.out, "     [image: %s]\n", e.ImageName)
		}
	case entities.KindLoading:
		fmt.Fprintf(t.out, "… %s\n", e.Text)
	case entities.KindExplanation:
		fmt.Fprintln(t.out, PlainText(e.Text))
	case entities.KindResults:
		fmt.Fprintln(t.out, e.Text)
		for i, item := range e.Items {
			t.cards = append(t.cards, CardRef{EntryID: e.ID, Index: i})
			t.writeCard(len(t.cards), item)
		}
		fmt.Fprintln(t.out, "  (/detail <n> for more)")
	case entities.KindDetail:
		if e.Item != nil {
			writeDetail(t.out, *e.Item)
		}
	default:
		fmt.Fprintln(t.out, e.Text)
	}
}

// Remove is a no-op: printed lines stay on the terminal.
func (t *Terminal) Remove(id string) {}

// Card returns the card printed with number n (1-based).
func (t *Terminal) Card(n int) (CardRef, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 1 || n > len(t.cards) {
		return CardRef{}, false
	}
	return t.cards[n-1], true
}

// ClearInput does nothing; the terminal line is consumed on read.
func (t *Terminal) ClearInput() {}

// SetPlaceholder changes the hint printed before the next prompt.
func (t *Terminal) SetPlaceholder(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.placeholder = text
}

// ShowPreview prints the staged attachment.
func (t *Terminal) ShowPreview(p ports.AttachmentPreview) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.preview = fmt.Sprintf("%s (%s)", p.Name, p.SizeKB)
	fmt.Fprintf(t.out, "📎 %s  (/detach to remove)\n", t.preview)
}

// ClearPreview forgets the staged attachment.
func (t *Terminal) ClearPreview() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.preview = ""
}

// Prompt returns the text to print before reading the next line.
func (t *Terminal) Prompt() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	if t.preview != "" {
		fmt.Fprintf(&b, "📎 %s\n", t.preview)
	}
	if t.placeholder != "" {
		fmt.Fprintf(&b, "%s\n", t.placeholder)
	}
	b.WriteString("> ")
	return b.String()
}

// WriteHistory prints archived entries without numbering their cards.
func (t *Terminal) WriteHistory(entries []entities.ChatEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(entries) == 0 {
		fmt.Fprintln(t.out, "(no history)")
		return
	}
	for _, e := range entries {
		stamp := e.CreatedAt.Local().Format("2006-01-02 15:04")
		switch {
		case e.Kind == entities.KindResults:
			fmt.Fprintf(t.out, "%s  %s\n", stamp, e.Text)
			for _, item := range e.Items {
				fmt.Fprintf(t.out, "                    - %s\n", item.Title)
			}
		case e.Role == entities.RoleUser:
			fmt.Fprintf(t.out, "%s  you> %s\n", stamp, e.Text)
		default:
			fmt.Fprintf(t.out, "%s  %s\n", stamp, PlainText(e.Text))
		}
	}
}

func (t *Terminal) writeCard(n int, item entities.ResultItem) {
	fmt.Fprintf(t.out, "  [%d] %s\n", n, item.Title)
	fmt.Fprintf(t.out, "      %s · %s · %s · relevance %s\n", item.SubCategory, item.Colour, item.Usage, item.Score)
	fmt.Fprintf(t.out, "      %s\n", CardImageURL(item))
}

// CardImageURL substitutes a placeholder for a missing or unavailable image.
func CardImageURL(item entities.ResultItem) string {
	switch {
	case item.ImageURL == "":
		return NoImageURL
	case item.ImageUnavailable:
		return BrokenImageURL
	}
	return item.ImageURL
}

func writeDetail(w io.Writer, item entities.ResultItem) {
	fmt.Fprintf(w, "── %s ──\n", item.Title)
	fmt.Fprintf(w, "  Category:  %s\n", item.SubCategory)
	fmt.Fprintf(w, "  Colour:    %s\n", item.Colour)
	fmt.Fprintf(w, "  Usage:     %s\n", item.Usage)
	fmt.Fprintf(w, "  Relevance: %s\n", item.Score)
}
