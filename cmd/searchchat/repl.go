package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/0xcro3dile/searchchat-go/internal/adapters/render"
	"github.com/0xcro3dile/searchchat-go/internal/domain/ports"
	"github.com/0xcro3dile/searchchat-go/internal/domain/usecases"
)

const historyLimit = 20

const helpText = `Type a search and press enter. Commands:
  /attach <path>  attach an image to the next search
  /detach         remove the attached image
  /detail <n>     show card n in full
  /health         check the search service
  /history        show archived entries
  /help           show this help
  /quit           exit`

// repl reads lines and turns them into submissions and commands.
// Searches run in the background so the prompt stays usable.
type repl struct {
	chat    *usecases.SearchChat
	term    *render.Terminal
	history ports.TranscriptArchive
	out     io.Writer
	wg      sync.WaitGroup
}

func newREPL(chat *usecases.SearchChat, term *render.Terminal, history ports.TranscriptArchive, out io.Writer) *repl {
	return &repl{chat: chat, term: term, history: history, out: out}
}

// Run returns nil after /quit, io.EOF when input ends and ctx.Err() when cancelled.
// Pending searches are waited for in every case.
func (r *repl) Run(ctx context.Context, in io.Reader) error {
	defer r.wg.Wait()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(r.out, helpText)
	for {
		fmt.Fprint(r.out, r.term.Prompt())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return io.EOF
			}
			if quit := r.handle(ctx, line); quit {
				return nil
			}
		}
	}
}

// handle runs one input line and reports whether to quit.
func (r *repl) handle(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			// failures are already in the transcript
			r.chat.Submit(ctx, line)
		}()
		return false
	}

	cmd, arg := trimmed, ""
	if i := strings.IndexByte(trimmed, ' '); i >= 0 {
		cmd, arg = trimmed[:i], strings.TrimSpace(trimmed[i+1:])
	}

	switch cmd {
	case "/attach":
		if arg == "" {
			fmt.Fprintln(r.out, "usage: /attach <path>")
			break
		}
		if err := r.chat.Attachments().AttachFile(ctx, arg); err != nil {
			fmt.Fprintf(r.out, "⚠️ %v\n", err)
		}
	case "/detach":
		r.chat.Attachments().Detach()
	case "/detail":
		n, err := strconv.Atoi(arg)
		ref, ok := r.term.Card(n)
		if err != nil || !ok {
			fmt.Fprintln(r.out, "usage: /detail <card number>")
			break
		}
		if err := r.chat.SelectCard(ref.EntryID, ref.Index); err != nil {
			fmt.Fprintf(r.out, "⚠️ %v\n", err)
		}
	case "/health":
		if err := r.chat.Health(ctx); err != nil {
			fmt.Fprintf(r.out, "❌ search service unreachable: %v\n", err)
			break
		}
		fmt.Fprintln(r.out, "✅ search service is up")
	case "/history":
		entries, err := r.history.Recent(ctx, historyLimit)
		if err != nil {
			fmt.Fprintf(r.out, "⚠️ %v\n", err)
			break
		}
		r.term.WriteHistory(entries)
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/quit", "/exit":
		return true
	default:
		fmt.Fprintf(r.out, "unknown command %s (try /help)\n", cmd)
	}
	return false
}
