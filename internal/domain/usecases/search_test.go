package usecases

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/0xcro3dile/searchchat-go/internal/domain/entities"
)

func TestSearchChat_EmptySubmissionWarns(t *testing.T) {
	backend := &mockBackend{}
	chat, _ := newTestChat(backend, Options{})

	err := chat.Submit(context.Background(), "   ")

	if !entities.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if backend.callCount() != 0 {
		t.Error("no request should be sent")
	}
	entries := chat.Transcript().Entries()
	if len(entries) != 1 || entries[0].Kind != entities.KindWarning {
		t.Errorf("expected exactly one warning, got %v", kinds(entries))
	}
}

func TestSearchChat_TextRoutesToTextMode(t *testing.T) {
	backend := &mockBackend{}
	chat, view := newTestChat(backend, Options{})

	chat.Submit(context.Background(), "  red shirt ")

	if backend.callCount() != 1 {
		t.Fatalf("expected 1 call, got %d", backend.callCount())
	}
	req := backend.calls[0]
	if req.Mode != entities.ModeText || req.Query != "red shirt" || req.Attachment != nil {
		t.Errorf("unexpected request: %+v", req)
	}
	if view.inputClears != 1 {
		t.Errorf("input should be cleared once, got %d", view.inputClears)
	}
}

func TestSearchChat_AttachmentRoutesToImageMode(t *testing.T) {
	backend := &mockBackend{}
	chat, view := newTestChat(backend, Options{})

	att := entities.NewAttachment("look.png", "image/png", []byte("img"))
	if err := chat.Attachments().Attach(att); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if view.placeholder != CaptionPlaceholder {
		t.Errorf("placeholder should prompt for caption, got %q", view.placeholder)
	}

	chat.Submit(context.Background(), " in blue ")

	req := backend.calls[0]
	if req.Mode != entities.ModeImage || req.Attachment != att || req.Query != "in blue" {
		t.Errorf("unexpected request: %+v", req)
	}

	query := chat.Transcript().Entries()[0]
	if query.Kind != entities.KindQuery || query.ImagePreview == "" || query.Text != "in blue" {
		t.Errorf("unexpected optimistic entry: %+v", query)
	}
}

func TestSearchChat_ImageOnlyUsesLabel(t *testing.T) {
	backend := &mockBackend{}
	chat, _ := newTestChat(backend, Options{})
	chat.Attachments().Attach(entities.NewAttachment("look.png", "image/png", []byte("img")))

	chat.Submit(context.Background(), "")

	if backend.calls[0].Query != "" {
		t.Error("caption should be empty")
	}
	if got := chat.Transcript().Entries()[0].Text; got != ImageSearchLabel {
		t.Errorf("unexpected label: %q", got)
	}
}

func TestSearchChat_AttachmentClearedAfterResolution(t *testing.T) {
	for _, fail := range []bool{false, true} {
		backend := &mockBackend{searchFn: func(*entities.SearchRequest) (*entities.SearchResponse, error) {
			if fail {
				return nil, &entities.NetworkError{Err: errors.New("refused")}
			}
			return &entities.SearchResponse{}, nil
		}}
		chat, view := newTestChat(backend, Options{})
		chat.Attachments().Attach(entities.NewAttachment("a.png", "image/png", []byte("x")))

		chat.Submit(context.Background(), "")

		if chat.Attachments().Current() != nil {
			t.Errorf("fail=%v: attachment should be cleared", fail)
		}
		if view.preview != nil {
			t.Errorf("fail=%v: preview should be cleared", fail)
		}
		if view.placeholder != DefaultPlaceholder {
			t.Errorf("fail=%v: placeholder not reset: %q", fail, view.placeholder)
		}
	}
}

func TestSearchChat_LoadingMarkerRemovedOnce(t *testing.T) {
	backend := &mockBackend{}
	chat, view := newTestChat(backend, Options{})

	chat.Submit(context.Background(), "shoes")

	var loadingID string
	for _, e := range view.appended {
		if e.Kind == entities.KindLoading {
			if loadingID != "" {
				t.Fatal("more than one loading marker")
			}
			loadingID = e.ID
		}
	}
	if len(view.removed) != 1 || view.removed[0] != loadingID {
		t.Errorf("marker should be removed exactly once, removed=%v", view.removed)
	}
	for _, e := range chat.Transcript().Entries() {
		if e.Kind == entities.KindLoading {
			t.Error("loading marker left in transcript")
		}
	}
}

func TestSearchChat_SuccessWithAnswerAndItems(t *testing.T) {
	backend := &mockBackend{searchFn: func(*entities.SearchRequest) (*entities.SearchResponse, error) {
		return &entities.SearchResponse{
			Answer: "Try these:",
			Items: []entities.ResultItem{{
				Title: "Red Shirt", SubCategory: "Shirts", Colour: "Red", Usage: "Casual", Score: 0.87,
			}},
		}, nil
	}}
	chat, _ := newTestChat(backend, Options{})

	if err := chat.Submit(context.Background(), "red shirt"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	entries := chat.Transcript().Entries()
	want := []entities.EntryKind{entities.KindQuery, entities.KindExplanation, entities.KindResults}
	if got := kinds(entries); len(got) != len(want) || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("unexpected entries: %v", got)
	}
	if entries[1].Text != "Try these:" {
		t.Errorf("unexpected explanation: %q", entries[1].Text)
	}
	results := entries[2]
	if len(results.Items) != 1 || results.Items[0].Title != "Red Shirt" {
		t.Errorf("unexpected cards: %+v", results.Items)
	}
	if !strings.Contains(results.Text, "1") {
		t.Errorf("header should state the count: %q", results.Text)
	}
	if results.Items[0].Score.String() != "0.87" {
		t.Errorf("unexpected score: %s", results.Items[0].Score)
	}
}

func TestSearchChat_EmptyItemsNoAnswer(t *testing.T) {
	backend := &mockBackend{searchFn: func(*entities.SearchRequest) (*entities.SearchResponse, error) {
		return &entities.SearchResponse{Items: []entities.ResultItem{}}, nil
	}}
	chat, _ := newTestChat(backend, Options{})

	chat.Submit(context.Background(), "unicorn boots")

	entries := chat.Transcript().Entries()[1:]
	if len(entries) != 1 || entries[0].Kind != entities.KindNoResults {
		t.Errorf("expected one no-results entry, got %v", kinds(entries))
	}
}

func TestSearchChat_ServerDetailSurfaced(t *testing.T) {
	backend := &mockBackend{searchFn: func(*entities.SearchRequest) (*entities.SearchResponse, error) {
		return nil, &entities.ServerError{StatusCode: 413, Detail: "file too large"}
	}}
	chat, _ := newTestChat(backend, Options{})

	err := chat.Submit(context.Background(), "big")

	var se *entities.ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected server error, got %v", err)
	}
	entries := chat.Transcript().Entries()[1:]
	if len(entries) != 1 || entries[0].Kind != entities.KindError {
		t.Fatalf("expected one error entry, got %v", kinds(entries))
	}
	if !strings.Contains(entries[0].Text, "file too large") {
		t.Errorf("detail missing: %q", entries[0].Text)
	}
}

func TestSearchChat_ServerErrorWithoutDetail(t *testing.T) {
	backend := &mockBackend{searchFn: func(*entities.SearchRequest) (*entities.SearchResponse, error) {
		return nil, &entities.ServerError{StatusCode: 500}
	}}
	chat, _ := newTestChat(backend, Options{})

	chat.Submit(context.Background(), "x")

	if got := chat.Transcript().Entries()[1].Text; got != ServerErrorText {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestSearchChat_NetworkFailureThenRecovers(t *testing.T) {
	down := true
	backend := &mockBackend{searchFn: func(*entities.SearchRequest) (*entities.SearchResponse, error) {
		if down {
			return nil, &entities.NetworkError{Err: errors.New("connection refused")}
		}
		return &entities.SearchResponse{Answer: "ok"}, nil
	}}
	chat, _ := newTestChat(backend, Options{})

	chat.Submit(context.Background(), "first")
	entries := chat.Transcript().Entries()
	if len(entries) != 2 || entries[1].Kind != entities.KindError || entries[1].Text != NetworkErrorText {
		t.Fatalf("expected one generic error entry, got %+v", entries)
	}
	if chat.InFlight() != 0 {
		t.Error("controller should be idle")
	}

	down = false
	if err := chat.Submit(context.Background(), "second"); err != nil {
		t.Errorf("controller should accept a new submission: %v", err)
	}
}

func TestSearchChat_MalformedLooksLikeNetwork(t *testing.T) {
	backend := &mockBackend{searchFn: func(*entities.SearchRequest) (*entities.SearchResponse, error) {
		return nil, &entities.MalformedResponseError{Err: errors.New("bad json")}
	}}
	chat, _ := newTestChat(backend, Options{})

	chat.Submit(context.Background(), "x")

	if got := chat.Transcript().Entries()[1].Text; got != NetworkErrorText {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestSearchChat_TimeoutApplied(t *testing.T) {
	var deadline bool
	chat, _ := newTestChat(&mockBackend{}, Options{Timeout: time.Second})
	chat.backend = backendFunc(func(ctx context.Context) (*entities.SearchResponse, error) {
		_, deadline = ctx.Deadline()
		return &entities.SearchResponse{}, nil
	})

	chat.Submit(context.Background(), "x")

	if !deadline {
		t.Error("request context should carry a deadline")
	}
}

func TestSearchChat_OverlappingSubmissionsKeepOwnMarkers(t *testing.T) {
	release := map[string]chan struct{}{
		"slow": make(chan struct{}),
		"fast": make(chan struct{}),
	}
	backend := &mockBackend{searchFn: func(req *entities.SearchRequest) (*entities.SearchResponse, error) {
		<-release[req.Query]
		return &entities.SearchResponse{Answer: "answer for " + req.Query}, nil
	}}
	chat, _ := newTestChat(backend, Options{})

	var wg sync.WaitGroup
	for _, q := range []string{"slow", "fast"} {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			chat.Submit(context.Background(), q)
		}(q)
	}

	waitFor(t, func() bool { return backend.callCount() == 2 })
	close(release["fast"])
	waitFor(t, func() bool { return chat.InFlight() == 1 })
	close(release["slow"])
	wg.Wait()

	bySubmission := map[string][]entities.ChatEntry{}
	for _, e := range chat.Transcript().Entries() {
		if e.Kind == entities.KindLoading {
			t.Fatal("loading marker left in transcript")
		}
		bySubmission[e.SubmissionID] = append(bySubmission[e.SubmissionID], e)
	}
	for id, entries := range bySubmission {
		if len(entries) != 3 {
			t.Errorf("submission %s: expected query, answer and no-results, got %v", id, kinds(entries))
			continue
		}
		if !strings.HasSuffix(entries[1].Text, entries[0].Text) {
			t.Errorf("answer %q attached to wrong query %q", entries[1].Text, entries[0].Text)
		}
	}
}

func TestSearchChat_SerializeRejectsOverlap(t *testing.T) {
	gate := make(chan struct{})
	backend := &mockBackend{searchFn: func(*entities.SearchRequest) (*entities.SearchResponse, error) {
		<-gate
		return &entities.SearchResponse{}, nil
	}}
	chat, _ := newTestChat(backend, Options{Serialize: true})

	done := make(chan error)
	go func() { done <- chat.Submit(context.Background(), "first") }()
	waitFor(t, func() bool { return backend.callCount() == 1 })

	err := chat.Submit(context.Background(), "second")
	if !errors.Is(err, entities.ErrSubmissionInFlight) {
		t.Errorf("expected in-flight error, got %v", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Errorf("first submission failed: %v", err)
	}
	if backend.callCount() != 1 {
		t.Errorf("second submission should not reach the backend")
	}
}

func TestSearchChat_SubmitWithIDTagsEveryEntry(t *testing.T) {
	chat, _ := newTestChat(&mockBackend{}, Options{})

	id, err := chat.SubmitWithID(context.Background(), "shoes")
	if err != nil || id == "" {
		t.Fatalf("expected an ID and no error, got %q, %v", id, err)
	}
	warnID, err := chat.SubmitWithID(context.Background(), "  ")
	if !entities.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if warnID == "" || warnID == id {
		t.Fatalf("rejected submission should get its own ID, got %q", warnID)
	}

	var own, warnings int
	for _, e := range chat.Transcript().Entries() {
		switch e.SubmissionID {
		case id:
			own++
		case warnID:
			warnings++
			if e.Kind != entities.KindWarning {
				t.Errorf("unexpected %s entry for the rejected submission", e.Kind)
			}
		default:
			t.Errorf("entry %s has foreign submission %q", e.Kind, e.SubmissionID)
		}
	}
	if own < 2 || warnings != 1 {
		t.Errorf("expected the query with its outcome and one warning, got %d and %d", own, warnings)
	}
}

func TestSearchChat_ChecksImagesBeforeRendering(t *testing.T) {
	backend := &mockBackend{searchFn: func(*entities.SearchRequest) (*entities.SearchResponse, error) {
		return &entities.SearchResponse{Items: []entities.ResultItem{
			{Title: "Red Shirt", ImageURL: "http://img/red.jpg"},
			{Title: "Blue Shirt", ImageURL: "http://img/blue.jpg"},
			{Title: "Scarf"},
		}}, nil
	}}
	images := &stubImages{broken: map[string]bool{"http://img/blue.jpg": true}}
	chat, _ := newTestChat(backend, Options{Images: images})

	var checks, loadingShown int32
	images.during = func() {
		atomic.AddInt32(&checks, 1)
		for _, e := range chat.Transcript().Entries() {
			if e.Kind == entities.KindLoading {
				atomic.StoreInt32(&loadingShown, 1)
			}
		}
	}

	done := make(chan error, 1)
	go func() { done <- chat.Submit(context.Background(), "shirts") }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("image check blocked the transcript")
	}

	if n := atomic.LoadInt32(&checks); n != 2 {
		t.Errorf("expected 2 image checks, got %d", n)
	}
	if atomic.LoadInt32(&loadingShown) != 1 {
		t.Error("images should be checked while the loading marker is shown")
	}
	var results *entities.ChatEntry
	for _, e := range chat.Transcript().Entries() {
		if e.Kind == entities.KindResults {
			e := e
			results = &e
		}
	}
	if results == nil || len(results.Items) != 3 {
		t.Fatalf("expected 3 results, got %+v", results)
	}
	if results.Items[0].ImageUnavailable || !results.Items[1].ImageUnavailable || results.Items[2].ImageUnavailable {
		t.Errorf("unexpected image marks: %+v", results.Items)
	}
}

func TestSearchChat_Health(t *testing.T) {
	backend := &mockBackend{healthy: errors.New("down")}
	chat, _ := newTestChat(backend, Options{})
	if err := chat.Health(context.Background()); err == nil {
		t.Error("health should report backend error")
	}
}

type backendFunc func(ctx context.Context) (*entities.SearchResponse, error)

func (f backendFunc) Search(ctx context.Context, req *entities.SearchRequest) (*entities.SearchResponse, error) {
	return f(ctx)
}

func (f backendFunc) Health(ctx context.Context) error { return nil }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
