package storage

import (
	"errors"
	"testing"
	"time"

	"notebook-backend/internal/config"
	"notebook-backend/internal/model"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	out := map[string]Storage{}
	for _, typ := range []string{"memory", "disk", "sqlite"} {
		s, err := New(config.StorageConfig{Type: typ, DataDir: t.TempDir(), CacheSize: 2})
		if err != nil {
			t.Fatalf("New(%s) error = %v", typ, err)
		}
		t.Cleanup(func() { s.Close() })
		out[typ] = s
	}
	return out
}

func newNotebook(id, title string, updated time.Time) *model.Notebook {
	return &model.Notebook{
		ID:        id,
		Title:     title,
		CreatedAt: updated,
		UpdatedAt: updated,
		Sources: []model.Source{
			{ID: id + "-s1", NotebookID: id, Name: "paper.pdf", Content: "body", CreatedAt: updated},
		},
	}
}

func TestNotebookLifecycle(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.CreateNotebook(newNotebook("nb1", "Biology", base)); err != nil {
				t.Fatalf("CreateNotebook() error = %v", err)
			}
			if err := s.CreateNotebook(newNotebook("nb2", "History", base.Add(time.Hour))); err != nil {
				t.Fatalf("CreateNotebook() error = %v", err)
			}

			got, err := s.GetNotebook("nb1")
			if err != nil {
				t.Fatalf("GetNotebook() error = %v", err)
			}
			if got.Title != "Biology" || len(got.Sources) != 1 || got.Sources[0].Name != "paper.pdf" {
				t.Errorf("GetNotebook() = %+v", got)
			}

			// returned values are copies
			got.Title = "changed"
			again, _ := s.GetNotebook("nb1")
			if again.Title != "Biology" {
				t.Error("mutating a returned notebook changed storage")
			}

			again.Title = "Cell Biology"
			if err := s.UpdateNotebook(again); err != nil {
				t.Fatalf("UpdateNotebook() error = %v", err)
			}
			if got, _ := s.GetNotebook("nb1"); got.Title != "Cell Biology" || len(got.Sources) != 1 {
				t.Errorf("after update = %+v", got)
			}

			list, err := s.ListNotebooks()
			if err != nil {
				t.Fatalf("ListNotebooks() error = %v", err)
			}
			if len(list) != 2 {
				t.Fatalf("ListNotebooks() returned %d notebooks", len(list))
			}

			if err := s.DeleteNotebook("nb1"); err != nil {
				t.Fatalf("DeleteNotebook() error = %v", err)
			}
			if _, err := s.GetNotebook("nb1"); !errors.Is(err, ErrNotebookNotFound) {
				t.Errorf("GetNotebook() after delete error = %v", err)
			}
			if err := s.DeleteNotebook("nb1"); !errors.Is(err, ErrNotebookNotFound) {
				t.Errorf("second DeleteNotebook() error = %v", err)
			}
			if err := s.UpdateNotebook(&model.Notebook{ID: "missing"}); !errors.Is(err, ErrNotebookNotFound) {
				t.Errorf("UpdateNotebook(missing) error = %v", err)
			}
		})
	}
}

func TestSourcesAndMessages(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			nb := newNotebook("nb", "Physics", now)
			nb.Sources = nil
			if err := s.CreateNotebook(nb); err != nil {
				t.Fatal(err)
			}

			for _, id := range []string{"a", "b", "c"} {
				src := &model.Source{ID: id, NotebookID: "nb", Name: id + ".txt", Content: "text " + id, CreatedAt: now}
				if err := s.AddSource("nb", src); err != nil {
					t.Fatalf("AddSource(%s) error = %v", id, err)
				}
			}
			if err := s.DeleteSource("nb", "b"); err != nil {
				t.Fatalf("DeleteSource() error = %v", err)
			}
			if err := s.DeleteSource("nb", "zzz"); !errors.Is(err, ErrSourceNotFound) {
				t.Errorf("DeleteSource(missing) error = %v", err)
			}
			got, _ := s.GetNotebook("nb")
			if len(got.Sources) != 2 || got.Sources[0].ID != "a" || got.Sources[1].ID != "c" {
				t.Errorf("sources = %+v", got.Sources)
			}

			for i, content := range []string{"question", "answer"} {
				role := model.RoleUser
				if i == 1 {
					role = model.RoleAssistant
				}
				msg := &model.Message{ID: content, NotebookID: "nb", Role: role, Content: content, Timestamp: now}
				if err := s.AddMessage("nb", msg); err != nil {
					t.Fatalf("AddMessage() error = %v", err)
				}
			}
			msgs, err := s.GetMessages("nb")
			if err != nil {
				t.Fatalf("GetMessages() error = %v", err)
			}
			if len(msgs) != 2 || msgs[0].Content != "question" || msgs[1].Role != model.RoleAssistant {
				t.Errorf("messages = %+v", msgs)
			}

			if err := s.AddMessage("missing", &model.Message{ID: "x"}); !errors.Is(err, ErrNotebookNotFound) {
				t.Errorf("AddMessage(missing) error = %v", err)
			}
			if _, err := s.GetMessages("missing"); !errors.Is(err, ErrNotebookNotFound) {
				t.Errorf("GetMessages(missing) error = %v", err)
			}
		})
	}
}

func TestPresentations(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.CreateNotebook(newNotebook("nb", "Deck source", now)); err != nil {
				t.Fatal(err)
			}
			p := &model.Presentation{
				ID:         "p1",
				NotebookID: "nb",
				Title:      "Overview",
				CreatedAt:  now,
				Slides: []model.Slide{
					{Title: "Intro", Points: []string{"one", "two"}, Narration: "Welcome.", Color: model.ColorCyan},
				},
			}
			if err := s.SavePresentation(p); err != nil {
				t.Fatalf("SavePresentation() error = %v", err)
			}
			if err := s.SavePresentation(&model.Presentation{ID: "p2", Title: "Loose", CreatedAt: now.Add(time.Minute)}); err != nil {
				t.Fatalf("SavePresentation() error = %v", err)
			}

			got, err := s.GetPresentation("p1")
			if err != nil {
				t.Fatalf("GetPresentation() error = %v", err)
			}
			if got.Title != "Overview" || len(got.Slides) != 1 || got.Slides[0].Points[1] != "two" || got.Slides[0].Color != model.ColorCyan {
				t.Errorf("GetPresentation() = %+v", got)
			}

			list, _ := s.ListPresentations("nb")
			if len(list) != 1 || list[0].ID != "p1" {
				t.Errorf("ListPresentations(nb) = %+v", list)
			}
			all, _ := s.ListPresentations("")
			if len(all) != 2 || all[0].ID != "p2" {
				t.Errorf("ListPresentations() = %+v", all)
			}

			if err := s.DeleteNotebook("nb"); err != nil {
				t.Fatal(err)
			}
			if _, err := s.GetPresentation("p1"); !errors.Is(err, ErrPresentationNotFound) {
				t.Errorf("presentation survived its notebook: %v", err)
			}
			if _, err := s.GetPresentation("p2"); err != nil {
				t.Errorf("unrelated presentation removed: %v", err)
			}
		})
	}
}

func TestDiskStorageReload(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := NewDiskStorage(dir, 10)
	if err := first.Init(); err != nil {
		t.Fatal(err)
	}
	if err := first.CreateNotebook(newNotebook("nb", "Persisted", now)); err != nil {
		t.Fatal(err)
	}
	if err := first.AddMessage("nb", &model.Message{ID: "m1", NotebookID: "nb", Role: model.RoleUser, Content: "hi", Timestamp: now}); err != nil {
		t.Fatal(err)
	}
	if err := first.Backup(); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	first.Close()

	second := NewDiskStorage(dir, 10)
	if err := second.Init(); err != nil {
		t.Fatal(err)
	}
	nb, err := second.GetNotebook("nb")
	if err != nil {
		t.Fatalf("GetNotebook() after reload error = %v", err)
	}
	if nb.Title != "Persisted" || len(nb.Messages) != 1 || nb.Messages[0].Content != "hi" {
		t.Errorf("reloaded notebook = %+v", nb)
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	if _, err := New(config.StorageConfig{Type: "redis"}); err == nil {
		t.Error("expected an error for an unknown storage type")
	}
}
