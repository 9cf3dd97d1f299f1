package aggregator

import (
	"testing"

	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/music"
)

func TestSearchMergeUnionsSameQuery(t *testing.T) {
	m := &searchMerger{}

	m.merge(&music.SearchResult{
		Query: "daft punk",
		Songs: []string{"s1"},
	})
	got := m.merge(&music.SearchResult{
		Query:   "daft punk",
		Songs:   []string{"s1", "s2"},
		Artists: []string{"ar1"},
	})

	if len(got.Songs) != 2 || got.Songs[0] != "s1" || got.Songs[1] != "s2" {
		t.Errorf("expected deduplicated union [s1 s2], got %v", got.Songs)
	}
	if len(got.Artists) != 1 || got.Artists[0] != "ar1" {
		t.Errorf("expected artists [ar1], got %v", got.Artists)
	}
}

func TestSearchMergeReplacesOnNewQuery(t *testing.T) {
	m := &searchMerger{}

	m.merge(&music.SearchResult{Query: "old", Songs: []string{"s1", "s2"}})
	got := m.merge(&music.SearchResult{Query: "new", Songs: []string{"s9"}})

	if got.Query != "new" {
		t.Errorf("expected new query cached, got %q", got.Query)
	}
	if len(got.Songs) != 1 || got.Songs[0] != "s9" {
		t.Errorf("previous query's results should be discarded, got %v", got.Songs)
	}
}

func TestSearchMergeAssignsAndUpdatesIdentifier(t *testing.T) {
	m := &searchMerger{}

	first := m.merge(&music.SearchResult{Query: "q"})
	if first.Identifier == "" {
		t.Fatal("expected an identifier assigned to an unidentified result")
	}

	second := m.merge(&music.SearchResult{Query: "q", Identifier: "session-2"})
	if second.Identifier != "session-2" {
		t.Errorf("latest session identifier should win, got %q", second.Identifier)
	}
}

func TestSearchMergeLeavesInputUntouched(t *testing.T) {
	m := &searchMerger{}

	in := &music.SearchResult{Query: "q", Songs: []string{"s1"}}
	got := m.merge(in)

	if in.Identifier != "" {
		t.Errorf("merge wrote a generated identifier into the caller's record: %q", in.Identifier)
	}
	if got.Identifier == "" {
		t.Error("expected an identifier on the merged snapshot")
	}
}

func TestSearchCurrentReturnsSnapshot(t *testing.T) {
	m := &searchMerger{}
	if m.current() != nil {
		t.Fatal("expected nil before any merge")
	}

	m.merge(&music.SearchResult{Query: "q", Songs: []string{"s1"}})
	snap := m.current()
	snap.Songs[0] = "tampered"

	if again := m.current(); again.Songs[0] != "s1" {
		t.Error("mutating a snapshot must not affect the cached result")
	}
}
