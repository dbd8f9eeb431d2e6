package models

import (
	"strings"
	"testing"
)

func TestNewBookmark_TrimsAndAssignsID(t *testing.T) {
	b := NewBookmark("u1", "  Site  ", " https://x.com ")
	if b.ID == "" {
		t.Fatal("expected generated id")
	}
	if b.Title != "Site" || b.URL != "https://x.com" {
		t.Errorf("not trimmed: %+v", b)
	}
	if b.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
	if err := b.Validate(); err != nil {
		t.Errorf("valid bookmark rejected: %v", err)
	}
}

func TestValidate_RequiresTitleAndURL(t *testing.T) {
	for _, tc := range []struct{ title, url, field string }{
		{"", "https://x.com", "title"},
		{"Site", "", "url"},
		{"   ", "https://x.com", "title"},
	} {
		b := NewBookmark("u1", tc.title, tc.url)
		err := b.Validate()
		if err == nil {
			t.Errorf("title=%q url=%q: expected error", tc.title, tc.url)
			continue
		}
		// ozzo names fields by their json tag.
		if !strings.Contains(strings.ToLower(err.Error()), strings.ToLower(tc.field)) {
			t.Errorf("error %q does not mention %s", err, tc.field)
		}
	}
}

func TestValidate_MalformedURLAccepted(t *testing.T) {
	b := NewBookmark("u1", "Broken", "not a url at all")
	if err := b.Validate(); err != nil {
		t.Fatalf("malformed url must not block saving: %v", err)
	}
	if b.Domain() != "" {
		t.Errorf("domain = %q, want empty", b.Domain())
	}
	if b.FaviconURL() != "" {
		t.Errorf("favicon = %q, want empty", b.FaviconURL())
	}
}

func TestFaviconURL(t *testing.T) {
	b := Bookmark{URL: "https://go.dev/doc/"}
	if b.Domain() != "go.dev" {
		t.Errorf("domain = %q", b.Domain())
	}
	want := "https://www.google.com/s2/favicons?domain=go.dev&sz=128"
	if got := b.FaviconURL(); got != want {
		t.Errorf("favicon = %q, want %q", got, want)
	}
}

func TestPatchApply(t *testing.T) {
	b := NewBookmark("u1", "Old", "https://x.com")
	title := " New "
	got := BookmarkPatch{Title: &title}.Apply(b)
	if got.Title != "New" {
		t.Errorf("title = %q", got.Title)
	}
	if got.URL != b.URL || got.ID != b.ID || !got.CreatedAt.Equal(b.CreatedAt) {
		t.Errorf("untouched fields changed: %+v", got)
	}
	if !(BookmarkPatch{}).Empty() {
		t.Error("zero patch should be empty")
	}
}

func TestChangeID(t *testing.T) {
	b := Bookmark{ID: "a", OwnerID: "u"}
	if Inserted(b).ID() != "a" || Updated(b).ID() != "a" {
		t.Error("insert/update id mismatch")
	}
	if d := Deleted("u", "z"); d.ID() != "z" || d.Record != nil {
		t.Errorf("delete change = %+v", d)
	}
}
