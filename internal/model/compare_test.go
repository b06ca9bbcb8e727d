package model

import (
	"slices"
	"testing"
)

func TestCompareReports(t *testing.T) {
	t.Parallel()

	base := &MirrorReport{ID: 1, Host: "site.test", Entries: []Entry{
		{OriginalURL: "https://site.test/", Hash: "aaa"},
		{OriginalURL: "https://site.test/old.css", Hash: "bbb"},
		{OriginalURL: "https://site.test/app.js", Hash: "ccc"},
		{OriginalURL: "https://site.test/failed.png"},
	}}
	target := &MirrorReport{ID: 2, Host: "site.test", Entries: []Entry{
		{OriginalURL: "https://site.test/", Hash: "aaa"},
		{OriginalURL: "https://site.test/app.js", Hash: "ddd"},
		{OriginalURL: "https://site.test/new.css", Hash: "eee"},
		{OriginalURL: "https://site.test/failed.png", Hash: "fff"},
	}}

	c := CompareReports(base, target)

	if c.BaseID != 1 || c.TargetID != 2 {
		t.Errorf("unexpected ids: %d -> %d", c.BaseID, c.TargetID)
	}
	if !slices.Equal(c.Added, []string{"https://site.test/new.css"}) {
		t.Errorf("Added = %v", c.Added)
	}
	if !slices.Equal(c.Removed, []string{"https://site.test/old.css"}) {
		t.Errorf("Removed = %v", c.Removed)
	}
	if !slices.Equal(c.Changed, []string{"https://site.test/app.js"}) {
		t.Errorf("Changed = %v", c.Changed)
	}
	// a missing hash on either side is not a content change
	if c.Unchanged != 2 {
		t.Errorf("Unchanged = %d, want 2", c.Unchanged)
	}
	if !c.HasChanges() {
		t.Error("expected changes")
	}
}

func TestCompareReportsIdentical(t *testing.T) {
	t.Parallel()

	r := &MirrorReport{Host: "site.test", Entries: []Entry{{OriginalURL: "https://site.test/", Hash: "x"}}}
	c := CompareReports(r, r)
	if c.HasChanges() {
		t.Errorf("expected no changes, got %+v", c)
	}
}
