// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"
	"testing"
)

// =============================================================================
// TURN TESTS
// =============================================================================

func TestNewPlaceholder_Flags(t *testing.T) {
	p := NewPlaceholder()
	if p.Sender != SenderAssistant {
		t.Errorf("Sender = %v, want %v", p.Sender, SenderAssistant)
	}
	if !p.IsStreaming || !p.IsLoadingPending {
		t.Errorf("placeholder flags = (%v, %v), want (true, true)", p.IsStreaming, p.IsLoadingPending)
	}
	if p.Text != "" {
		t.Errorf("Text = %q, want empty", p.Text)
	}
	if p.IsTerminal() {
		t.Error("placeholder should not be terminal")
	}
	p.Finish()
	if !p.IsTerminal() {
		t.Error("finished placeholder should be terminal")
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestTurn_CloneIsDeep(t *testing.T) {
	orig := NewUserTurn("hi", []byte{1, 2, 3}, "a.txt")
	orig.ImageURLs = []string{"u1"}
	c := orig.Clone()
	c.AttachedImageData[0] = 9
	c.ImageURLs[0] = "changed"
	if orig.AttachedImageData[0] != 1 {
		t.Error("clone shares attachment bytes")
	}
	if orig.ImageURLs[0] != "u1" {
		t.Error("clone shares image urls")
	}
}

func TestTurn_ApproxSize(t *testing.T) {
	turn := Turn{Text: "abcd", ImageURLs: []string{"xy"}, AttachedImageData: make([]byte, 10)}
	if got, want := turn.ApproxSize(), int64(4+2+10+128); got != want {
		t.Errorf("ApproxSize() = %d, want %d", got, want)
	}
}

// =============================================================================
// MODE TESTS
// =============================================================================

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"chat", ModeChat, false},
		{"IMAGE", ModeImage, false},
		{" video ", ModeVideo, false},
		{"", ModeChat, false},
		{"audio", "", true},
	}
	for _, tc := range tests {
		got, err := ParseMode(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestAttachments_IsEmpty(t *testing.T) {
	if !(Attachments{}).IsEmpty() {
		t.Error("zero attachments should be empty")
	}
	if (Attachments{ImageData: []byte{1}}).IsEmpty() {
		t.Error("image attachment should not be empty")
	}
	if (Attachments{FileName: "a.go", FileSummary: "x"}).IsEmpty() {
		t.Error("file attachment should not be empty")
	}
}

// =============================================================================
// TRANSCRIPT TESTS
// =============================================================================

func TestTranscript_UpdateReplacesWholeRecord(t *testing.T) {
	tr := NewTranscript()
	user := NewUserTurn("hello", nil, "")
	p := NewPlaceholder()
	tr.Append(user)
	tr.Append(p)

	got, ok := tr.Update(p.ID, func(t *Turn) {
		t.Text = "Hi"
		t.ImageURLs = []string{"a", "b"}
		t.Finish()
	})
	if !ok {
		t.Fatal("Update() returned false for known id")
	}
	if got.Text != "Hi" || !got.IsTerminal() {
		t.Errorf("Update() = %+v", got)
	}

	turns := tr.Turns()
	if len(turns) != 2 {
		t.Fatalf("len(Turns()) = %d, want 2", len(turns))
	}
	if turns[1].ID != p.ID || turns[1].Text != "Hi" {
		t.Errorf("turns[1] = %+v", turns[1])
	}
	// Snapshots must not alias stored slices.
	turns[1].ImageURLs[0] = "mutated"
	again, _ := tr.Get(p.ID)
	if again.ImageURLs[0] != "a" {
		t.Error("snapshot aliases transcript storage")
	}
}

func TestTranscript_UpdateUnknownID(t *testing.T) {
	tr := NewTranscript()
	called := false
	if _, ok := tr.Update("missing", func(*Turn) { called = true }); ok {
		t.Error("Update() on unknown id returned true")
	}
	if called {
		t.Error("Update() called fn for unknown id")
	}
}

func TestTranscript_UpdateKeepsID(t *testing.T) {
	tr := NewTranscript()
	p := NewPlaceholder()
	tr.Append(p)
	tr.Update(p.ID, func(t *Turn) { t.ID = "other" })
	if _, ok := tr.Get(p.ID); !ok {
		t.Error("Update() allowed the id to change")
	}
}

func TestTranscript_Before(t *testing.T) {
	tr := NewTranscript()
	a := NewUserTurn("a", nil, "")
	b := NewPlaceholder()
	c := NewUserTurn("c", nil, "")
	tr.Append(a)
	tr.Append(b)
	tr.Append(c)

	before := tr.Before(c.ID)
	if len(before) != 2 || before[0].ID != a.ID || before[1].ID != b.ID {
		t.Errorf("Before(c) = %+v", before)
	}
	if got := tr.Before(a.ID); len(got) != 0 {
		t.Errorf("Before(a) len = %d, want 0", len(got))
	}
}

func TestTranscript_ResetRebuildsIndex(t *testing.T) {
	tr := NewTranscript()
	tr.Append(NewUserTurn("old", nil, ""))
	fresh := NewUserTurn("new", nil, "")
	tr.Reset([]Turn{fresh})
	if tr.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tr.Len())
	}
	if got, ok := tr.Get(fresh.ID); !ok || got.Text != "new" {
		t.Errorf("Get(fresh) = %+v, %v", got, ok)
	}
	if tr.FirstUserText() != "new" {
		t.Errorf("FirstUserText() = %q, want %q", tr.FirstUserText(), "new")
	}
}

func TestTranscript_ConcurrentAccess(t *testing.T) {
	tr := NewTranscript()
	p := NewPlaceholder()
	tr.Append(p)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Update(p.ID, func(t *Turn) { t.Text += "x" })
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tr.Turns()
			}
		}()
	}
	wg.Wait()

	got, _ := tr.Get(p.ID)
	if len(got.Text) != 1000 {
		t.Errorf("len(Text) = %d, want 1000", len(got.Text))
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestMakeTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "  hello  ", "hello"},
		{"empty uses fallback", "   ", "新会话"},
		{"exactly max", "一二三四五六七八九十一二三四五六七八", "一二三四五六七八九十一二三四五六七八"},
		{"long is cut", "一二三四五六七八九十一二三四五六七八九", "一二三四五六七八九十一二三四五六七八…"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MakeTitle(tc.in, "新会话"); got != tc.want {
				t.Errorf("MakeTitle(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSettleTurns(t *testing.T) {
	empty := NewPlaceholder()
	partial := NewPlaceholder()
	partial.Text = "half"
	done := NewUserTurn("q", nil, "")

	out := SettleTurns([]Turn{done, empty, partial}, "cancelled")
	for i, turn := range out {
		if !turn.IsTerminal() {
			t.Errorf("turn %d not terminal", i)
		}
	}
	if out[1].Text != "cancelled" {
		t.Errorf("empty placeholder text = %q, want %q", out[1].Text, "cancelled")
	}
	if out[2].Text != "half" {
		t.Errorf("partial placeholder text = %q, want %q", out[2].Text, "half")
	}
	if !empty.IsStreaming {
		t.Error("SettleTurns modified its input")
	}
}

func TestConversation_ApproxSize(t *testing.T) {
	c := Conversation{Turns: []Turn{{Text: "ab"}, {Text: "cde"}}}
	if got, want := c.ApproxSize(), int64(2+3+2*128); got != want {
		t.Errorf("ApproxSize() = %d, want %d", got, want)
	}
}
