package emailparse

import "testing"

func TestSplit_Empty(t *testing.T) {
	p := Split("")
	if p.Reply != "" || p.Original != "" {
		t.Errorf("Split(\"\") = %+v", p)
	}
}

func TestSplit_NoDivider(t *testing.T) {
	body := "Load is still available.\nCan you do $1500?"
	p := Split(body)
	if p.Reply != body {
		t.Errorf("Reply = %q", p.Reply)
	}
	if p.Original != "" {
		t.Errorf("Original = %q, want empty", p.Original)
	}
}

func TestSplit_OutlookDivider(t *testing.T) {
	body := "Yes, it picks up tomorrow.\n" +
		"-----Original Message-----\n" +
		"Is the load still available?"
	p := Split(body)
	if p.Reply != "Yes, it picks up tomorrow." {
		t.Errorf("Reply = %q", p.Reply)
	}
	if p.Original != "Is the load still available?" {
		t.Errorf("Original = %q", p.Original)
	}
}

func TestSplit_GmailDivider(t *testing.T) {
	body := "We can do $1600 all in.\n" +
		"On Mon, Aug 24, 2026 at 9:12 AM Dispatch wrote:\n" +
		"From: dispatch@wideroad.example\n" +
		"Subject: Load 4417\n" +
		"Our truck is empty in Chicago."
	p := Split(body)
	if p.Reply != "We can do $1600 all in." {
		t.Errorf("Reply = %q", p.Reply)
	}
	// Header lines after the Gmail divider are dropped.
	if p.Original != "Our truck is empty in Chicago." {
		t.Errorf("Original = %q", p.Original)
	}
}

func TestSplit_ForwardDivider(t *testing.T) {
	body := "See below.\n" +
		"---------- Forwarded message ----------\n" +
		"Rate confirmation attached."
	p := Split(body)
	if p.Reply != "See below." {
		t.Errorf("Reply = %q", p.Reply)
	}
	if p.Original != "Rate confirmation attached." {
		t.Errorf("Original = %q", p.Original)
	}
}

func TestSplit_DividerCaseInsensitive(t *testing.T) {
	body := "ok\n-----ORIGINAL MESSAGE-----\nolder text"
	p := Split(body)
	if p.Reply != "ok" || p.Original != "older text" {
		t.Errorf("parts = %+v", p)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "no markup here", "no markup here"},
		{"tags", "<p>Load <b>4417</b> covered</p>", "Load 4417 covered"},
		{"whitespace runs", "a\n\n  b\t c", "a b c"},
		{"nested", "<div><span>rate is $1500</span></div>", "rate is $1500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.in); got != tt.want {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
