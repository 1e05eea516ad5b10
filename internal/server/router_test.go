package server

import "testing"

func TestExtractURL(t *testing.T) {
	tests := []struct {
		command string
		want    string
		ok      bool
	}{
		{"open golang.org", "https://golang.org", true},
		{"go to https://go.dev/blog", "https://go.dev/blog", true},
		{"Show me news.ycombinator.com", "https://news.ycombinator.com", true},
		{"browse cat pictures", "https://www.google.com/search?q=cat+pictures", true},
		{"open weather today.", "https://www.google.com/search?q=weather+today", true},
		{"summarize this page", "", false},
		{"openai is interesting", "", false},
		{"open ", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractURL(tt.command)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ExtractURL(%q) = %q,%v want %q,%v", tt.command, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIsResearchTask(t *testing.T) {
	yes := []string{
		"research solar panels",
		"please investigate the outage",
		"can you search the web for reviews",
		"RESEARCH TASK: fusion energy",
		"Deep study of rust vs go",
	}
	no := []string{
		"open golang.org",
		"what time is it",
		"write a haiku",
	}
	for _, c := range yes {
		if !IsResearchTask(c) {
			t.Errorf("IsResearchTask(%q) = false, want true", c)
		}
	}
	for _, c := range no {
		if IsResearchTask(c) {
			t.Errorf("IsResearchTask(%q) = true, want false", c)
		}
	}
}

func TestIsHalt(t *testing.T) {
	for _, c := range []string{"stop", "HALT", " cancel ", "abort"} {
		if !isHalt(c) {
			t.Errorf("isHalt(%q) = false", c)
		}
	}
	for _, c := range []string{"stop the music", "don't stop", "continue"} {
		if isHalt(c) {
			t.Errorf("isHalt(%q) = true", c)
		}
	}
}

func TestResearchTopic(t *testing.T) {
	tests := []struct {
		command string
		want    string
	}{
		{"RESEARCH TASK: fusion energy", "fusion energy"},
		{"research solar panels", "solar panels"},
		{"please investigate the outage", "please the outage"},
	}
	for _, tt := range tests {
		if got := researchTopic(tt.command); got != tt.want {
			t.Errorf("researchTopic(%q) = %q, want %q", tt.command, got, tt.want)
		}
	}
}

func TestDecodeDataURL(t *testing.T) {
	data, ext, err := decodeDataURL("data:image/jpeg;base64,aGVsbG8=")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(data) != "hello" || ext != "jpeg" {
		t.Fatalf("got (%q, %q)", data, ext)
	}

	// Bare base64 without a header defaults to png.
	data, ext, err = decodeDataURL("aGVsbG8=")
	if err != nil {
		t.Fatalf("decode bare: %v", err)
	}
	if string(data) != "hello" || ext != "png" {
		t.Fatalf("bare got (%q, %q)", data, ext)
	}

	for _, bad := range []string{"data:image/png;base64", "not base64!!", ""} {
		if _, _, err := decodeDataURL(bad); err == nil {
			t.Errorf("decodeDataURL(%q) succeeded, want error", bad)
		}
	}
}
