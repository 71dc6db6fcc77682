package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 << 20, "3.0 MB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
	if got := FormatElapsed(1500 * time.Millisecond); got != "1.5s" {
		t.Errorf("FormatElapsed = %q", got)
	}
}

func TestPromptForPath(t *testing.T) {
	var out bytes.Buffer
	if got := PromptForPath(strings.NewReader("photo.jpg\n"), &out, "Image", ""); got != "photo.jpg" {
		t.Errorf("got %q", got)
	}
	if got := PromptForPath(strings.NewReader("\n"), &out, "Output", "edited.png"); got != "edited.png" {
		t.Errorf("empty input: got %q, want default", got)
	}
	if got := PromptForPath(strings.NewReader(""), &out, "Output", "x.png"); got != "x.png" {
		t.Errorf("EOF: got %q, want default", got)
	}
	if !strings.Contains(out.String(), "Output [edited.png]: ") {
		t.Errorf("prompt text = %q", out.String())
	}
}
