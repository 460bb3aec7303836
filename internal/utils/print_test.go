package utils

import (
	"testing"

	"github.com/baalimago/go_away_boilerplate/pkg/testboil"
)

func Test_RenderMarkdown_raw(t *testing.T) {
	given := "# Header\nsome *text*"
	testboil.FailTestIfDiff(t, RenderMarkdown(given, true), given)
}

func Test_RenderMarkdown_neverEmpty(t *testing.T) {
	got := RenderMarkdown("plain answer", false)
	if got == "" {
		t.Fatal("rendered output should never be empty")
	}
}
