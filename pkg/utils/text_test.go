package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("Привет, мир", 6); got != "Привет..." {
		t.Errorf("cyrillic: got %s", got)
	}
	if got := Truncate("Ответ", 5); got != "Ответ" {
		t.Errorf("exact rune length should be unchanged, got %s", got)
	}
}
