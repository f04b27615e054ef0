package utils

import (
	"slices"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("LIVEMAP_TEST_STR", "value")
	t.Setenv("LIVEMAP_TEST_INT", "42")
	t.Setenv("LIVEMAP_TEST_BAD", "forty")
	t.Setenv("LIVEMAP_TEST_LIST", " a, ,b ")
	t.Setenv("LIVEMAP_TEST_SECS", "5")

	if got := GetEnv("LIVEMAP_TEST_STR", "x"); got != "value" {
		t.Errorf("GetEnv = %q", got)
	}
	if got := GetEnv("LIVEMAP_TEST_MISSING", "x"); got != "x" {
		t.Errorf("GetEnv default = %q", got)
	}
	if got := GetEnvInt("LIVEMAP_TEST_INT", 1); got != 42 {
		t.Errorf("GetEnvInt = %d", got)
	}
	if got := GetEnvInt("LIVEMAP_TEST_BAD", 1); got != 1 {
		t.Errorf("GetEnvInt malformed = %d", got)
	}
	if got := GetEnvList("LIVEMAP_TEST_LIST", nil); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("GetEnvList = %v", got)
	}
	if got := GetEnvSeconds("LIVEMAP_TEST_SECS", time.Second); got != 5*time.Second {
		t.Errorf("GetEnvSeconds = %v", got)
	}
}
