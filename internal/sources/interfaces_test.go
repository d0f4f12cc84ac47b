package sources

import "testing"

func TestClassifyHTTPStatus(t *testing.T) {
	cases := map[int]bool{
		200: false,
		404: false,
		429: true,
		500: true,
		503: true,
	}
	for status, want := range cases {
		if got := classifyHTTPStatus(status); got != want {
			t.Errorf("classifyHTTPStatus(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestStringsFromFilter(t *testing.T) {
	fallback := []string{"a", "b"}

	if got := stringsFromFilter(nil, "hubs", fallback); len(got) != 2 {
		t.Errorf("expected fallback for nil filter, got %v", got)
	}

	filter := map[string]any{"hubs": []any{"x", "y"}}
	got := stringsFromFilter(filter, "hubs", fallback)
	if len(got) != 2 || got[0] != "x" {
		t.Errorf("expected [x y] from []any filter, got %v", got)
	}

	filter2 := map[string]any{"hubs": []string{"z"}}
	got2 := stringsFromFilter(filter2, "hubs", fallback)
	if len(got2) != 1 || got2[0] != "z" {
		t.Errorf("expected [z] from []string filter, got %v", got2)
	}
}
