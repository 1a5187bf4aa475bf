package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatching(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("failed to fetch feed: %w", Wrap(KindFeed, CodeFetchError, cause, "GET %s", "http://x"))

	if !errors.Is(err, New(KindFeed, CodeFetchError, "")) {
		t.Error("Expected error to match FeedError(FETCH_ERROR)")
	}
	if errors.Is(err, New(KindFeed, CodeHTTPError, "")) {
		t.Error("Expected error not to match FeedError(HTTP_ERROR)")
	}
	if !errors.Is(err, cause) {
		t.Error("Expected wrapped cause to be reachable")
	}
	if CodeOf(err) != CodeFetchError {
		t.Errorf("Expected code FETCH_ERROR, got %s", CodeOf(err))
	}
	if KindOf(err) != KindFeed {
		t.Errorf("Expected kind FeedError, got %s", KindOf(err))
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if code := CodeOf(errors.New("boom")); code != CodeProcessingError {
		t.Errorf("Expected PROCESSING_ERROR for plain errors, got %s", code)
	}
	if kind := KindOf(errors.New("boom")); kind != "" {
		t.Errorf("Expected empty kind for plain errors, got %s", kind)
	}
}

func TestErrorString(t *testing.T) {
	err := New(KindGeneration, CodeNoCandidates, "model returned %d candidates", 0)
	expected := "GenerationError(NO_CANDIDATES): model returned 0 candidates"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}
