package data

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := map[string]struct {
		err  error
		kind Kind
	}{
		"not found":      {ErrNotFound("abc"), KindNotFound},
		"already exists": {ErrAlreadyExists("/a"), KindAlreadyExists},
		"invalid path":   {ErrInvalidPath("/.."), KindInvalidPath},
		"not empty":      {ErrDirectoryNotEmpty("/a"), KindDirectoryNotEmpty},
		"validation":     {ErrValidation("checker", "too large"), KindValidation},
		"transaction":    {ErrTransactionFailed(errors.New("boom")), KindTransactionFailed},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if !IsKind(test.err, test.kind) {
				t.Errorf("expected kind %s, got %v", test.kind, test.err)
			}
			if IsKind(test.err, KindPermissionDenied) {
				t.Error("kind must not match a different kind")
			}
		})
	}
}

func TestErrorKindSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("outer context: %w", ErrNotFound("abc"))

	if !IsKind(wrapped, KindNotFound) {
		t.Error("kind should be detectable through wrapping")
	}

	if !errors.Is(wrapped, &Error{Kind: KindNotFound}) {
		t.Error("errors.Is should match on kind")
	}
}

func TestValidationDetail(t *testing.T) {
	err := ErrValidation("size-limit", map[string]any{"max": 1024})

	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatal("expected *Error")
	}

	detail, ok := verr.Detail.(map[string]any)
	if !ok || detail["max"] != 1024 {
		t.Errorf("unexpected detail: %v", verr.Detail)
	}
}

func TestErrorsCollector(t *testing.T) {
	errs := Errors{}
	errs.Add(nil)

	if errs.Errors() != nil {
		t.Error("empty collector should yield nil")
	}

	errs.Add(errors.New("first"))
	errs.Add(errors.New("second"))

	joined := errs.Errors()
	if joined == nil {
		t.Fatal("expected joined error")
	}
}
