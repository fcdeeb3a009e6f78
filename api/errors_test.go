package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/yush1006/todo/domain"
	"github.com/yush1006/todo/storage"
)

func TestClassifyStoreErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "notFound", err: fmt.Errorf("task x: %w", storage.ErrTaskNotFound), status: http.StatusNotFound, code: CodeNotFound},
		{name: "tooLarge", err: storage.ErrBatchTooLarge, status: http.StatusBadRequest, code: CodeBatchTooLarge},
		{name: "emptyText", err: domain.ErrEmptyText, status: http.StatusBadRequest, code: CodeEmptyText},
		{name: "other", err: errors.New("boom"), status: http.StatusInternalServerError, code: CodeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := classify(tt.err)
			if status != tt.status || code != tt.code {
				t.Fatalf("classify(%v) = %d %q, want %d %q", tt.err, status, code, tt.status, tt.code)
			}
		})
	}
}

func TestErrorForCodeReturnsDomainSentinels(t *testing.T) {
	if err := ErrorForCode(CodeNotFound); err != domain.ErrTaskNotFound {
		t.Fatalf("ErrorForCode(%q) = %v", CodeNotFound, err)
	}
	if !errors.Is(ErrorForCode(CodeNotFound), storage.ErrTaskNotFound) {
		t.Fatal("storage and domain sentinels must be the same value")
	}
	if err := ErrorForCode(CodeUnavailable); err != nil {
		t.Fatalf("expected no sentinel for %q, got %v", CodeUnavailable, err)
	}
}
