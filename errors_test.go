package blogadmin

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("post: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: slug taken", ErrConflict), http.StatusConflict},
		{ErrUnauthorized, http.StatusUnauthorized},
		{&ValidationError{Fields: map[string]string{"title": "x"}}, http.StatusBadRequest},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), tt.err.Error())
	}
}

func TestNewErrorResponse(t *testing.T) {
	res := NewErrorResponse(errors.New("sql: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, "Internal Server Error", res.Message)

	v := &ValidationError{}
	v.Add("title", "Title is required")
	v.Add("title", "ignored")
	res = NewErrorResponse(fmt.Errorf("create post: %w", v))
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "Validation failed", res.Message)
	assert.Equal(t, map[string]string{"title": "Title is required"}, res.Errors)

	res = NewErrorResponse(fmt.Errorf("%w: no ids given", ErrInvalid))
	assert.Equal(t, "invalid request: no ids given", res.Message)
	assert.Nil(t, res.Errors)
}

func TestValidationErrorMessage(t *testing.T) {
	var v ValidationError
	assert.NoError(t, v.Err())
	v.Add("b", "second")
	v.Add("a", "first")
	assert.Equal(t, "validation failed: a: first; b: second", v.Error())
}

func TestValidateContentLength(t *testing.T) {
	in := PostInput{
		Title:       "t",
		Description: "d",
		Status:      StatusDraft,
		CategoryID:  "0b6a1d0c-5e0c-4a43-9d3b-0f1d5f0a2b11",
		TagIDs:      []string{"5d9c2b0e-3c5b-4f60-8c9b-2f4e6a1b7c22"},
	}

	in.Content = "hi data:image/png;base64," + strings.Repeat("A", 20000)
	assert.Equal(t, "Post content must be at least 10 characters", validatePostInput(in).Fields["content"])

	in.Content = strings.Repeat("x", 10001)
	assert.Equal(t, "Post content cannot exceed 10000 characters", validatePostInput(in).Fields["content"])

	in.Content = strings.Repeat("é", 10)
	assert.NoError(t, validatePostInput(in).Err())
}
