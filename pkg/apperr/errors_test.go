package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindHTTPStatus(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected int
	}{
		{KindUnauthenticated, http.StatusUnauthorized},
		{KindNoActiveOrganization, http.StatusForbidden},
		{KindForbidden, http.StatusForbidden},
		{KindReadOnly, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindExhausted, http.StatusGone},
		{KindGone, http.StatusGone},
		{KindInvalidTransition, http.StatusUnprocessableEntity},
		{KindTooManyRequests, http.StatusTooManyRequests},
		{KindInvalidInput, http.StatusBadRequest},
		{KindUnavailable, http.StatusServiceUnavailable},
		{KindInternal, http.StatusInternalServerError},
		{Kind("whatever"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.HTTPStatus())
		})
	}
}

func TestErrorString(t *testing.T) {
	err := New(KindNotFound, "invitelinks.Accept", "Invalid or expired invite link")
	assert.Equal(t, "invitelinks.Accept: Invalid or expired invite link", err.Error())

	wrapped := Wrap(KindInternal, "orgs.GetMemberRole", errors.New("connection reset"))
	assert.Equal(t, "orgs.GetMemberRole: internal: connection reset", wrapped.Error())
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(KindConflict, "op", "already a member"))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestFromStore(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, FromStore("op", nil))
	})

	t.Run("deadline becomes unavailable", func(t *testing.T) {
		err := FromStore("op", fmt.Errorf("query: %w", context.DeadlineExceeded))
		assert.Equal(t, KindUnavailable, KindOf(err))
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("canceled becomes unavailable", func(t *testing.T) {
		err := FromStore("op", context.Canceled)
		assert.Equal(t, KindUnavailable, KindOf(err))
	})

	t.Run("typed error passes through", func(t *testing.T) {
		orig := New(KindNotFound, "op", "missing")
		err := FromStore("outer", orig)
		assert.Same(t, orig, err)
	})

	t.Run("unknown becomes internal", func(t *testing.T) {
		err := FromStore("op", errors.New("boom"))
		ae, ok := As(err)
		require.True(t, ok)
		assert.Equal(t, KindInternal, ae.Kind)
		assert.Equal(t, "op", ae.Op)
	})
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindGone, KindOf(New(KindGone, "", "")))
	assert.True(t, IsKind(New(KindExhausted, "", ""), KindExhausted))
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "Internal server error", PublicMessage(errors.New("secret dsn")))
	assert.Equal(t, "Internal server error", PublicMessage(Wrap(KindInternal, "op", errors.New("secret"))))
	assert.Equal(t, "Failed to approve join request. Please try again.",
		PublicMessage(New(KindInternal, "op", "Failed to approve join request. Please try again.")))
	assert.Equal(t, "Try again",
		PublicMessage(&Error{Kind: KindInternal, Message: "Try again", Err: errors.New("pq: deadlock detected")}))
	assert.Equal(t, "Service temporarily unavailable", PublicMessage(Wrap(KindUnavailable, "op", context.Canceled)))
	assert.Equal(t, "Not Found", PublicMessage(&Error{Kind: KindNotFound}))
	assert.Equal(t, "already processed", PublicMessage(New(KindConflict, "op", "already processed")))
}
