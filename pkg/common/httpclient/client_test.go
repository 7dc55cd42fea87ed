package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, nil, func() error {
		calls++
		if calls < 2 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetrySkipsNonRetriableErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, IsRetriable, func() error {
		calls++
		return &StatusError{StatusCode: http.StatusBadRequest}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, 3, time.Millisecond, nil, func() error { return errors.New("never") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetriable(t *testing.T) {
	assert.True(t, IsRetriable(&StatusError{StatusCode: http.StatusServiceUnavailable}))
	assert.True(t, IsRetriable(&StatusError{StatusCode: http.StatusTooManyRequests}))
	assert.False(t, IsRetriable(&StatusError{StatusCode: http.StatusUnauthorized}))
	assert.False(t, IsRetriable(errors.New("plain")))
}

func TestNewAttachesBearerToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client := New(time.Second, StaticToken("secret-key"))
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer secret-key", got)

	assert.Nil(t, StaticToken(""))
}
