package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/catalogx/internal/domain"
	"github.com/timmy/catalogx/internal/service"
)

func TestNewNotifierDisabledWithoutURL(t *testing.T) {
	n := service.NewNotifier(service.NotifierConfig{})
	assert.Nil(t, n)

	// A nil notifier is a no-op.
	n.Notify(context.Background(), &domain.ExchangeJob{ID: "j1"})
}

func TestNotifierPostsJobEvent(t *testing.T) {
	received := make(chan service.JobEvent, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var ev service.JobEvent
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&ev)) {
			received <- ev
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := service.NewNotifier(service.NotifierConfig{WebhookURL: srv.URL, Timeout: time.Second})
	require.NotNil(t, n)

	n.Notify(context.Background(), &domain.ExchangeJob{
		ID:             "job-1",
		CompanyID:      "c1",
		Type:           domain.ExchangeTypePrice,
		Status:         domain.JobStatusFailed,
		SucceededItems: 9,
		FailedItems:    1,
		LastError:      "boom",
	})

	select {
	case ev := <-received:
		assert.Equal(t, "job-1", ev.JobID)
		assert.Equal(t, "c1", ev.CompanyID)
		assert.Equal(t, domain.ExchangeTypePrice, ev.Type)
		assert.Equal(t, domain.JobStatusFailed, ev.Status)
		assert.Equal(t, 9, ev.SucceededItems)
		assert.Equal(t, 1, ev.FailedItems)
		assert.Equal(t, "boom", ev.LastError)
	default:
		t.Fatal("webhook was not called")
	}
}

func TestNotifierSwallowsWebhookErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := service.NewNotifier(service.NotifierConfig{WebhookURL: srv.URL, Timeout: time.Second})
	assert.NotPanics(t, func() {
		n.Notify(context.Background(), &domain.ExchangeJob{ID: "job-2", Status: domain.JobStatusSucceeded})
	})
	assert.Equal(t, int32(1), calls.Load())
}
