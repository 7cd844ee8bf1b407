package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fragmentone/internal/fragment/model"
	"fragmentone/pkg/errs"
	"fragmentone/socket"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var midnight = time.Date(2026, 10, 19, 0, 0, 0, 0, time.FixedZone("WIB", 7*3600))

func TestClientSpeaksTheFragmentAPI(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/fragments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var req model.CreateFragmentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(model.Fragment{ID: "f1", AuthorID: "A", Text: req.Text, CreatedAt: midnight.Add(time.Hour)})
	})
	mux.HandleFunc("GET /api/fragments", func(w http.ResponseWriter, r *http.Request) {
		since, err := time.Parse(time.RFC3339Nano, r.URL.Query().Get("since"))
		require.NoError(t, err)
		assert.True(t, since.Equal(midnight), "offset must survive the trip")
		json.NewEncoder(w).Encode([]model.Fragment{{ID: "f2", AuthorID: "B", Text: "light"}})
	})
	mux.HandleFunc("GET /api/fragments/mine", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]model.Fragment{})
	})
	mux.HandleFunc("DELETE /api/fragments", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("before"))
		json.NewEncoder(w).Encode(model.DeleteResponse{Deleted: 7})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL+"/", "tok")
	ctx := context.Background()

	f, err := c.Append(ctx, "A", "hope")
	require.NoError(t, err)
	assert.Equal(t, "hope", f.Text)

	all, err := c.FindSince(ctx, midnight)
	require.NoError(t, err)
	assert.Equal(t, "light", all[0].Text)

	mine, err := c.FindByAuthorSince(ctx, "A", midnight)
	require.NoError(t, err)
	assert.Empty(t, mine)

	n, err := c.DeleteBefore(ctx, midnight)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestClientMapsFailuresToTaxonomy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()
	c := New(srv.URL, "tok")
	ctx := context.Background()

	_, err := c.Append(ctx, "A", "hope")
	assert.True(t, errs.IsWrite(err))
	_, err = c.DeleteBefore(ctx, midnight)
	assert.True(t, errs.IsWrite(err))
	_, err = c.FindSince(ctx, midnight)
	assert.True(t, errs.IsRead(err))
	_, err = c.FindByAuthorSince(ctx, "A", midnight)
	assert.True(t, errs.IsRead(err))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.Code)
	assert.Equal(t, gobreaker.StateClosed, c.breaker.State(), "4xx answers do not trip the breaker")
}

func TestBreakerOpensAfterServerFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := New(srv.URL, "tok")

	for i := 0; i < 5; i++ {
		_, err := c.FindSince(context.Background(), midnight)
		assert.True(t, errs.IsRead(err))
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, gobreaker.StateOpen, c.breaker.State())

	_, err := c.FindSince(context.Background(), midnight)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestListenDeliversFeedMessages(t *testing.T) {
	hub := socket.NewHub(nil)
	go hub.Run()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("token"))
		socket.ServeWs(hub, w, r, "A")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan socket.WSMessage, 4)
	done := make(chan error, 1)
	go func() {
		done <- New(srv.URL, "tok").Listen(ctx, func(m socket.WSMessage) { got <- m })
	}()

	first := <-got
	assert.Equal(t, socket.PresenceUpdateType, first.Type)

	hub.NotifyFragmentAdded(model.Fragment{ID: "f9", AuthorID: "B"})
	select {
	case m := <-got:
		assert.Equal(t, socket.FragmentAddedType, m.Type)
		assert.Equal(t, "B", m.UserID)
	case <-time.After(time.Second):
		t.Fatal("no feed message")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	hub.Stop()
	srv.Close()
}
