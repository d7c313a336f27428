package adminapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	stats     Stats
	statsErr  error
	deleteErr error
	deleted   bool
}

func (f *fakeQueue) Stats(context.Context) (Stats, error) { return f.stats, f.statsErr }
func (f *fakeQueue) DeleteQueue(context.Context) error {
	f.deleted = true
	return f.deleteErr
}

func TestHealthzRequiresAtLeastOneQueue(t *testing.T) {
	reg := NewRegistry(nil)
	srv := httptest.NewServer(Router(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	reg.Register("orders", &fakeQueue{})
	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestQueueStatsEndpoint(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register("orders", &fakeQueue{stats: Stats{Ready: 3, Dead: 1}})
	srv := httptest.NewServer(Router(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/queues/orders/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/queues/missing/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteQueueEndpoint(t *testing.T) {
	reg := NewRegistry(nil)
	fq := &fakeQueue{}
	reg.Register("orders", fq)
	srv := httptest.NewServer(Router(reg))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/queues/orders", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.True(t, fq.deleted)
}
