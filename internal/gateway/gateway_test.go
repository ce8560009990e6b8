package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"deckhand/internal/entities/container"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	return client
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "::not a url"})
	assert.Error(t, err)
	_, err = NewClient(Config{BaseURL: ""})
	assert.Error(t, err)
}

func TestPullEntities(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/containers", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"id":"c1","name":"web-1","status":"running"},
			{"id":"c2","name":"db-1","status":"exited"}
		]`))
	}))

	entities, ok := client.PullEntities(context.Background())
	require.True(t, ok)
	require.Len(t, entities, 2)
	assert.Equal(t, "c1", entities[0].Id)
	assert.Equal(t, container.StatusRunning, entities[0].Status)
	assert.Equal(t, container.StatusStopped, entities[1].Status)
}

func TestPullEntitiesFailureReturnsKnownGood(t *testing.T) {
	fail := false
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"c1","name":"web-1","status":"running"}]`))
	}))

	entities, ok := client.PullEntities(context.Background())
	require.True(t, ok)
	require.Len(t, entities, 1)

	fail = true
	entities, ok = client.PullEntities(context.Background())
	assert.False(t, ok)
	// previous known-good value, not nil
	require.Len(t, entities, 1)
	assert.Equal(t, "c1", entities[0].Id)
}

func TestPullOverlayMalformedRetainsPrior(t *testing.T) {
	malformed := false
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if malformed {
			_, _ = w.Write([]byte(`{"containers": [1,2,3]}`))
			return
		}
		_, _ = w.Write([]byte(`{"containers":{"c1":"frontend"},"groups":{},"container_groups":{}}`))
	}))

	overlay, ok := client.PullOverlay(context.Background())
	require.True(t, ok)
	assert.Equal(t, "frontend", overlay.Containers["c1"])

	malformed = true
	overlay, ok = client.PullOverlay(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "frontend", overlay.Containers["c1"])
}

func TestMutateRoutes(t *testing.T) {
	type call struct {
		method, path, body string
	}
	var last call
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = json.Marshal(decodeBody(r))
		}
		last = call{r.Method, r.URL.Path, string(body)}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	ctx := context.Background()

	require.True(t, client.Mutate(ctx, Mutation{Kind: SetContainerName, Id: "c1", Name: "frontend"}))
	assert.Equal(t, call{"POST", "/custom-names/container/c1", `{"name":"frontend"}`}, last)

	require.True(t, client.Mutate(ctx, Mutation{Kind: ClearContainerName, Id: "c1"}))
	assert.Equal(t, "DELETE", last.method)
	assert.Equal(t, "/custom-names/container/c1", last.path)

	require.True(t, client.Mutate(ctx, Mutation{Kind: SetGroupName, Id: "web", Name: "Web Tier"}))
	assert.Equal(t, call{"POST", "/custom-names/group/web", `{"name":"Web Tier"}`}, last)

	require.True(t, client.Mutate(ctx, Mutation{Kind: ClearGroupName, Id: "web"}))
	assert.Equal(t, "DELETE", last.method)

	require.True(t, client.Mutate(ctx, Mutation{Kind: SetContainerGroup, Id: "c1", Name: "custom"}))
	assert.Equal(t, call{"POST", "/container-group", `{"containerId":"c1","groupName":"custom"}`}, last)

	require.True(t, client.Mutate(ctx, Mutation{Kind: ClearContainerGroup, Id: "c1"}))
	assert.Equal(t, call{"DELETE", "/container-group/c1", "null"}, last)
}

func decodeBody(r *http.Request) any {
	var v any
	_ = json.NewDecoder(r.Body).Decode(&v)
	return v
}

func TestMutateFailureIsBoolean(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	assert.False(t, client.Mutate(context.Background(), Mutation{Kind: SetContainerName, Id: "c1", Name: "x"}))
}

func TestCheckBackendVersion(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok","version":"0.1.0"}`))
	}))
	// old version only logs, it is not an error
	assert.NoError(t, client.CheckBackend(context.Background()))
}

func TestBackoffIsCapped(t *testing.T) {
	client, err := NewClient(Config{
		BaseURL:     "http://localhost:1",
		BackoffBase: time.Second,
		BackoffMax:  10 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, time.Second, client.backoff(1))
	assert.Equal(t, 2*time.Second, client.backoff(2))
	assert.Equal(t, 4*time.Second, client.backoff(3))
	assert.Equal(t, 8*time.Second, client.backoff(4))
	assert.Equal(t, 10*time.Second, client.backoff(5))
	assert.Equal(t, 10*time.Second, client.backoff(60))
}

func TestDecodePushFrame(t *testing.T) {
	payload, err := decodePushFrame([]byte(`{
		"event": "update_stats",
		"data": {
			"containers": {"c1": {"name":"web-1","status":"running","cpu_percent":3.5}},
			"system_info": {"MemTotal": 1000, "NCPU": 4},
			"custom_names": {"containers":{"c1":"frontend"}}
		}
	}`))
	require.NoError(t, err)
	require.NotNil(t, payload)
	assert.Equal(t, 3.5, payload.Containers["c1"].CpuPercent)
	assert.Equal(t, uint64(1000), payload.SystemInfo.MemTotal)
	assert.Equal(t, "frontend", payload.CustomNames.Containers["c1"])
	// Clone normalizes absent maps
	assert.NotNil(t, payload.CustomNames.Groups)
}

func TestDecodePushFrameUnknownEvent(t *testing.T) {
	payload, err := decodePushFrame([]byte(`{"event":"monitoring_status","data":{}}`))
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestDecodePushFrameMalformed(t *testing.T) {
	_, err := decodePushFrame([]byte(`{"event":"update_stats","data":{"containers":"x"}}`))
	assert.Error(t, err)

	_, err = decodePushFrame([]byte(`not json`))
	assert.Error(t, err)

	_, err = decodePushFrame([]byte(`{"event":"update_stats","data":{}}`))
	assert.Error(t, err)
}

func TestEmitStateDeduplicates(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://localhost:1"})
	require.NoError(t, err)
	ctx := context.Background()

	client.emitState(ctx, StateReconnecting)
	client.emitState(ctx, StateReconnecting)
	client.emitState(ctx, StateConnected)

	ev := <-client.Events()
	assert.Equal(t, EventConnState, ev.Kind)
	assert.Equal(t, StateReconnecting, ev.State)
	ev = <-client.Events()
	assert.Equal(t, StateConnected, ev.State)
	select {
	case ev = <-client.Events():
		t.Fatalf("unexpected extra event: %+v", ev)
	default:
	}
}
