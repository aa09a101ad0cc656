package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/engine"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/remote"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T, ready Pinger) (*httptest.Server, *engine.Engine) {
	t.Helper()
	eng, err := engine.New(engine.DefaultSettings())
	require.NoError(t, err)
	srv := httptest.NewServer(NewRouter(eng, ready, nil).Setup())
	t.Cleanup(srv.Close)
	return srv, eng
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func seed(t *testing.T, base string) {
	t.Helper()
	resp := post(t, base+"/v1/entities", apptype.RegisterEntitiesArgs{Entities: []apptype.EntityInput{
		{ID: "A", Type: "user", Label: "Alice", Tags: []string{"x"}},
		{ID: "B", Type: "user", Label: "Bob"},
		{ID: "C", Type: "team", Label: "Core"},
		{ID: "D", Type: "project", Label: "Delta", Properties: map[string]any{"status": "active"}},
		{ID: "E", Type: "user", Label: "Eve", Tags: []string{"x"}},
	}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = post(t, base+"/v1/links", apptype.LinkEntitiesArgs{Relations: []apptype.Relation{
		{A: "A", B: "B"}, {A: "A", B: "C"}, {A: "B", B: "D"},
	}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestSuggestionsRoute(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	seed(t, srv.URL)

	resp := get(t, srv.URL+"/v1/entities/A/suggestions?maxResults=3&includeReason=true&includeTags=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[apptype.SuggestionsResult](t, resp)
	require.Len(t, out.Suggestions, 3)
	assert.Equal(t, []string{"B", "C", "D"}, []string{out.Suggestions[0].ID, out.Suggestions[1].ID, out.Suggestions[2].ID})
	assert.Equal(t, "Connected through Bob", out.Suggestions[2].Reason)

	resp = get(t, srv.URL+"/v1/entities/A/suggestions?types=user&exclude=B")
	out = decode[apptype.SuggestionsResult](t, resp)
	require.Len(t, out.Suggestions, 1)
	assert.Equal(t, "E", out.Suggestions[0].ID)

	resp = get(t, srv.URL+"/v1/entities/nobody/suggestions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out = decode[apptype.SuggestionsResult](t, resp)
	assert.NotNil(t, out.Suggestions)
	assert.Empty(t, out.Suggestions)
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	seed(t, srv.URL)

	tests := []struct {
		name   string
		resp   func() *http.Response
		status int
	}{
		{"max results over limit", func() *http.Response { return get(t, srv.URL+"/v1/entities/A/suggestions?maxResults=101") }, http.StatusBadRequest},
		{"non numeric max results", func() *http.Response { return get(t, srv.URL+"/v1/entities/A/suggestions?maxResults=ten") }, http.StatusBadRequest},
		{"unknown type filter", func() *http.Response { return get(t, srv.URL+"/v1/entities/A/suggestions?types=robot") }, http.StatusBadRequest},
		{"unknown entity", func() *http.Response { return get(t, srv.URL+"/v1/entities/ghost") }, http.StatusNotFound},
		{"link to unknown", func() *http.Response {
			return post(t, srv.URL+"/v1/links", apptype.LinkEntitiesArgs{Relations: []apptype.Relation{{A: "A", B: "ghost"}}})
		}, http.StatusNotFound},
		{"feedback without ids", func() *http.Response { return post(t, srv.URL+"/v1/feedback", apptype.SubmitFeedbackArgs{}) }, http.StatusBadRequest},
		{"unknown field", func() *http.Response { return post(t, srv.URL+"/v1/feedback", map[string]any{"bogus": 1}) }, http.StatusBadRequest},
		{"mismatched properties", func() *http.Response {
			return post(t, srv.URL+"/v1/entities", apptype.RegisterEntitiesArgs{Entities: []apptype.EntityInput{
				{ID: "z", Type: "team", Properties: map[string]any{"size": "big"}},
			}})
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.resp()
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decode[map[string]any](t, resp)
			assert.Equal(t, true, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestFeedbackAndInteractionRoutes(t *testing.T) {
	srv, eng := newTestServer(t, nil)
	seed(t, srv.URL)

	resp := post(t, srv.URL+"/v1/feedback", apptype.SubmitFeedbackArgs{EntityID: "A", SuggestionID: "D", IsHelpful: true})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, apptype.FeedbackCounts{Helpful: 1}, decode[apptype.FeedbackCounts](t, resp))

	resp = post(t, srv.URL+"/v1/interactions", apptype.RecordInteractionArgs{SourceID: "A", TargetID: "E"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = get(t, srv.URL+"/v1/entities/D")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ent := decode[apptype.Entity](t, resp)
	assert.Equal(t, apptype.ProjectProperties{Status: "active"}, ent.Properties)

	resp = get(t, srv.URL+"/v1/stats")
	st := decode[engine.Stats](t, resp)
	assert.Equal(t, 5, st.Entities)
	assert.Equal(t, eng.Stats().Edges, st.Edges)
}

func TestHealthAndReadiness(t *testing.T) {
	srv, _ := newTestServer(t, stubPinger{})
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/healthz").StatusCode)
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/readyz").StatusCode)

	down, _ := newTestServer(t, stubPinger{err: errors.New("no db")})
	assert.Equal(t, http.StatusServiceUnavailable, get(t, down.URL+"/readyz").StatusCode)
}

// One engine ranks for another through the remote client.
func TestRankRouteServesRemoteClient(t *testing.T) {
	ranker, _ := newTestServer(t, nil)
	seed(t, ranker.URL)

	rc, err := remote.NewHTTPClient(remote.Config{URL: ranker.URL + "/v1/rank"}, nil)
	require.NoError(t, err)
	list, err := rc.Fetch(context.Background(), apptype.RemoteRequest{
		EntityID: "A", EntityType: apptype.EntityUser, Types: []apptype.EntityType{apptype.EntityUser}, Limit: 5,
	})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "B", list[0].ID)
	assert.Equal(t, "Bob", list[0].Label)
	assert.InDelta(t, 0.7, list[0].Confidence, 1e-9)
	assert.Equal(t, "E", list[1].ID)
	assert.Equal(t, []string{"x"}, list[1].Tags)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList([]string{"a, b", "", "c"}))
	assert.Nil(t, splitList(nil))
}
