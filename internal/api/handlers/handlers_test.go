package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eventops/server/internal/api/middleware"
	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/domain/events"
)

var (
	testOwner    = auth.Actor{ULID: "01HYX3KQW7ERTV9XNBM2P8QJV1", Role: auth.RoleOrganizer}
	testStranger = auth.Actor{ULID: "01HYX3KQW7ERTV9XNBM2P8QJV2", Role: auth.RoleOrganizer}
)

const testEventULID = "01HYX3KQW7ERTV9XNBM2P8QJE1"

type fakeEventDirectory struct {
	refs map[string]events.Ref
}

func (f *fakeEventDirectory) Ref(_ context.Context, ulid string) (events.Ref, error) {
	if ref, ok := f.refs[ulid]; ok {
		return ref, nil
	}
	return events.Ref{}, events.ErrNotFound
}

func singleEventDirectory(status events.Status) *fakeEventDirectory {
	return &fakeEventDirectory{refs: map[string]events.Ref{
		testEventULID: {ULID: testEventULID, OrganizerULID: testOwner.ULID, Status: status},
	}}
}

// newRequest builds an authenticated request with the {id} path value set,
// mirroring what the router and auth middleware inject.
func newRequest(t *testing.T, actor auth.Actor, method, target, id string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if id != "" {
		req.SetPathValue("id", id)
	}
	return req.WithContext(middleware.WithActor(req.Context(), actor))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

func ptrTime(t time.Time) *time.Time { return &t }
