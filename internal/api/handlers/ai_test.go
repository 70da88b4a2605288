package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/eventops/server/internal/domain/aiusage"
)

type fakeUsageRepo struct {
	mu   sync.Mutex
	rows map[string]*aiusage.DayUsage
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{rows: make(map[string]*aiusage.DayUsage)}
}

func usageKey(userULID string, day time.Time) string {
	return userULID + "|" + day.Format("2006-01-02")
}

func (f *fakeUsageRepo) UpsertDayUsage(_ context.Context, userULID string, day time.Time, tokens, requests int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := usageKey(userULID, day)
	if row, ok := f.rows[key]; ok {
		row.TokensUsed += tokens
		row.RequestCount += requests
		return nil
	}
	f.rows[key] = &aiusage.DayUsage{UserULID: userULID, Day: day, TokensUsed: tokens, RequestCount: requests}
	return nil
}

func (f *fakeUsageRepo) GetDayUsage(_ context.Context, userULID string, day time.Time) (*aiusage.DayUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[usageKey(userULID, day)]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeUsageRepo) ListDayUsage(_ context.Context, day time.Time, _ int) ([]aiusage.DayUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []aiusage.DayUsage
	for _, row := range f.rows {
		if row.Day.Equal(day) {
			result = append(result, *row)
		}
	}
	return result, nil
}

func (f *fakeUsageRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func newAIHandler(dailyLimit int64) *AIHandler {
	recorder := aiusage.NewRecorder(newFakeUsageRepo(), dailyLimit, time.Hour, zerolog.Nop())
	return NewAIHandler(recorder, dailyLimit, "test")
}

func TestAIDraft(t *testing.T) {
	handler := newAIHandler(10000)

	req := newRequest(t, testOwner, http.MethodPost, "/api/v1/ai/draft", "", map[string]any{
		"event_name": "PyData Meetup",
		"venue":      "The Warehouse",
		"city":       "Rotterdam",
		"audience":   "data engineers",
	})
	rec := httptest.NewRecorder()
	handler.Draft(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body draftResponse
	decodeBody(t, rec, &body)
	require.Contains(t, body.Draft, "PyData Meetup")
	require.Contains(t, body.Draft, "The Warehouse")
	require.Contains(t, body.Draft, "Rotterdam")
	require.Greater(t, body.TokensUsed, int64(0))
}

func TestAIDraftRequiresEventName(t *testing.T) {
	handler := newAIHandler(10000)

	req := newRequest(t, testOwner, http.MethodPost, "/api/v1/ai/draft", "", map[string]any{
		"event_name": "  ",
	})
	rec := httptest.NewRecorder()
	handler.Draft(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAIDraftQuotaExceeded(t *testing.T) {
	handler := newAIHandler(5)

	payload := map[string]any{"event_name": "GopherCon"}
	first := newRequest(t, testOwner, http.MethodPost, "/api/v1/ai/draft", "", payload)
	firstRec := httptest.NewRecorder()
	handler.Draft(firstRec, first)
	require.Equal(t, http.StatusTooManyRequests, firstRec.Code)

	var body struct {
		Type  string `json:"type"`
		Title string `json:"title"`
	}
	decodeBody(t, firstRec, &body)
	require.Equal(t, "Daily AI quota exceeded", body.Title)
}

func TestAIUsageReflectsSpend(t *testing.T) {
	handler := newAIHandler(10000)

	draftReq := newRequest(t, testOwner, http.MethodPost, "/api/v1/ai/draft", "", map[string]any{
		"event_name": "GopherCon",
	})
	draftRec := httptest.NewRecorder()
	handler.Draft(draftRec, draftReq)
	require.Equal(t, http.StatusOK, draftRec.Code)

	var draft draftResponse
	decodeBody(t, draftRec, &draft)

	usageReq := newRequest(t, testOwner, http.MethodGet, "/api/v1/ai/usage", "", nil)
	usageRec := httptest.NewRecorder()
	handler.GetUsage(usageRec, usageReq)
	require.Equal(t, http.StatusOK, usageRec.Code)

	var usage usageResponse
	decodeBody(t, usageRec, &usage)
	require.Equal(t, int64(10000), usage.DailyLimit)
	require.Equal(t, draft.TokensUsed, usage.UsedTokens)
	require.Equal(t, int64(10000)-draft.TokensUsed, usage.RemainingTokens)
}

func TestAIUnauthenticatedIsRejected(t *testing.T) {
	handler := newAIHandler(10000)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ai/usage", nil)
	rec := httptest.NewRecorder()
	handler.GetUsage(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
