package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webhook(t *testing.T, status int, got *[]DiscordMessage) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg DiscordMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		*got = append(*got, msg)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSendBatchSummaryRoutesByOutcome(t *testing.T) {
	var errs, oks []DiscordMessage
	errSrv := webhook(t, http.StatusNoContent, &errs)
	okSrv := webhook(t, http.StatusOK, &oks)
	d := NewDiscord(errSrv.URL, okSrv.URL)

	require.NoError(t, d.SendBatchSummary("3 regions processed", 0))
	require.NoError(t, d.SendBatchSummary("2 regions processed, 1 failed", 1))

	require.Len(t, oks, 1)
	assert.Contains(t, oks[0].Embeds[0].Description, "3 regions processed")
	assert.Equal(t, 65280, oks[0].Embeds[0].Color)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Embeds[0].Description, "1 failed regions")
}

func TestSendTruncatesLongDescriptions(t *testing.T) {
	var got []DiscordMessage
	srv := webhook(t, http.StatusOK, &got)
	d := NewDiscord("", srv.URL)

	require.NoError(t, d.SendSuccess(strings.Repeat("x", 5000)))
	require.Len(t, got, 1)
	assert.LessOrEqual(t, len(got[0].Embeds[0].Description), maxDescriptionLen+len("\n…"))
}

func TestSendTruncatesOnRuneBoundary(t *testing.T) {
	var got []DiscordMessage
	srv := webhook(t, http.StatusOK, &got)
	d := NewDiscord("", srv.URL)

	// "é" is two bytes, so byte maxDescriptionLen falls inside a rune
	require.NoError(t, d.SendSuccess("x"+strings.Repeat("é", maxDescriptionLen)))
	require.Len(t, got, 1)
	desc := got[0].Embeds[0].Description
	assert.True(t, utf8.ValidString(desc))
	assert.NotContains(t, desc, "\uFFFD")
	assert.True(t, strings.HasSuffix(desc, "é\n…"))
	assert.LessOrEqual(t, len(desc), maxDescriptionLen+len("\n…"))
}

func TestSendReportsBadStatus(t *testing.T) {
	var got []DiscordMessage
	srv := webhook(t, http.StatusBadRequest, &got)
	assert.Error(t, NewDiscord(srv.URL, "").SendError("boom"))
}

func TestEmptyURLDisablesNotification(t *testing.T) {
	assert.NoError(t, NewDiscord("", "").SendBatchSummary("nothing", 3))
}
