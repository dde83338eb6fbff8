package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/alldoizcode/connector/internal/oer"
	"github.com/alldoizcode/connector/internal/subscription"
)

func testGateway(t *testing.T) *Gateway {
	t.Helper()
	return NewGateway(logrus.NewEntry(logrus.New()), subscription.NewManager(10))
}

func TestHandleSendFulfillsValidDestination(t *testing.T) {
	g := testGateway(t)
	body := `{"destination":"g.connector.self","amount":100,"data":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(body))
	w := httptest.NewRecorder()
	g.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp sendResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.True(t, resp.Fulfilled)
	require.Len(t, resp.Fulfillment, 64) // 32 bytes hex-encoded
}

func TestHandleSendRejectsInvalidDestination(t *testing.T) {
	g := testGateway(t)
	body := `{"destination":"not-valid","amount":1}`
	req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(body))
	w := httptest.NewRecorder()
	g.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp sendResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.False(t, resp.Fulfilled)
	require.NotEmpty(t, resp.RejectCode)
}

func TestHandleSendRejectsMalformedBody(t *testing.T) {
	g := testGateway(t)
	req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	g.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPushEventNoSubscribersIsNoop(t *testing.T) {
	g := testGateway(t)
	g.PushEvent(subscription.Event{ID: "1"}, map[string]string{"hello": "world"})
}

func TestHandleLocalPrepareFulfillsUnexpiredPrepare(t *testing.T) {
	g := testGateway(t)
	p := &oer.Prepare{
		Amount:      10,
		ExpiresAt:   time.Now().Add(time.Minute),
		Destination: "g.connector.self",
		Data:        []byte("hi"),
	}
	fulfill, reject := g.HandleLocalPrepare(context.Background(), p)
	require.Nil(t, reject)
	require.NotNil(t, fulfill)
	require.Equal(t, []byte("hi"), fulfill.Data)
}

func TestHandleLocalPrepareMatchesPTagsSubscription(t *testing.T) {
	g := testGateway(t)
	require.NoError(t, g.subs.Register("peerA", "sub-1", subscription.Filter{PTags: []string{"g.connector.self"}}, time.Now().Unix()))

	p := &oer.Prepare{
		Amount:      10,
		ExpiresAt:   time.Now().Add(time.Minute),
		Destination: "g.connector.self",
		Data:        []byte("hi"),
	}
	fulfill, reject := g.HandleLocalPrepare(context.Background(), p)
	require.Nil(t, reject)
	require.NotNil(t, fulfill)
	require.Len(t, g.subs.Match(subscription.Event{Tags: map[string][]string{"p": {"g.connector.self"}}}), 1)
}

func TestHandleLocalPrepareRejectsExpiredPrepare(t *testing.T) {
	g := testGateway(t)
	p := &oer.Prepare{
		Amount:      10,
		ExpiresAt:   time.Now().Add(-time.Minute),
		Destination: "g.connector.self",
	}
	fulfill, reject := g.HandleLocalPrepare(context.Background(), p)
	require.Nil(t, fulfill)
	require.NotNil(t, reject)
	require.Equal(t, "R00", reject.Code)
}
