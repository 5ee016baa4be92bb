package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/bannerscan/internal/pipeline"
	"github.com/MeKo-Tech/bannerscan/internal/record"
	"github.com/MeKo-Tech/bannerscan/internal/testutil"
)

func dialProgress(t *testing.T, baseURL string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/progress"
	return websocket.DefaultDialer.Dial(url, header)
}

func readMessage(t *testing.T, conn *websocket.Conn) WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestProgressHub_Broadcast(t *testing.T) {
	hub := newProgressHub()
	ch, ok := hub.subscribe()
	require.True(t, ok)

	hub.OnStart(2)
	hub.OnProgress(pipeline.Progress{Current: 1, Total: 2, ImageID: "a.png", Status: record.StatusOK})
	hub.OnError("b.png", errors.New("disk full"))
	hub.OnComplete()

	var types []string
	for range 4 {
		var msg WebSocketMessage
		require.NoError(t, json.Unmarshal(<-ch, &msg))
		types = append(types, msg.Type)
	}
	assert.Equal(t, []string{MessageStart, MessageProgress, MessageError, MessageComplete}, types)

	hub.unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
}

func TestProgressHub_SlowClientDropsMessages(t *testing.T) {
	hub := newProgressHub()
	ch, _ := hub.subscribe()

	for i := range clientBuffer + 10 {
		hub.OnProgress(pipeline.Progress{Current: i})
	}
	assert.Len(t, ch, clientBuffer)
}

func TestProgressHub_CloseAll(t *testing.T) {
	hub := newProgressHub()
	ch, _ := hub.subscribe()

	hub.closeAll()
	_, open := <-ch
	assert.False(t, open)

	_, ok := hub.subscribe()
	assert.False(t, ok)
	hub.OnComplete()
}

func TestServer_ProgressWebSocket(t *testing.T) {
	srv, root := newTestServer(t)
	testutil.WriteMixedBatch(t, root)
	ts := serve(t, srv)

	conn, _, err := dialProgress(t, ts.URL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		srv.hub.mu.Lock()
		defer srv.hub.mu.Unlock()
		return len(srv.hub.clients) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusAccepted, postBatch(t, ts.URL, `{"workers":1}`))

	start := readMessage(t, conn)
	assert.Equal(t, MessageStart, start.Type)

	var seen []string
	for {
		msg := readMessage(t, conn)
		if msg.Type == MessageComplete {
			break
		}
		require.Equal(t, MessageProgress, msg.Type)
		payload, ok := msg.Payload.(map[string]any)
		require.True(t, ok)
		seen = append(seen, payload["image_id"].(string))
	}
	assert.ElementsMatch(t, []string{"corrupt.jpg", "street_001.jpg"}, seen)
}

func TestServer_ProgressWebSocketOrigin(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.corsOrigin = "https://dashboard.example"
	ts := serve(t, srv)

	_, resp, err := dialProgress(t, ts.URL, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := dialProgress(t, ts.URL, http.Header{"Origin": {"https://dashboard.example"}})
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}
