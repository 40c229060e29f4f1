package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestClientTeardownDoesNotBlockAfterHubStops(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	registered := make(chan struct{})
	readDone := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := &wsClient{hub: hub, conn: conn, send: make(chan Event, 1)}
		hub.register <- client
		close(registered)
		go client.writePump()
		client.readPump()
		close(readDone)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Stop the hub before the browser goes away. Nobody drains
	// unregister anymore, yet the reader must still unwind.
	<-registered
	cancel()
	conn.Close()

	select {
	case <-readDone:
	case <-time.After(2 * time.Second):
		t.Fatal("reader still blocked after hub shutdown")
	}
}
