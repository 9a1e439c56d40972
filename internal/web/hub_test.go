package web

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"Wulin-Chronicle/server/internal/rng"
	"Wulin-Chronicle/server/internal/state"
	"Wulin-Chronicle/server/internal/store"
)

func TestHubBroadcastsCommittedStates(t *testing.T) {
	hub := NewStateHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{ID: "viewer", Send: make(chan []byte, 4)}
	hub.register <- client
	waitForClients(t, hub, 1)

	st := store.New(zerolog.Nop(), state.New(state.NewPlayer("狄云"), state.GenerateWorld(rng.New("hub"))))
	detach := hub.Attach(st)
	defer detach()
	if err := st.Dispatch(ctx, store.AddExp{Exp: 5}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	select {
	case raw := <-client.Send:
		var msg struct {
			Type string         `json:"type"`
			Data state.Snapshot `json:"data"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != "state" || msg.Data.Player.XP != 5 {
			t.Fatalf("msg = %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast received")
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := NewStateHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{ID: "gone", Send: make(chan []byte, 1)}
	hub.register <- client
	waitForClients(t, hub, 1)
	hub.unregister <- client

	select {
	case _, ok := <-client.Send:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel never closed")
	}
}

func waitForClients(t *testing.T, hub *StateHub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
