package discord

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dana/mimic/internal/db"
)

type fakeConn struct{ closed bool }

func (f *fakeConn) Close() { f.closed = true }

func testManager(t *testing.T) (*Manager, *db.DB, map[string]*fakeConn) {
	t.Helper()
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	conns := make(map[string]*fakeConn)
	m := NewManager(store, func(token string) (Connection, error) {
		if token == "bad" {
			return nil, errors.New("invalid token")
		}
		c := &fakeConn{}
		conns[token] = c
		return c, nil
	})
	return m, store, conns
}

func TestManagerStartStop(t *testing.T) {
	m, store, conns := testManager(t)
	store.SaveBotToken("u1", "discord", "tok-1")

	if err := m.Start("u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if conns["tok-1"] == nil {
		t.Fatal("connector not invoked")
	}
	if got := m.Running(); !reflect.DeepEqual(got, []string{"u1"}) {
		t.Errorf("Running = %v", got)
	}

	// Token usage is stamped.
	tokens, _ := store.BotTokens("u1")
	if tokens[0].LastUsed == "" {
		t.Error("last_used not stamped")
	}

	// Starting again is a no-op.
	if err := m.Start("u1"); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if !m.Stop("u1") {
		t.Error("Stop reported nothing running")
	}
	if !conns["tok-1"].closed {
		t.Error("connection not closed")
	}
	if m.Stop("u1") {
		t.Error("second Stop should report false")
	}
}

func TestManagerStartWithoutToken(t *testing.T) {
	m, _, _ := testManager(t)
	if err := m.Start("u1"); err == nil {
		t.Error("expected error without a stored token")
	}
}

func TestManagerStartIgnoresOtherPlatforms(t *testing.T) {
	m, store, _ := testManager(t)
	store.SaveBotToken("u1", "telegram", "tok-t")
	if err := m.Start("u1"); err == nil {
		t.Error("expected error: no discord token")
	}
}

func TestManagerConnectFailure(t *testing.T) {
	m, store, _ := testManager(t)
	store.SaveBotToken("u1", "discord", "bad")

	if err := m.Start("u1"); err == nil {
		t.Error("expected connect error")
	}
	if got := m.Running(); len(got) != 0 {
		t.Errorf("failed start must not register: %v", got)
	}
}

func TestManagerStopAll(t *testing.T) {
	m, store, conns := testManager(t)
	store.SaveBotToken("u1", "discord", "tok-1")
	store.SaveBotToken("u2", "discord", "tok-2")
	m.Start("u1")
	m.Start("u2")

	m.StopAll()
	if len(m.Running()) != 0 {
		t.Errorf("connections survived StopAll: %v", m.Running())
	}
	for tok, c := range conns {
		if !c.closed {
			t.Errorf("connection %s not closed", tok)
		}
	}
}
