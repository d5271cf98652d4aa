package realtime

import (
	"encoding/json"
	"testing"
)

func TestChannel_DispatchByEvent(t *testing.T) {
	ch := newChannel("c", nil)

	var got []string
	ch.Bind("a", func(data json.RawMessage) { got = append(got, "a:"+string(data)) })
	ch.Bind("b", func(data json.RawMessage) { got = append(got, "b:"+string(data)) })

	ch.dispatch("a", json.RawMessage(`1`))
	ch.dispatch("b", json.RawMessage(`2`))
	ch.dispatch("missing", json.RawMessage(`3`))

	if len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Fatalf("dispatch results = %v", got)
	}
}

func TestChannel_UnbindExactToken(t *testing.T) {
	ch := newChannel("c", nil)

	calls1, calls2 := 0, 0
	b1 := ch.Bind("ev", func(json.RawMessage) { calls1++ })
	ch.Bind("ev", func(json.RawMessage) { calls2++ })

	ch.dispatch("ev", nil)
	ch.Unbind(b1)
	ch.dispatch("ev", nil)

	if calls1 != 1 {
		t.Fatalf("unbound handler fired %d times, want 1", calls1)
	}
	if calls2 != 2 {
		t.Fatalf("remaining handler fired %d times, want 2", calls2)
	}
}

func TestChannel_UnbindNilIsNoOp(t *testing.T) {
	ch := newChannel("c", nil)
	ch.Unbind(nil) // must not panic

	fired := false
	ch.Bind("ev", func(json.RawMessage) { fired = true })
	ch.dispatch("ev", nil)
	if !fired {
		t.Fatal("handler did not fire")
	}
}

func TestChannel_UnbindTwiceIsNoOp(t *testing.T) {
	ch := newChannel("c", nil)

	b := ch.Bind("ev", func(json.RawMessage) {})
	ch.Unbind(b)
	ch.Unbind(b)

	ch.dispatch("ev", nil)
}

func TestConn_ReleaseEvictsUnboundChannel(t *testing.T) {
	conn := &Conn{chans: make(map[string]*channel)}

	ch := conn.Channel("conversation:c1").(*channel)
	b := ch.Bind("ev", func(json.RawMessage) {})

	// Still bound: the handle stays cached and Channel returns the same one.
	conn.release(ch)
	if conn.Channel("conversation:c1") != Channel(ch) {
		t.Fatal("bound channel was evicted")
	}

	ch.Unbind(b)
	conn.release(ch)
	if len(conn.chans) != 0 {
		t.Fatalf("unbound channel kept alive, map size %d", len(conn.chans))
	}

	// A fresh open after eviction gets a fresh object.
	if conn.Channel("conversation:c1") == Channel(ch) {
		t.Fatal("evicted channel handle was reused")
	}
}
