package hue

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dokzlo13/huegate/internal/credentials"
)

const testToken = "test-client-token"

// fakeGroup is a group held by fakeBridge
type fakeGroup struct {
	id    string
	name  string
	allOn bool
}

// command is a group action received by fakeBridge
type command struct {
	GroupID string
	On      bool
}

// fakeBridge serves the v1 group endpoints from an ordered group list
type fakeBridge struct {
	t  *testing.T
	mu sync.Mutex

	groups   []*fakeGroup
	commands []command
	server   *httptest.Server
}

func newFakeBridge(t *testing.T, groups ...*fakeGroup) *fakeBridge {
	t.Helper()

	b := &fakeBridge{t: t, groups: groups}
	b.server = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBridge) credential() credentials.Credential {
	return credentials.Credential{
		IPAddress:   b.server.Listener.Addr().String(),
		ClientToken: testToken,
	}
}

func (b *fakeBridge) session() *Session {
	return Open(b.credential(), WithDoer(b.server.Client()))
}

func (b *fakeBridge) sentCommands() []command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]command(nil), b.commands...)
}

func (b *fakeBridge) group(id string) *fakeGroup {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, g := range b.groups {
		if g.id == id {
			return g
		}
	}
	return nil
}

func (b *fakeBridge) handle(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/" + testToken + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		w.Write([]byte(`[{"error":{"type":1,"address":"/","description":"unauthorized user"}}]`))
		return
	}
	path := strings.TrimPrefix(r.URL.Path, prefix)

	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && path == "groups":
		w.Header().Set("Content-Type", "application/json")
		w.Write(b.groupsJSON())

	case r.Method == http.MethodPut && strings.HasPrefix(path, "groups/") && strings.HasSuffix(path, "/action"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "groups/"), "/action")
		body, _ := io.ReadAll(r.Body)

		var cmd Command
		if err := json.Unmarshal(body, &cmd); err != nil {
			b.t.Errorf("bad command body %q: %v", body, err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		for _, g := range b.groups {
			if g.id == id {
				g.allOn = cmd.On
				b.commands = append(b.commands, command{GroupID: id, On: cmd.On})
				w.Write([]byte(`[{"success":{"/groups/` + id + `/action/on":` + boolJSON(cmd.On) + `}}]`))
				return
			}
		}
		w.Write([]byte(`[{"error":{"type":3,"address":"/groups/` + id + `","description":"resource, /groups/` + id + `, not available"}}]`))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// groupsJSON renders the id->group object keeping slice order
func (b *fakeBridge) groupsJSON() []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, g := range b.groups {
		if i > 0 {
			buf.WriteByte(',')
		}
		id, _ := json.Marshal(g.id)
		body, _ := json.Marshal(map[string]any{
			"name":   g.name,
			"type":   "Room",
			"lights": []string{"1", "2"},
			"state":  map[string]bool{"all_on": g.allOn, "any_on": g.allOn},
			"action": map[string]any{"on": g.allOn, "bri": 254},
		})
		buf.Write(id)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func boolJSON(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
