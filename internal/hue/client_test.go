package hue

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/huegate/internal/credentials"
)

// failingDoer simulates a network-level failure
type failingDoer struct {
	calls int
}

func (d *failingDoer) Do(*http.Request) (*http.Response, error) {
	d.calls++
	return nil, errors.New("dial tcp 192.0.2.1:80: connect: no route to host")
}

func TestOpen_NoNetworkCall(t *testing.T) {
	doer := &failingDoer{}
	s := Open(credentials.Credential{IPAddress: "192.0.2.1", ClientToken: "token"}, WithDoer(doer))

	assert.Equal(t, "192.0.2.1", s.Address())
	assert.Equal(t, 0, doer.calls)
}

func TestHostForURL(t *testing.T) {
	assert.Equal(t, "192.168.1.2", HostForURL("192.168.1.2"))
	assert.Equal(t, "[fe80::1]", HostForURL("fe80::1"))
	assert.Equal(t, "127.0.0.1:8080", HostForURL("127.0.0.1:8080"))
	assert.Equal(t, "bridge.local", HostForURL("bridge.local"))
}

func TestListGroups_KeepsBridgeOrder(t *testing.T) {
	bridge := newFakeBridge(t,
		&fakeGroup{id: "7", name: "Study", allOn: true},
		&fakeGroup{id: "1", name: "Kitchen"},
		&fakeGroup{id: "12", name: "Bedroom", allOn: true},
	)

	groups, err := bridge.session().ListGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Equal(t, "7", groups[0].ID)
	assert.Equal(t, "Study", groups[0].Name)
	assert.True(t, groups[0].State.AllOn)
	assert.Equal(t, "1", groups[1].ID)
	assert.False(t, groups[1].State.AllOn)
	assert.Equal(t, "12", groups[2].ID)
	assert.Equal(t, []string{"1", "2"}, groups[2].Lights)
}

func TestListGroups_Empty(t *testing.T) {
	bridge := newFakeBridge(t)

	groups, err := bridge.session().ListGroups(context.Background())
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestListGroups_Unreachable(t *testing.T) {
	s := Open(credentials.Credential{IPAddress: "192.0.2.1", ClientToken: "token"}, WithDoer(&failingDoer{}))

	_, err := s.ListGroups(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.NotErrorIs(t, err, ErrRemoteRejected)
}

func TestListGroups_Unauthorized(t *testing.T) {
	bridge := newFakeBridge(t, &fakeGroup{id: "1", name: "Study"})
	cred := bridge.credential()
	cred.ClientToken = "wrong"

	_, err := Open(cred, WithDoer(bridge.server.Client())).ListGroups(context.Background())
	assert.ErrorIs(t, err, ErrRemoteRejected)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrorTypeUnauthorizedUser, apiErr.Type)
	assert.Equal(t, "unauthorized user", apiErr.Description)
}

func TestListGroups_BadResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "internal error"},
		{name: "not found", status: http.StatusNotFound, body: ""},
		{name: "malformed json", status: http.StatusOK, body: `{"1": {"name": `},
		{name: "not an object", status: http.StatusOK, body: `"groups"`},
		{name: "wrong group shape", status: http.StatusOK, body: `{"1": {"name": 5}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			s := Open(credentials.Credential{IPAddress: server.Listener.Addr().String(), ClientToken: "token"},
				WithDoer(server.Client()))

			_, err := s.ListGroups(context.Background())
			assert.ErrorIs(t, err, ErrRemoteRejected)
			assert.NotErrorIs(t, err, ErrUnreachable)
		})
	}
}

func TestSetGroupPower(t *testing.T) {
	bridge := newFakeBridge(t, &fakeGroup{id: "3", name: "Study"})

	require.NoError(t, bridge.session().SetGroupPower(context.Background(), "3", true))
	assert.Equal(t, []command{{GroupID: "3", On: true}}, bridge.sentCommands())
	assert.True(t, bridge.group("3").allOn)
}

func TestSetGroupPower_UnknownID(t *testing.T) {
	bridge := newFakeBridge(t, &fakeGroup{id: "3", name: "Study"})

	err := bridge.session().SetGroupPower(context.Background(), "99", false)
	assert.ErrorIs(t, err, ErrRemoteRejected)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrorTypeResourceNotAvailable, apiErr.Type)
}

func TestSetGroupPower_Unreachable(t *testing.T) {
	s := Open(credentials.Credential{IPAddress: "192.0.2.1", ClientToken: "token"}, WithDoer(&failingDoer{}))

	err := s.SetGroupPower(context.Background(), "1", true)
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestAPIError_Message(t *testing.T) {
	assert.Equal(t, "hue api status 503", (&APIError{StatusCode: 503}).Error())
	assert.Equal(t, "hue api status 500: boom", (&APIError{StatusCode: 500, Description: "boom"}).Error())
	assert.Contains(t, (&APIError{Type: 101, Address: "", Description: "link button not pressed"}).Error(), "101")
}
