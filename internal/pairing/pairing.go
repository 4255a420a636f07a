// Package pairing registers this client with a Hue bridge.
//
// The bridge only issues a token within a short time after its link button
// was pressed. That precondition is on the operator; Register reports
// ErrButtonNotPressed when it was not met and RegisterUntil keeps asking.
package pairing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huegate/internal/credentials"
	"github.com/dokzlo13/huegate/internal/eventbus"
	"github.com/dokzlo13/huegate/internal/hue"
)

var (
	ErrButtonNotPressed = errors.New("link button not pressed")
	ErrNoHardwareID     = errors.New("no stable client identifier available")
)

// DefaultRetryInterval is the delay between attempts in RegisterUntil
const DefaultRetryInterval = 2 * time.Second

// The bridge limits devicetype to "<application>#<device>" with these lengths
const (
	maxAppNameLen = 20
	maxDeviceLen  = 19
)

// registerRequest is the body sent to create a user
type registerRequest struct {
	DeviceType string `json:"devicetype"`
}

// registerResponse is one element of the v1 create-user response
type registerResponse struct {
	Success *struct {
		Username string `json:"username"`
	} `json:"success,omitempty"`
}

// Agent performs the registration handshake
type Agent struct {
	doer     hue.Doer
	identity IdentityProvider
	appName  string
	events   eventbus.Publisher
}

// Option configures an Agent
type Option func(*Agent)

// WithDoer sets the HTTP transport
func WithDoer(doer hue.Doer) Option {
	return func(a *Agent) {
		a.doer = doer
	}
}

// WithEvents publishes pairing outcomes
func WithEvents(events eventbus.Publisher) Option {
	return func(a *Agent) {
		a.events = events
	}
}

// NewAgent creates an agent that registers as appName using identity for the device part
func NewAgent(appName string, identity IdentityProvider, opts ...Option) *Agent {
	if appName == "" {
		appName = "huegate"
	}
	a := &Agent{
		identity: identity,
		appName:  appName,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.doer == nil {
		a.doer = hue.NewHTTPClient(hue.DefaultTimeout)
	}
	return a
}

// DeviceType builds the devicetype string sent to the bridge
func (a *Agent) DeviceType() (string, error) {
	if a.identity == nil {
		return "", ErrNoHardwareID
	}
	id, ok := a.identity.Identity()
	if !ok || id == "" {
		return "", ErrNoHardwareID
	}
	return truncate(a.appName, maxAppNameLen) + "#" + truncate(id, maxDeviceLen), nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Register asks the bridge at bridgeIP for a client token.
// Each successful call may create a new user entry on the bridge.
func (a *Agent) Register(ctx context.Context, bridgeIP string) (credentials.Credential, error) {
	cred, err := a.register(ctx, bridgeIP)
	a.publish(bridgeIP, err)
	return cred, err
}

func (a *Agent) register(ctx context.Context, bridgeIP string) (credentials.Credential, error) {
	deviceType, err := a.DeviceType()
	if err != nil {
		return credentials.Credential{}, err
	}

	body, err := json.Marshal(registerRequest{DeviceType: deviceType})
	if err != nil {
		return credentials.Credential{}, err
	}

	url := fmt.Sprintf("http://%s/api", hue.HostForURL(bridgeIP))
	data, err := hue.Call(ctx, a.doer, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		var apiErr *hue.APIError
		if errors.As(err, &apiErr) && apiErr.Type == hue.ErrorTypeLinkButtonNotPressed {
			return credentials.Credential{}, ErrButtonNotPressed
		}
		return credentials.Credential{}, fmt.Errorf("registration failed: %w", err)
	}

	var responses []registerResponse
	if err := json.Unmarshal(data, &responses); err != nil {
		return credentials.Credential{}, fmt.Errorf("%w: malformed registration response: %v", hue.ErrRemoteRejected, err)
	}
	for _, r := range responses {
		if r.Success != nil && r.Success.Username != "" {
			log.Info().
				Str("bridge", bridgeIP).
				Str("devicetype", deviceType).
				Msg("Registered with bridge")
			return credentials.Credential{IPAddress: bridgeIP, ClientToken: r.Success.Username}, nil
		}
	}

	return credentials.Credential{}, fmt.Errorf("%w: registration response has no username", hue.ErrRemoteRejected)
}

// RegisterUntil calls Register every interval while the link button has not
// been pressed. It stops on success, on any other error, or when ctx ends.
func (a *Agent) RegisterUntil(ctx context.Context, bridgeIP string, interval time.Duration) (credentials.Credential, error) {
	if interval <= 0 {
		interval = DefaultRetryInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		cred, err := a.Register(ctx, bridgeIP)
		if !errors.Is(err, ErrButtonNotPressed) {
			return cred, err
		}

		log.Info().
			Int("attempt", attempt).
			Dur("retry_in", interval).
			Msg("Waiting for the bridge link button to be pressed")

		select {
		case <-ctx.Done():
			return credentials.Credential{}, fmt.Errorf("%w: %w", ErrButtonNotPressed, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (a *Agent) publish(bridgeIP string, err error) {
	// Unanswered attempts while waiting for the button are not outcomes
	if a.events == nil || errors.Is(err, ErrButtonNotPressed) {
		return
	}

	data := map[string]any{"bridge": bridgeIP}
	if err != nil {
		data["error"] = err.Error()
	}

	a.events.Publish(eventbus.Event{
		Type:   eventbus.EventTypePairing,
		Source: a.appName,
		Data:   data,
	})
}
