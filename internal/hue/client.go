package hue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huegate/internal/credentials"
)

// DefaultTimeout bounds every bridge call made through the default transport
const DefaultTimeout = 10 * time.Second

// maxResponseSize caps how much of a bridge response is read
const maxResponseSize = 4 << 20

// Doer sends an HTTP request and returns the response.
// *http.Client satisfies it; tests substitute fakes.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns the default bridge transport
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Session is a handle on one bridge and client token.
// It is immutable after Open and safe for concurrent use.
type Session struct {
	address string
	token   string
	doer    Doer
}

// Option configures a Session
type Option func(*Session)

// WithDoer sets the transport used for bridge calls
func WithDoer(doer Doer) Option {
	return func(s *Session) {
		s.doer = doer
	}
}

// WithTimeout uses a default HTTP client with the given timeout
func WithTimeout(timeout time.Duration) Option {
	return func(s *Session) {
		s.doer = NewHTTPClient(timeout)
	}
}

// Open wraps cred into a session. No network call is made.
func Open(cred credentials.Credential, opts ...Option) *Session {
	s := &Session{
		address: cred.IPAddress,
		token:   cred.ClientToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.doer == nil {
		s.doer = NewHTTPClient(DefaultTimeout)
	}
	return s
}

// Address returns the bridge address
func (s *Session) Address() string {
	return s.address
}

func (s *Session) v1URL(path string) string {
	return fmt.Sprintf("http://%s/api/%s/%s", HostForURL(s.address), s.token, path)
}

// HostForURL brackets bare IPv6 addresses so they can be used as a URL host.
// Addresses that already carry a port are returned unchanged.
func HostForURL(address string) string {
	if ip := net.ParseIP(address); ip != nil && ip.To4() == nil {
		return "[" + address + "]"
	}
	return address
}

// v1Call performs a request and returns the body of a 2xx response.
func (s *Session) v1Call(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	return Call(ctx, s.doer, method, s.v1URL(path), body)
}

// Call performs a JSON request against the bridge and returns the body of a
// 2xx response. Transport failures wrap ErrUnreachable; non-2xx statuses and
// Hue error arrays are returned as *APIError.
func Call(ctx context.Context, doer Doer, method, url string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode:  resp.StatusCode,
			Description: strings.TrimSpace(string(data)),
		}
	}

	if apiErr := firstError(resp.StatusCode, data); apiErr != nil {
		return nil, apiErr
	}

	return data, nil
}

// firstError returns the first Hue error object when data is a v1 result array
func firstError(status int, data []byte) *APIError {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil
	}

	var entries []resultEntry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil
	}
	for _, e := range entries {
		if e.Error != nil {
			return e.Error.toAPIError(status)
		}
	}
	return nil
}

// DecodeResults parses a v1 result array
func DecodeResults(data []byte) ([]map[string]any, error) {
	var entries []resultEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrRemoteRejected, err)
	}

	results := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		if e.Success != nil {
			results = append(results, e.Success)
		}
	}
	return results, nil
}

// ListGroups returns all groups in the order the bridge lists them (v1 API)
func (s *Session) ListGroups(ctx context.Context) ([]Group, error) {
	data, err := s.v1Call(ctx, http.MethodGet, "groups", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	groups, err := decodeGroups(data)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed groups response: %v", ErrRemoteRejected, err)
	}

	log.Debug().
		Str("bridge", s.address).
		Int("groups", len(groups)).
		Msg("Groups listed")

	return groups, nil
}

// decodeGroups decodes the v1 id->group object keeping the bridge's key order
func decodeGroups(data []byte) ([]Group, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	groups := []Group{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		id, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}

		var group Group
		if err := dec.Decode(&group); err != nil {
			return nil, fmt.Errorf("group %s: %w", id, err)
		}
		group.ID = id
		groups = append(groups, group)
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return groups, nil
}

// SetGroupPower sends an on/off action to a group (v1 API)
func (s *Session) SetGroupPower(ctx context.Context, groupID string, on bool) error {
	body, err := json.Marshal(Command{On: on})
	if err != nil {
		return err
	}

	data, err := s.v1Call(ctx, http.MethodPut, fmt.Sprintf("groups/%s/action", groupID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to set group %s power: %w", groupID, err)
	}

	if _, err := DecodeResults(data); err != nil {
		return fmt.Errorf("failed to set group %s power: %w", groupID, err)
	}

	log.Debug().
		Str("group", groupID).
		Bool("on", on).
		Msg("Group action sent")

	return nil
}
