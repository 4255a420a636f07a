package pairing

import (
	"bytes"
	"encoding/hex"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// IdentityProvider supplies a stable identifier for this host.
// ok is false when no identifier can be derived.
type IdentityProvider interface {
	Identity() (id string, ok bool)
}

// IdentityFunc adapts a function to IdentityProvider
type IdentityFunc func() (string, bool)

// Identity implements IdentityProvider
func (f IdentityFunc) Identity() (string, bool) {
	return f()
}

// HardwareAddr derives the identity from the first non-loopback interface
// that has a MAC address, in the order the system lists interfaces.
type HardwareAddr struct {
	// interfaces lists the host's network interfaces; net.Interfaces when nil
	interfaces func() ([]net.Interface, error)
}

// Identity implements IdentityProvider
func (h HardwareAddr) Identity() (string, bool) {
	list := h.interfaces
	if list == nil {
		list = net.Interfaces
	}

	ifaces, err := list()
	if err != nil {
		log.Debug().Err(err).Msg("Failed to list network interfaces")
		return "", false
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 || bytes.Equal(iface.HardwareAddr, make([]byte, len(iface.HardwareAddr))) {
			continue
		}
		return hex.EncodeToString(iface.HardwareAddr), true
	}

	return "", false
}

// FileUUID returns a random UUID generated on first use and persisted at Path.
type FileUUID struct {
	Path string
}

// Identity implements IdentityProvider
func (f FileUUID) Identity() (string, bool) {
	if f.Path == "" {
		return "", false
	}

	data, err := os.ReadFile(f.Path)
	if err == nil {
		if id, err := uuid.Parse(strings.TrimSpace(string(data))); err == nil {
			return id.String(), true
		}
		log.Warn().Str("path", f.Path).Msg("Stored client id is not a UUID, generating a new one")
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", f.Path).Msg("Failed to read stored client id")
		return "", false
	}

	id := uuid.NewString()
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Warn().Err(err).Str("path", f.Path).Msg("Failed to create client id directory")
			return "", false
		}
	}
	if err := os.WriteFile(f.Path, []byte(id+"\n"), 0600); err != nil {
		log.Warn().Err(err).Str("path", f.Path).Msg("Failed to persist client id")
		return "", false
	}

	log.Info().Str("path", f.Path).Msg("Generated client id")
	return id, true
}

// FirstOf returns the identity of the first provider that has one
func FirstOf(providers ...IdentityProvider) IdentityProvider {
	return IdentityFunc(func() (string, bool) {
		for _, p := range providers {
			if id, ok := p.Identity(); ok && id != "" {
				return id, true
			}
		}
		return "", false
	})
}

// DefaultIdentity uses the MAC address and falls back to a UUID persisted at path
func DefaultIdentity(path string) IdentityProvider {
	return FirstOf(HardwareAddr{}, FileUUID{Path: path})
}
