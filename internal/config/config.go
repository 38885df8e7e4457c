// Package config loads the network settings shared by the signaling and
// peer-connection layers.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

// Net holds the transport endpoints for a peer process.
type Net struct {
	// SignalingURL is the websocket endpoint of the presence/broadcast relay.
	SignalingURL string `json:"signaling_url"`
	// STUNServers is the static ICE server list, always used.
	STUNServers []string `json:"stun_servers"`
	// TURNCredentialURL, when set, is fetched once before any connection
	// attempt to augment the ICE servers. Fetch failure is non-fatal.
	TURNCredentialURL string `json:"turn_credential_url"`
	// TURNBearerToken authorizes the TURN credential fetch.
	TURNBearerToken string `json:"turn_bearer_token"`
}

var (
	cfg      *Net
	loadOnce sync.Once
	loadErr  error
)

// Default returns the built-in settings: public STUN, no TURN, local relay.
func Default() Net {
	return Net{
		SignalingURL: "ws://localhost:4000/ws",
		STUNServers: []string{
			"stun:stun.l.google.com:19302",
			"stun:stun1.l.google.com:19302",
		},
	}
}

// LoadNetConfig loads the network configuration from the given path,
// overlaying environment variables. Safe to call more than once; only the
// first call reads the file.
func LoadNetConfig(path string) error {
	loadOnce.Do(func() {
		c := Default()
		if path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				loadErr = fmt.Errorf("failed to read net config: %w", err)
				return
			}
			if err := json.Unmarshal(data, &c); err != nil {
				loadErr = fmt.Errorf("failed to unmarshal net config: %w", err)
				return
			}
		}
		applyEnv(&c)
		cfg = &c
	})
	return loadErr
}

// GetNetConfig returns the loaded configuration, or the defaults (plus env
// overrides) when no file was loaded.
func GetNetConfig() Net {
	if cfg == nil {
		c := Default()
		applyEnv(&c)
		return c
	}
	return *cfg
}

func applyEnv(c *Net) {
	if v := os.Getenv("RUNG_SIGNALING_URL"); v != "" {
		c.SignalingURL = v
	}
	if v := os.Getenv("RUNG_TURN_CREDENTIAL_URL"); v != "" {
		c.TURNCredentialURL = v
	}
	if v := os.Getenv("RUNG_TURN_BEARER_TOKEN"); v != "" {
		c.TURNBearerToken = v
	}
}

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}
