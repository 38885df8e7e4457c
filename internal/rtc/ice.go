package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pion/webrtc/v3"
)

// urlList accepts either a single URL string or an array of them, since
// TURN credential endpoints commonly return both shapes.
type urlList []string

func (u *urlList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*u = urlList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*u = urlList(many)
	return nil
}

type turnServer struct {
	URLs       urlList `json:"urls"`
	Username   string  `json:"username,omitempty"`
	Credential string  `json:"credential,omitempty"`
}

// fetchTURNServers retrieves TURN credentials from the configured endpoint.
// The endpoint already returns servers in ICE shape.
func fetchTURNServers(ctx context.Context, client *http.Client, endpoint, bearer string) ([]webrtc.ICEServer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build turn request: %w", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch turn credentials: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("turn credential endpoint returned %s", resp.Status)
	}

	var servers []turnServer
	if err := json.NewDecoder(resp.Body).Decode(&servers); err != nil {
		return nil, fmt.Errorf("decode turn credentials: %w", err)
	}

	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		out = append(out, webrtc.ICEServer{
			URLs:       []string(s.URLs),
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return out, nil
}

// buildICEServers combines the static STUN list with any fetched TURN
// servers.
func buildICEServers(stunURLs []string, turn []webrtc.ICEServer) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, 1+len(turn))
	if len(stunURLs) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: append([]string(nil), stunURLs...)})
	}
	servers = append(servers, turn...)
	return servers
}
