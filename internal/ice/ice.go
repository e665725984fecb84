// Package ice builds the ICE server configuration handed to clients.
// The server itself never opens peer connections; this is a static,
// environment-driven lookup.
package ice

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

// ClientConfig is the JSON shape the browser RTCPeerConnection expects.
type ClientConfig struct {
	ICEServers           []webrtc.ICEServer `json:"iceServers"`
	ICECandidatePoolSize int                `json:"iceCandidatePoolSize"`
}

// ForClient assembles STUN defaults plus TURN variants when
// credentials are configured. Without TURN, an extra public STUN
// server is appended; connections may still fail on restrictive
// networks.
func ForClient(turnURL, username, password string) ClientConfig {
	servers := []webrtc.ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
		{URLs: []string{"stun:stun1.l.google.com:19302"}},
	}

	if username != "" && password != "" {
		for _, url := range turnVariants(turnURL) {
			servers = append(servers, webrtc.ICEServer{
				URLs:       []string{url},
				Username:   username,
				Credential: password,
			})
		}
	} else {
		servers = append(servers, webrtc.ICEServer{URLs: []string{"stun:stun2.l.google.com:19302"}})
	}

	return ClientConfig{
		ICEServers:           servers,
		ICECandidatePoolSize: 10,
	}
}

// turnVariants expands a :80 TURN URL into the UDP, TCP and TLS-port
// forms clients try in order.
func turnVariants(turnURL string) []string {
	return []string{
		turnURL,
		strings.Replace(turnURL, ":80", ":80?transport=tcp", 1),
		strings.Replace(turnURL, ":80", ":443", 1),
	}
}
