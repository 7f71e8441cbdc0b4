package services

import (
	"errors"
	"time"

	"github.com/livekit/protocol/auth"
)

var ErrTransportUnconfigured = errors.New("media transport credentials are not configured")

// TokenIssuer hands out media-transport credentials scoped to one session.
type TokenIssuer interface {
	Issue(identity, sessionID string, ttl time.Duration) (string, error)
}

// LiveKitIssuer signs LiveKit access tokens. The session id is used as the
// LiveKit room name so both call parties land in the same room.
type LiveKitIssuer struct {
	apiKey    string
	apiSecret string
}

func NewLiveKitIssuer(apiKey, apiSecret string) *LiveKitIssuer {
	return &LiveKitIssuer{apiKey: apiKey, apiSecret: apiSecret}
}

func (g *LiveKitIssuer) Configured() bool {
	return g.apiKey != "" && g.apiSecret != ""
}

func (g *LiveKitIssuer) Issue(identity, sessionID string, ttl time.Duration) (string, error) {
	if !g.Configured() {
		return "", ErrTransportUnconfigured
	}
	at := auth.NewAccessToken(g.apiKey, g.apiSecret)

	canPublish := true
	canSubscribe := true
	canPublishData := true

	grant := &auth.VideoGrant{
		RoomJoin:       true,
		Room:           sessionID,
		CanPublish:     &canPublish,
		CanSubscribe:   &canSubscribe,
		CanPublishData: &canPublishData,
	}

	at.AddGrant(grant).
		SetIdentity(identity).
		SetValidFor(ttl)

	return at.ToJWT()
}
