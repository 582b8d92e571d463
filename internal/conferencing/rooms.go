package conferencing

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// roomNamespace scopes room refs so they never collide with appointment ids
var roomNamespace = uuid.MustParse("6f1c9a2e-3b7d-4c52-9d0e-8a41f5b2c7e3")

type Room struct {
	Ref     string `json:"ref"`
	JoinURL string `json:"join_url"`
}

// RoomProvider creates a video room for an appointment or returns the existing one
type RoomProvider interface {
	CreateOrGetRoom(ctx context.Context, appointmentID uuid.UUID) (Room, error)
	// JoinURL rebuilds the join link for a stored ref
	JoinURL(ref string) string
}

var _ RoomProvider = (*URLRoomProvider)(nil)

// URLRoomProvider derives a stable room per appointment under a base URL,
// so repeated calls return the same room without any remote state.
type URLRoomProvider struct {
	base *url.URL
}

func NewURLRoomProvider(baseURL string) (*URLRoomProvider, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("conferencing: base url must be absolute")
	}
	return &URLRoomProvider{base: u}, nil
}

func (p *URLRoomProvider) CreateOrGetRoom(ctx context.Context, appointmentID uuid.UUID) (Room, error) {
	if appointmentID == uuid.Nil {
		return Room{}, errors.New("conferencing: appointment id required")
	}
	ref := RoomRef(appointmentID)
	return Room{Ref: ref, JoinURL: p.base.JoinPath(ref).String()}, nil
}

// RoomRef is the deterministic room reference for an appointment
func RoomRef(appointmentID uuid.UUID) string {
	return uuid.NewSHA1(roomNamespace, appointmentID[:]).String()
}

func (p *URLRoomProvider) JoinURL(ref string) string {
	return p.base.JoinPath(ref).String()
}
