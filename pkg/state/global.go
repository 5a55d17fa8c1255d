// Package state holds process-wide session state: the signed-in user,
// aggregate unread counts and connectivity. One Global is constructed per
// signed-in session and torn down on sign-out; only the dispatcher's
// global-state step mutates it.
package state

import (
	"github.com/google/uuid"

	"chatsync/pkg/flow"
	"chatsync/pkg/models"
)

// Connectivity of the realtime connection.
type Connectivity int

const (
	ConnectivityOffline Connectivity = iota
	ConnectivityConnecting
	ConnectivityConnected
)

func (c Connectivity) String() string {
	switch c {
	case ConnectivityConnecting:
		return "connecting"
	case ConnectivityConnected:
		return "connected"
	}
	return "offline"
}

// Global is the cross-channel state container for one session.
type Global struct {
	userID    string
	sessionID string

	user             *flow.Flow[*models.User]
	connectionID     *flow.Flow[string]
	connectivity     *flow.Flow[Connectivity]
	totalUnreadCount *flow.Flow[int]
	unreadChannels   *flow.Flow[int]
}

// NewGlobal builds the container for the configured session user id.
func NewGlobal(userID string) *Global {
	return &Global{
		userID:           userID,
		sessionID:        uuid.NewString(),
		user:             flow.New[*models.User](nil),
		connectionID:     flow.New(""),
		connectivity:     flow.New(ConnectivityOffline),
		totalUnreadCount: flow.New(0),
		unreadChannels:   flow.New(0),
	}
}

// UserID is the configured session user id; fixed for the session's
// lifetime regardless of what events report.
func (g *Global) UserID() string { return g.userID }

// SessionID is the locally-generated id for this engine session.
func (g *Global) SessionID() string { return g.sessionID }

// User is an observable of the signed-in user profile.
func (g *Global) User() *flow.Flow[*models.User] { return g.user }

// ConnectionID is an observable of the backend-issued connection id.
func (g *Global) ConnectionID() *flow.Flow[string] { return g.connectionID }

// Connectivity is an observable of socket connectivity.
func (g *Global) Connectivity() *flow.Flow[Connectivity] { return g.connectivity }

// TotalUnreadCount is an observable of the unread message total across
// all channels.
func (g *Global) TotalUnreadCount() *flow.Flow[int] { return g.totalUnreadCount }

// UnreadChannels is an observable of how many channels have unread
// messages.
func (g *Global) UnreadChannels() *flow.Flow[int] { return g.unreadChannels }

// SetUser replaces the signed-in user profile.
func (g *Global) SetUser(u *models.User) { g.user.Set(u) }

// SetConnection records a live connection and flips connectivity. A
// blank id from the transport gets a locally-generated one.
func (g *Global) SetConnection(connectionID string) {
	if connectionID == "" {
		connectionID = uuid.NewString()
	}
	g.connectionID.Set(connectionID)
	g.connectivity.Set(ConnectivityConnected)
}

// SetConnectivity updates the connectivity flag alone.
func (g *Global) SetConnectivity(c Connectivity) { g.connectivity.Set(c) }

// SetUnreadCounts updates both aggregate unread counters.
func (g *Global) SetUnreadCounts(totalMessages, channels int) {
	if totalMessages >= 0 {
		g.totalUnreadCount.Set(totalMessages)
	}
	if channels >= 0 {
		g.unreadChannels.Set(channels)
	}
}

// Reset clears the session on sign-out.
func (g *Global) Reset() {
	g.user.Set(nil)
	g.connectionID.Set("")
	g.connectivity.Set(ConnectivityOffline)
	g.totalUnreadCount.Set(0)
	g.unreadChannels.Set(0)
}
