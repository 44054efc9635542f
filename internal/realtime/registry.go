package realtime

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Dashboard roles that receive live fan-out.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Registry tracks live push connections, their roles, and their channel
// subscriptions. A user id maps to at most one transport; a new connect
// evicts the previous one.
//
// Delivery guarantee: none. Every send is best effort; a failed send
// disconnects the peer, bumps the failure counter, and is never surfaced
// to the caller. The push layer favors availability over delivery.
type Registry struct {
	mu sync.RWMutex

	// connections maps user id to its sole live transport.
	connections map[string]Transport

	// roles maps user id to its dashboard role.
	roles map[string]string

	// channelSubs and userSubs are mirrored indexes and must stay
	// mutual inverses under every mutation.
	channelSubs map[string]map[string]struct{}
	userSubs    map[string]map[string]struct{}

	sendFailures atomic.Int64

	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		connections: make(map[string]Transport),
		roles:       make(map[string]string),
		channelSubs: make(map[string]map[string]struct{}),
		userSubs:    make(map[string]map[string]struct{}),
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONNECT / DISCONNECT
// ══════════════════════════════════════════════════════════════════════════════

// Connect registers transport as the sole connection for userID, evicting
// any prior transport without notice, and sends the welcome message.
func (r *Registry) Connect(userID, role string, transport Transport) {
	r.mu.Lock()
	if old, ok := r.connections[userID]; ok {
		// Evicted client gets no close notification, only a dropped socket.
		go func() { _ = old.Close() }()
		r.removeSubscriptionsLocked(userID)
	}
	r.connections[userID] = transport
	r.roles[userID] = role
	r.userSubs[userID] = make(map[string]struct{})
	r.mu.Unlock()

	r.logger.Info("websocket connected", "user_id", userID, "role", role)

	r.SendToUser(userID, ConnectionEstablished(userID, r.now()))
}

// Disconnect removes the user's connection and every subscription it held.
// No-op when the user has no connection.
func (r *Registry) Disconnect(userID string) {
	r.mu.Lock()
	transport, ok := r.connections[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.connections, userID)
	delete(r.roles, userID)
	r.removeSubscriptionsLocked(userID)
	r.mu.Unlock()

	_ = transport.Close()
	r.logger.Info("websocket disconnected", "user_id", userID)
}

// removeSubscriptionsLocked clears the user from both mirrored indexes.
// Caller holds r.mu.
func (r *Registry) removeSubscriptionsLocked(userID string) {
	for channel := range r.userSubs[userID] {
		if users, ok := r.channelSubs[channel]; ok {
			delete(users, userID)
			if len(users) == 0 {
				delete(r.channelSubs, channel)
			}
		}
	}
	delete(r.userSubs, userID)
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBSCRIPTIONS
// ══════════════════════════════════════════════════════════════════════════════

// Subscribe adds the user to each channel and confirms over the push channel.
// Unknown users are ignored: subscriptions require a live connection.
func (r *Registry) Subscribe(userID string, channels []string) {
	r.mu.Lock()
	if _, ok := r.connections[userID]; !ok {
		r.mu.Unlock()
		return
	}
	for _, channel := range channels {
		if r.channelSubs[channel] == nil {
			r.channelSubs[channel] = make(map[string]struct{})
		}
		r.channelSubs[channel][userID] = struct{}{}
		r.userSubs[userID][channel] = struct{}{}
	}
	r.mu.Unlock()

	r.logger.Info("channels subscribed", "user_id", userID, "channels", channels)

	r.SendToUser(userID, SubscriptionConfirmed(channels, r.now()))
}

// Unsubscribe removes the user from each channel and confirms.
func (r *Registry) Unsubscribe(userID string, channels []string) {
	r.mu.Lock()
	if _, ok := r.userSubs[userID]; !ok {
		r.mu.Unlock()
		return
	}
	for _, channel := range channels {
		if users, ok := r.channelSubs[channel]; ok {
			delete(users, userID)
			if len(users) == 0 {
				delete(r.channelSubs, channel)
			}
		}
		delete(r.userSubs[userID], channel)
	}
	r.mu.Unlock()

	r.logger.Info("channels unsubscribed", "user_id", userID, "channels", channels)

	r.SendToUser(userID, UnsubscriptionConfirmed(channels, r.now()))
}

// ══════════════════════════════════════════════════════════════════════════════
// DELIVERY
// ══════════════════════════════════════════════════════════════════════════════

// SendToUser delivers one message, best effort. A transport failure is
// treated as an implicit disconnect and swallowed.
func (r *Registry) SendToUser(userID string, message any) {
	r.mu.RLock()
	transport, ok := r.connections[userID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	if err := transport.WriteJSON(message); err != nil {
		r.sendFailures.Add(1)
		r.logger.Error("send failed, dropping connection", "user_id", userID, "error", err)
		r.Disconnect(userID)
	}
}

// BroadcastToChannel delivers to every connected subscriber of channel.
// Failed peers are disconnected after the loop; the rest still receive.
func (r *Registry) BroadcastToChannel(channel string, message any) {
	r.mu.RLock()
	targets := make(map[string]Transport)
	for userID := range r.channelSubs[channel] {
		if transport, ok := r.connections[userID]; ok {
			targets[userID] = transport
		}
	}
	r.mu.RUnlock()

	r.deliver(targets, message)
}

// BroadcastToRole delivers to every connection registered under role.
func (r *Registry) BroadcastToRole(role string, message any) {
	r.mu.RLock()
	targets := make(map[string]Transport)
	for userID, userRole := range r.roles {
		if userRole != role {
			continue
		}
		if transport, ok := r.connections[userID]; ok {
			targets[userID] = transport
		}
	}
	r.mu.RUnlock()

	r.deliver(targets, message)
}

// BroadcastToAll delivers to every live connection.
func (r *Registry) BroadcastToAll(message any) {
	r.mu.RLock()
	targets := make(map[string]Transport, len(r.connections))
	for userID, transport := range r.connections {
		targets[userID] = transport
	}
	r.mu.RUnlock()

	r.deliver(targets, message)
}

// deliver writes to a defensive copy of targets, collecting failures and
// cleaning them up after the loop so one dead peer cannot abort the rest.
func (r *Registry) deliver(targets map[string]Transport, message any) {
	var failed []string
	for userID, transport := range targets {
		if err := transport.WriteJSON(message); err != nil {
			r.sendFailures.Add(1)
			r.logger.Error("broadcast send failed", "user_id", userID, "error", err)
			failed = append(failed, userID)
		}
	}
	for _, userID := range failed {
		r.Disconnect(userID)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATS
// ══════════════════════════════════════════════════════════════════════════════

// PingAll probes every connection and evicts the dead ones.
// Returns the number pinged and the number removed.
func (r *Registry) PingAll() (pinged, removed int) {
	r.mu.RLock()
	targets := make(map[string]Transport, len(r.connections))
	for userID, transport := range r.connections {
		targets[userID] = transport
	}
	r.mu.RUnlock()

	var dead []string
	for userID, transport := range targets {
		if err := transport.Ping(); err != nil {
			r.logger.Warn("connection lost", "user_id", userID, "error", err)
			dead = append(dead, userID)
		}
	}
	for _, userID := range dead {
		r.Disconnect(userID)
	}

	return len(targets), len(dead)
}

// ConnectionStats is a point-in-time view of the registry.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	TotalChannels    int            `json:"total_channels"`
	ActiveUsers      []string       `json:"active_users"`
	ChannelStats     map[string]int `json:"channel_stats"`
}

// Stats returns connection and subscription counts.
func (r *Registry) Stats() ConnectionStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := ConnectionStats{
		TotalConnections: len(r.connections),
		TotalChannels:    len(r.channelSubs),
		ActiveUsers:      make([]string, 0, len(r.connections)),
		ChannelStats:     make(map[string]int, len(r.channelSubs)),
	}
	for userID := range r.connections {
		stats.ActiveUsers = append(stats.ActiveUsers, userID)
	}
	for channel, users := range r.channelSubs {
		stats.ChannelStats[channel] = len(users)
	}

	return stats
}

// SendFailures returns the cumulative count of failed push sends.
func (r *Registry) SendFailures() int64 {
	return r.sendFailures.Load()
}

// IsConnected reports whether the user currently has a live transport.
func (r *Registry) IsConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.connections[userID]
	return ok
}

// Subscriptions returns the channels the user is subscribed to.
func (r *Registry) Subscriptions(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channels := make([]string, 0, len(r.userSubs[userID]))
	for channel := range r.userSubs[userID] {
		channels = append(channels, channel)
	}
	return channels
}

// Subscribers returns the users subscribed to a channel.
func (r *Registry) Subscribers(channel string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.channelSubs[channel]))
	for userID := range r.channelSubs[channel] {
		users = append(users, userID)
	}
	return users
}
