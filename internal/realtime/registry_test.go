package realtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_ConnectAndDisconnect(t *testing.T) {
	registry := NewRegistry(nil)
	transport := &fakeTransport{}

	registry.Connect("u1", RoleStudent, transport)
	assert.True(t, registry.IsConnected("u1"))

	registry.Disconnect("u1")
	assert.False(t, registry.IsConnected("u1"))
	assert.True(t, transport.closed)
}

func TestRegistry_ReconnectEvictsPrevious(t *testing.T) {
	registry := NewRegistry(nil)
	first := &fakeTransport{}
	second := &fakeTransport{}

	registry.Connect("u1", RoleStudent, first)
	registry.Connect("u1", RoleStudent, second)

	assert.True(t, first.closed)
	assert.True(t, registry.IsConnected("u1"))

	registry.SendToUser("u1", "hello")

	// The evicted transport holds only its own welcome message
	assert.Equal(t, 1, first.messageCount())
	assert.Equal(t, 2, second.messageCount())
}

func TestRegistry_SingleAcknowledgementPerOperation(t *testing.T) {
	registry := NewRegistry(nil)
	transport := &fakeTransport{}

	registry.Connect("u1", RoleStudent, transport)
	registry.Subscribe("u1", []string{"analytics:u1"})
	registry.Unsubscribe("u1", []string{"analytics:u1"})

	counts := transport.typeCounts()
	assert.Equal(t, 1, counts[MsgConnectionEstablished])
	assert.Equal(t, 1, counts[MsgSubscriptionConfirmed])
	assert.Equal(t, 1, counts[MsgUnsubscribeConfirmed])
	assert.Equal(t, 3, transport.messageCount())
}

func TestRegistry_SubscribeAndBroadcast(t *testing.T) {
	registry := NewRegistry(nil)
	sub := &fakeTransport{}
	other := &fakeTransport{}

	registry.Connect("u1", RoleStudent, sub)
	registry.Connect("u2", RoleStudent, other)
	registry.Subscribe("u1", []string{"course:go-101"})

	registry.BroadcastToChannel("course:go-101", "update")

	// welcome + subscription confirmation + broadcast payload
	assert.Equal(t, 3, sub.messageCount())
	// welcome only; u2 never subscribed
	assert.Equal(t, 1, other.messageCount())

	registry.Unsubscribe("u1", []string{"course:go-101"})
	registry.BroadcastToChannel("course:go-101", "update")

	// unsubscribe confirmation arrived, the second broadcast did not
	assert.Equal(t, 4, sub.messageCount())
}

func TestRegistry_BroadcastToRole(t *testing.T) {
	registry := NewRegistry(nil)
	admin := &fakeTransport{}
	teacher := &fakeTransport{}
	student := &fakeTransport{}

	registry.Connect("a1", RoleAdmin, admin)
	registry.Connect("t1", RoleTeacher, teacher)
	registry.Connect("s1", RoleStudent, student)

	registry.BroadcastToRole(RoleAdmin, "admin only")

	// Each transport holds its welcome; only the admin got the broadcast
	assert.Equal(t, 2, admin.messageCount())
	assert.Equal(t, 1, teacher.messageCount())
	assert.Equal(t, 1, student.messageCount())
}

func TestRegistry_BroadcastToAll(t *testing.T) {
	registry := NewRegistry(nil)
	a := &fakeTransport{}
	b := &fakeTransport{}

	registry.Connect("u1", RoleStudent, a)
	registry.Connect("u2", RoleTeacher, b)

	registry.BroadcastToAll("everyone")

	assert.Equal(t, 2, a.messageCount())
	assert.Equal(t, 2, b.messageCount())
}

func TestRegistry_PartialDeliveryFailure(t *testing.T) {
	registry := NewRegistry(nil)
	healthy := &fakeTransport{}
	broken := &fakeTransport{}

	registry.Connect("u1", RoleStudent, healthy)
	registry.Connect("u2", RoleStudent, broken)
	broken.fail(errors.New("write failed"))

	registry.BroadcastToAll("payload")

	// A failing transport does not block delivery to the rest
	assert.Equal(t, 2, healthy.messageCount())
	assert.Equal(t, int64(1), registry.SendFailures())
	assert.False(t, registry.IsConnected("u2"))
}

func TestRegistry_DisconnectRemovesSubscriptions(t *testing.T) {
	registry := NewRegistry(nil)
	transport := &fakeTransport{}

	registry.Connect("u1", RoleStudent, transport)
	registry.Subscribe("u1", []string{"ch1", "ch2"})
	registry.Disconnect("u1")

	assert.Empty(t, registry.Subscribers("ch1"))
	assert.Empty(t, registry.Subscribers("ch2"))

	stats := registry.Stats()
	assert.Equal(t, 0, stats.TotalConnections)
	assert.Equal(t, 0, stats.TotalChannels)
}

func TestRegistry_MirroredIndexesStayInverse(t *testing.T) {
	registry := NewRegistry(nil)

	// A mixed sequence of every operation that touches the indexes
	registry.Connect("u1", RoleStudent, &fakeTransport{})
	registry.Connect("u2", RoleStudent, &fakeTransport{})
	registry.Connect("u3", RoleStudent, &fakeTransport{})
	registry.Subscribe("u1", []string{"ch1", "ch2"})
	registry.Subscribe("u2", []string{"ch1"})
	registry.Subscribe("u3", []string{"ch2", "ch3"})
	registry.Unsubscribe("u1", []string{"ch2"})
	registry.Connect("u2", RoleStudent, &fakeTransport{}) // reconnect wipes u2's subscriptions
	registry.Subscribe("u2", []string{"ch3"})
	registry.Disconnect("u3")
	registry.Unsubscribe("u1", []string{"never-subscribed"})

	// Both indexes agree edge by edge
	stats := registry.Stats()
	for channel := range stats.ChannelStats {
		for _, user := range registry.Subscribers(channel) {
			assert.Contains(t, registry.Subscriptions(user), channel)
		}
	}
	for _, user := range stats.ActiveUsers {
		for _, channel := range registry.Subscriptions(user) {
			assert.Contains(t, registry.Subscribers(channel), user)
		}
	}

	assert.ElementsMatch(t, []string{"u1"}, registry.Subscribers("ch1"))
	assert.ElementsMatch(t, []string{"ch3"}, registry.Subscriptions("u2"))
	// ch2 lost its last subscriber when u3 disconnected
	assert.Empty(t, registry.Subscribers("ch2"))
	assert.Equal(t, 2, stats.TotalChannels)
}

func TestRegistry_PingAllRemovesDead(t *testing.T) {
	registry := NewRegistry(nil)
	alive := &fakeTransport{}
	dead := &fakeTransport{}

	registry.Connect("u1", RoleStudent, alive)
	registry.Connect("u2", RoleStudent, dead)
	dead.fail(errors.New("gone"))

	pinged, removed := registry.PingAll()

	assert.Equal(t, 2, pinged)
	assert.Equal(t, 1, removed)
	assert.True(t, registry.IsConnected("u1"))
	assert.False(t, registry.IsConnected("u2"))
}

func TestRegistry_Stats(t *testing.T) {
	registry := NewRegistry(nil)

	registry.Connect("u1", RoleStudent, &fakeTransport{})
	registry.Connect("u2", RoleTeacher, &fakeTransport{})
	registry.Subscribe("u1", []string{"ch1"})
	registry.Subscribe("u2", []string{"ch1", "ch2"})

	stats := registry.Stats()

	assert.Equal(t, 2, stats.TotalConnections)
	assert.Equal(t, 2, stats.TotalChannels)
	assert.ElementsMatch(t, []string{"u1", "u2"}, stats.ActiveUsers)
	assert.Equal(t, 2, stats.ChannelStats["ch1"])
	assert.Equal(t, 1, stats.ChannelStats["ch2"])
}
