// Package saramamock provides fake sarama consumer-group primitives
// for handler tests.
package saramamock

import (
	"context"
	"sync"

	"github.com/Shopify/sarama"
)

// ConsumerGroupSession is a fake sarama.ConsumerGroupSession that
// records marked offsets.
type ConsumerGroupSession struct {
	MClaims       map[string][]int32
	MMemberID     string
	MContext      context.Context
	MGenerationID int32

	mu     sync.Mutex
	marked []int64
}

// Claims returns what's saved.
func (m *ConsumerGroupSession) Claims() map[string][]int32 {
	return m.MClaims
}

// MemberID returns what's saved.
func (m *ConsumerGroupSession) MemberID() string {
	return m.MMemberID
}

// GenerationID returns what's saved.
func (m *ConsumerGroupSession) GenerationID() int32 {
	return m.MGenerationID
}

// MarkOffset records the offset as marked.
func (m *ConsumerGroupSession) MarkOffset(_ string, _ int32, offset int64, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marked = append(m.marked, offset)
}

// Commit does nothing.
func (*ConsumerGroupSession) Commit() {}

// ResetOffset does nothing.
func (*ConsumerGroupSession) ResetOffset(_ string, _ int32, _ int64, _ string) {}

// MarkMessage records the message offset, mirroring the real session
// which stores offset+1.
func (m *ConsumerGroupSession) MarkMessage(msg *sarama.ConsumerMessage, meta string) {
	m.MarkOffset(msg.Topic, msg.Partition, msg.Offset+1, meta)
}

// Context returns what's saved.
func (m *ConsumerGroupSession) Context() context.Context {
	if m.MContext == nil {
		return context.Background()
	}
	return m.MContext
}

// Marked returns a copy of all offsets stored so far.
func (m *ConsumerGroupSession) Marked() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.marked))
	copy(out, m.marked)
	return out
}

var _ sarama.ConsumerGroupSession = (*ConsumerGroupSession)(nil)

// ConsumerGroupClaim is a fake sarama.ConsumerGroupClaim fed from a
// message slice.
type ConsumerGroupClaim struct {
	msgChan chan *sarama.ConsumerMessage

	// Saved values.
	MTopic               string
	MPartition           int32
	MInitialOffset       int64
	MHighWaterMarkOffset int64
}

// NewConsumerGroupClaim builds a claim whose Messages channel yields
// the given messages and then closes, like a claim at session end.
func NewConsumerGroupClaim(topic string, msgs []*sarama.ConsumerMessage) *ConsumerGroupClaim {
	c := &ConsumerGroupClaim{
		MTopic:  topic,
		msgChan: make(chan *sarama.ConsumerMessage, len(msgs)),
	}
	for _, msg := range msgs {
		c.msgChan <- msg
	}
	close(c.msgChan)
	return c
}

// Topic returns the saved value.
func (c *ConsumerGroupClaim) Topic() string {
	return c.MTopic
}

// Partition returns the saved value.
func (c *ConsumerGroupClaim) Partition() int32 {
	return c.MPartition
}

// InitialOffset returns the saved value.
func (c *ConsumerGroupClaim) InitialOffset() int64 {
	return c.MInitialOffset
}

// HighWaterMarkOffset returns the saved offset.
func (c *ConsumerGroupClaim) HighWaterMarkOffset() int64 {
	return c.MHighWaterMarkOffset
}

// Messages returns the messages channel.
func (c *ConsumerGroupClaim) Messages() <-chan *sarama.ConsumerMessage {
	return c.msgChan
}

var _ sarama.ConsumerGroupClaim = (*ConsumerGroupClaim)(nil)
