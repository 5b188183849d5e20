package topic

import (
	"fmt"
	"strings"
)

// Constants defining the standard topic segments.
// These are the contract between canscope and a CAN-to-MQTT gateway.
const (
	// SegmentCAN groups all bus traffic under the root.
	SegmentCAN = "can"

	// SuffixRx carries frames the gateway read from the bus (Gateway -> Scope).
	// Structure: {root}/can/{bus}/rx
	SuffixRx = "rx"

	// SuffixTx carries frames the gateway should write to the bus (Scope -> Gateway).
	// Structure: {root}/can/{bus}/tx
	SuffixTx = "tx"

	// SuffixStatus carries the gateway's retained online/offline state.
	// Structure: {root}/can/{bus}/status
	SuffixStatus = "status"
)

// TopicBuilder encapsulates the logic for constructing MQTT topic strings.
type TopicBuilder struct {
	// root is the base namespace for all topics (e.g., "canscope/v1").
	root string
}

// NewTopicBuilder creates a new instance of TopicBuilder with the specified root namespace.
func NewTopicBuilder(root string) *TopicBuilder {
	return &TopicBuilder{root: strings.TrimSuffix(root, "/")}
}

// Rx returns the topic on which frames received on bus are published.
// Direction: Gateway -> Scope
func (b *TopicBuilder) Rx(bus string) string {
	return b.build(bus, SuffixRx)
}

// RxWildcard returns the filter matching received frames of every bus.
// Result: {root}/can/+/rx
func (b *TopicBuilder) RxWildcard() string {
	return b.build(Wildcard, SuffixRx)
}

// Tx returns the topic on which frames to transmit on bus are published.
// Direction: Scope -> Gateway
func (b *TopicBuilder) Tx(bus string) string {
	return b.build(bus, SuffixTx)
}

// Status returns the gateway status topic of bus.
func (b *TopicBuilder) Status(bus string) string {
	return b.build(bus, SuffixStatus)
}

// Bus extracts the bus name from a topic built by this builder.
// ok is false if topic does not belong to the root.
func (b *TopicBuilder) Bus(topic string) (bus string, ok bool) {
	rest, found := strings.CutPrefix(topic, b.root+"/"+SegmentCAN+"/")
	if !found {
		return "", false
	}
	bus, _, found = strings.Cut(rest, "/")
	return bus, found && bus != ""
}

// build constructs {root}/can/{bus}/{suffix}.
func (b *TopicBuilder) build(bus, suffix string) string {
	return fmt.Sprintf("%s/%s/%s/%s", b.root, SegmentCAN, bus, suffix)
}
