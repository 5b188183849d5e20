package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicBuilder(t *testing.T) {
	b := NewTopicBuilder("canscope/v1/")

	assert.Equal(t, "canscope/v1/can/can0/rx", b.Rx("can0"))
	assert.Equal(t, "canscope/v1/can/can0/tx", b.Tx("can0"))
	assert.Equal(t, "canscope/v1/can/+/rx", b.RxWildcard())
	assert.Equal(t, "canscope/v1/can/vcan1/status", b.Status("vcan1"))
}

func TestTopicBuilderBus(t *testing.T) {
	b := NewTopicBuilder("canscope/v1")

	bus, ok := b.Bus("canscope/v1/can/can1/rx")
	assert.True(t, ok)
	assert.Equal(t, "can1", bus)

	_, ok = b.Bus("other/v1/can/can1/rx")
	assert.False(t, ok)

	_, ok = b.Bus("canscope/v1/can/can1")
	assert.False(t, ok)
}
