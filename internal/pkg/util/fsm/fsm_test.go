package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/looplab/fsm"
	"github.com/stretchr/testify/assert"
)

func TestWrapEventAbortsTransition(t *testing.T) {
	boom := errors.New("boom")
	m := fsm.NewFSM("a",
		fsm.Events{{Name: "go", Src: []string{"a"}, Dst: "b"}},
		fsm.Callbacks{
			"before_go": WrapEvent(func(ctx context.Context, e *fsm.Event) error { return boom }),
		},
	)

	err := m.Event(context.Background(), "go")
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, "a", m.Current())
}

func TestIgnoreNoTransition(t *testing.T) {
	m := fsm.NewFSM("a", fsm.Events{{Name: "stay", Src: []string{"a"}, Dst: "a"}}, nil)

	err := m.Event(context.Background(), "stay")
	assert.Error(t, err)
	assert.NoError(t, IgnoreNoTransition(err))

	other := errors.New("other")
	assert.Equal(t, other, IgnoreNoTransition(other))
}
