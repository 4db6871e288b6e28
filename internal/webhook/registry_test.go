package webhook

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingHandler(name string, calls *[]string) Handler {
	return Named(name, HandlerFunc(func(ctx context.Context, p *Payload) error {
		*calls = append(*calls, name)
		return nil
	}))
}

func TestRegistryBuilder_PreservesOrder(t *testing.T) {
	var calls []string
	reg := NewRegistryBuilder().
		On(IssueComment, recordingHandler("h1", &calls)).
		On(Push, recordingHandler("push", &calls)).
		On(IssueComment, recordingHandler("h2", &calls)).
		On(IssueComment, recordingHandler("h3", &calls)).
		Build()

	hs := reg.Resolve(IssueComment)
	require.Len(t, hs, 3)
	for i, h := range hs {
		require.NoError(t, h.Handle(context.Background(), nil), "handler %d", i)
	}
	assert.Equal(t, []string{"h1", "h2", "h3"}, calls)
	assert.Equal(t, 1, reg.Len(Push))
}

func TestRegistryBuilder_SameHandlerTwice(t *testing.T) {
	var calls []string
	h := recordingHandler("dup", &calls)
	reg := NewRegistryBuilder().On(Push, h).On(Push, h).Build()
	assert.Equal(t, 2, reg.Len(Push))
}

func TestRegistry_ResolveUnregistered(t *testing.T) {
	reg := NewRegistryBuilder().Build()
	assert.Empty(t, reg.Resolve(Push))
	assert.Empty(t, reg.Resolve(Unknown))
	assert.Zero(t, reg.Len(Push))
	assert.Empty(t, reg.Kinds())

	var nilReg *Registry
	assert.Empty(t, nilReg.Resolve(Push))
}

func TestRegistryBuilder_IgnoresNil(t *testing.T) {
	reg := NewRegistryBuilder().On(Push, nil).OnFunc(Push, nil).Build()
	assert.Zero(t, reg.Len(Push))
}

func TestRegistryBuilder_BuildIsolatesRegistry(t *testing.T) {
	var calls []string
	b := NewRegistryBuilder().On(Push, recordingHandler("first", &calls))
	reg := b.Build()

	b.On(Push, recordingHandler("late", &calls))
	assert.Equal(t, 1, reg.Len(Push), "registration after Build must not leak into the registry")

	second := b.Build()
	assert.Equal(t, 1, second.Len(Push), "a builder starts empty after Build")
}

func TestRegistry_ResolveReturnsCopy(t *testing.T) {
	var calls []string
	reg := NewRegistryBuilder().
		On(Push, recordingHandler("a", &calls)).
		On(Push, recordingHandler("b", &calls)).
		Build()

	hs := reg.Resolve(Push)
	hs[0] = nil

	again := reg.Resolve(Push)
	require.Len(t, again, 2)
	assert.NotNil(t, again[0])
}

func TestRegistry_Kinds(t *testing.T) {
	reg := NewRegistryBuilder().
		OnFunc(Push, func(context.Context, *Payload) error { return nil }).
		OnFunc(IssueComment, func(context.Context, *Payload) error { return nil }).
		Build()
	assert.Equal(t, []EventKind{IssueComment, Push}, reg.Kinds())
}
