package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob string

func (n namedJob) Name() string              { return string(n) }
func (n namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	require.True(t, r.Register(namedJob("first")))
	require.True(t, r.Register(namedJob("second")))

	got := r.Jobs()
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Name())
	assert.Equal(t, "second", got[1].Name())

	got[0] = nil
	assert.NotNil(t, r.Jobs()[0], "Jobs must return a copy")
}

func TestRegistryDropsNilAndRepeatedNames(t *testing.T) {
	r := NewRegistry(namedJob("ltv-pipeline"), nil, namedJob("ltv-pipeline"))
	assert.Len(t, r.Jobs(), 1)
	assert.False(t, r.Register(nil))
	assert.False(t, r.Register(namedJob("ltv-pipeline")))

	var zero Registry
	assert.True(t, zero.Register(namedJob("x")))
}
