package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstanceID(t *testing.T) {
	t.Setenv("ISIS_INSTANCE_ID", "")
	id := InstanceID()
	assert.True(t, strings.HasPrefix(id, "isis-"), id)
	assert.NotEqual(t, id, InstanceID())

	t.Setenv("ISIS_INSTANCE_ID", " stage-left ")
	assert.Equal(t, "stage-left", InstanceID())
}
