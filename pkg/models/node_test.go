package models

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeCanRun(t *testing.T) {
	node := NewNode("node-0", NewResources(8, 2, 64), "2.0")

	tests := []struct {
		name     string
		job      *Job
		expected bool
		mismatch string
	}{
		{"fits, any version", NewJob("a", JobTypeInference, NewResources(2, 1, 8), 50, ""), true, ""},
		{"fits, same version", NewJob("b", JobTypeTraining, NewResources(8, 2, 64), 50, "2.0"), true, ""},
		{"version mismatch", NewJob("c", JobTypeTraining, NewResources(1, 0, 1), 50, "1.9"), false, "version mismatch 1.9 vs 2.0"},
		{"too much gpu", NewJob("d", JobTypeInference, NewResources(1, 3, 1), 50, ""), false, "insufficient resources"},
		{"too much ram", NewJob("e", JobTypeInference, NewResources(1, 0, 65), 50, ""), false, "insufficient resources"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, node.CanRun(tt.job))
			assert.Equal(t, tt.mismatch, node.Mismatch(tt.job))
		})
	}
}

func TestNodeAssignAndRelease(t *testing.T) {
	node := NewNode("node-0", NewResources(8, 2, 64), "2.0")
	job := NewJob("j1", JobTypeInference, NewResources(2, 1, 8), 50, "")

	require.NoError(t, node.Assign(job))
	assert.Equal(t, JobStatusRunning, job.Status)
	assert.Equal(t, "node-0", job.AssignedNode)
	assert.True(t, node.Available.Equal(NewResources(6, 1, 56)))
	assert.True(t, node.HasJob("j1"))
	require.NoError(t, node.CheckInvariant())

	assert.True(t, node.Release(job))
	assert.True(t, node.Available.Equal(NewResources(8, 2, 64)))
	assert.True(t, node.Idle())
	require.NoError(t, node.CheckInvariant())

	// releasing twice is a no-op
	assert.False(t, node.Release(job))
	assert.True(t, node.Available.Equal(NewResources(8, 2, 64)))
}

func TestNodeAssignRejectsWhenCannotRun(t *testing.T) {
	node := NewNode("node-0", NewResources(8, 2, 64), "2.0")
	job := NewJob("j1", JobTypeTraining, NewResources(2, 1, 8), 50, "1.9")

	err := node.Assign(job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidAssignment))
	assert.Equal(t, JobStatusPending, job.Status)
	assert.True(t, node.Available.Equal(NewResources(8, 2, 64)))
	assert.Empty(t, node.RunningJobs)
}

func TestNodeResize(t *testing.T) {
	node := NewNode("node-0", NewResources(8, 2, 64), "2.0")
	job := NewJob("j1", JobTypeInference, NewResources(4, 1, 32), 50, "")
	require.NoError(t, node.Assign(job))

	t.Run("grow keeps allocation", func(t *testing.T) {
		require.NoError(t, node.Resize(NewResources(8, 2, 128)))
		assert.True(t, node.Available.Equal(NewResources(4, 1, 96)))
		assert.NoError(t, node.CheckInvariant())
	})

	t.Run("shrink below allocation is rejected", func(t *testing.T) {
		err := node.Resize(NewResources(2, 2, 128))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrResourceBusy))
		assert.True(t, node.Resources.Equal(NewResources(8, 2, 128)))
		assert.NoError(t, node.CheckInvariant())
	})
}

func TestCheckInvariantDetectsDrift(t *testing.T) {
	node := NewNode("node-0", NewResources(8, 2, 64), "2.0")
	node.Available[ResourceCPU] = 7
	assert.Error(t, node.CheckInvariant())

	node.Available[ResourceCPU] = 9
	assert.Error(t, node.CheckInvariant())
}

func TestCluster(t *testing.T) {
	c := NewCluster()
	c.Add(NewNode("node-0", NewResources(8, 2, 64), "2.0"))
	c.Add(NewUnmanagedNode("node-manual", NewResources(8, 2, 64), "2.0"))
	c.Add(NewNode("node-2", NewResources(8, 2, 64), "2.0"))

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, "node-1", c.NextNodeID())
	assert.Len(t, c.ManagedNodes(), 2)

	id, n := c.NextNodeIDFrom(2)
	assert.Equal(t, "node-3", id)
	assert.Equal(t, 3, n)

	ids := []string{}
	for _, n := range c.Nodes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"node-0", "node-manual", "node-2"}, ids)

	assert.True(t, c.Remove("node-0"))
	assert.False(t, c.Remove("node-0"))
	_, ok := c.Get("node-0")
	assert.False(t, ok)
	assert.Equal(t, "node-0", c.NextNodeID())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestResourcesHalf(t *testing.T) {
	half := NewResources(4, 1, 17).Half()
	assert.True(t, half.Equal(NewResources(2, 0, 8)))
}
