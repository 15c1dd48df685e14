package metrics

import (
	"testing"

	"github.com/cuemby/scbackend/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type fakeInstances []types.InstanceInfo

func (f fakeInstances) List() []types.InstanceInfo { return f }

type fakeSubscribers int

func (f fakeSubscribers) Count() int { return int(f) }

func TestCollectorCollect(t *testing.T) {
	c := NewCollector(fakeInstances{
		{ID: "a", State: types.InstanceStateRunning},
		{ID: "b", State: types.InstanceStateRunning},
		{ID: "c", State: types.InstanceStateDegraded},
	}, fakeSubscribers(3))

	c.Collect()

	assert.Equal(t, 2.0, testutil.ToFloat64(InstancesTotal.WithLabelValues("running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(InstancesTotal.WithLabelValues("degraded")))
	assert.Equal(t, 0.0, testutil.ToFloat64(InstancesTotal.WithLabelValues("created")))
	assert.Equal(t, 3.0, testutil.ToFloat64(SubscribersTotal))
}

func TestCollectorNilSources(t *testing.T) {
	c := NewCollector(nil, nil)
	assert.NotPanics(t, c.Collect)
}

func TestCollectorStartStop(t *testing.T) {
	c := NewCollector(fakeInstances{}, fakeSubscribers(0))
	c.Start()
	c.Stop()
}
