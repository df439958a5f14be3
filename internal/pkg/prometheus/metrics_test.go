package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveIsolatedRun(t *testing.T) {
	before := testutil.ToFloat64(isolatedRuns.WithLabelValues("completed"))
	ObserveIsolatedRun("completed", 2*time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(isolatedRuns.WithLabelValues("completed")))
}

func TestIncDelivery_SplitsByResult(t *testing.T) {
	okBefore := testutil.ToFloat64(deliveries.WithLabelValues("discord", "ok"))
	errBefore := testutil.ToFloat64(deliveries.WithLabelValues("discord", "error"))

	IncDelivery("discord", true)
	IncDelivery("discord", false)
	IncDelivery("discord", false)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(deliveries.WithLabelValues("discord", "ok")))
	assert.Equal(t, errBefore+2, testutil.ToFloat64(deliveries.WithLabelValues("discord", "error")))
}

func TestRegistryGathers(t *testing.T) {
	IncThreadCreated("discord", true)
	families, err := GetRegistry().Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}
