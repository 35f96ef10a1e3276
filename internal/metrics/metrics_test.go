package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/rovshanmuradov/launchpad/internal/errcode"
)

func TestObserve(t *testing.T) {
	c := NewCollector("test")

	c.Observe("buy", time.Now(), nil)
	c.Observe("buy", time.Now(), fmt.Errorf("buy: %w", errcode.ErrSlippageExceeded))
	c.Observe("sell", time.Now(), fmt.Errorf("plain failure"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.OperationsTotal.WithLabelValues("buy", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.OperationsTotal.WithLabelValues("buy", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ErrorsTotal.WithLabelValues("economic", "SlippageExceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ErrorsTotal.WithLabelValues("unknown", "unknown")))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, b := NewCollector(""), NewCollector("")
	a.AddFees(10, 11)
	a.TokensBurned.Add(5)

	assert.Equal(t, 10.0, testutil.ToFloat64(a.FeesAccruedLamports.WithLabelValues("platform")))
	assert.Equal(t, 11.0, testutil.ToFloat64(a.FeesAccruedLamports.WithLabelValues("creator")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.TokensBurned))
	assert.NotNil(t, a.Handler())
}
