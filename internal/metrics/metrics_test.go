package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("calendar")
	})

	before := testutil.ToFloat64(emailsSent.WithLabelValues("confirmation", "error"))
	IncEmail("confirmation", false)
	assert.Equal(t, before+1, testutil.ToFloat64(emailsSent.WithLabelValues("confirmation", "error")))

	IncJobItem("reminders", "notified")
	assert.GreaterOrEqual(t, testutil.ToFloat64(jobItems.WithLabelValues("reminders", "notified")), 1.0)

	IncPMSSync(true)
	assert.GreaterOrEqual(t, testutil.ToFloat64(pmsSync.WithLabelValues("ok")), 1.0)
}
