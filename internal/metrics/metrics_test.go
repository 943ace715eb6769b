package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRecommendation(t *testing.T) {
	found := testutil.ToFloat64(Recommendations.WithLabelValues("found"))
	missing := testutil.ToFloat64(Recommendations.WithLabelValues("not_found"))

	RecordRecommendation(true, 10*time.Millisecond)
	RecordRecommendation(false, time.Millisecond)
	RecordRecommendation(false, time.Millisecond)

	assert.Equal(t, found+1, testutil.ToFloat64(Recommendations.WithLabelValues("found")))
	assert.Equal(t, missing+2, testutil.ToFloat64(Recommendations.WithLabelValues("not_found")))
}

func TestRecordCoverLookup(t *testing.T) {
	before := testutil.ToFloat64(CoverLookups.WithLabelValues("memo"))
	RecordCoverLookup("memo")
	assert.Equal(t, before+1, testutil.ToFloat64(CoverLookups.WithLabelValues("memo")))
}

func TestRecordCatalogLoad(t *testing.T) {
	RecordCatalogLoad(1234, 2*time.Second)
	assert.Equal(t, 1234.0, testutil.ToFloat64(CatalogSongs))
	assert.Equal(t, 2.0, testutil.ToFloat64(CatalogLoadDuration))
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	assert.Equal(t, before+1, testutil.ToFloat64(APIActiveRequests))
	TrackActiveRequest(false)
	assert.Equal(t, before, testutil.ToFloat64(APIActiveRequests))
}
