package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(ShareJoins.WithLabelValues("joined"))
	ShareJoins.WithLabelValues("joined").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ShareJoins.WithLabelValues("joined")))
}

func TestHandlerExposesShareMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ShareTokensIssued.Inc()

	r := gin.New()
	r.GET("/metrics", Handler())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "grocerylist_share_tokens_issued_total")
}
