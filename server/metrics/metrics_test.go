package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInstrumentHandlerLabelsByRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(InstrumentHandler)
	router.HandleFunc("/things/{id}", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/"+id, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/things/{id}", "418")))
}

func TestRecordHelpers(t *testing.T) {
	RecordSupportTransition("active")
	RecordOTP("send", nil)
	RecordOTP("send", errors.New("boom"))
	RecordJobRun("notifyRequester", nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(supportTransitions.WithLabelValues("active")))
	assert.Equal(t, float64(1), testutil.ToFloat64(otpRequests.WithLabelValues("send", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(jobRuns.WithLabelValues("notifyRequester", "true")))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "relief_support_transitions_total"))
}
