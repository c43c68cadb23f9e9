package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()
	c.Add(10)

	assert.Equal(t, uint64(60), c.Load())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Inc("payments_dispatched")
	r.Inc("payments_dispatched")
	r.Counter("callbacks_rejected_signature").Add(3)

	assert.Equal(t, map[string]uint64{
		"payments_dispatched":          2,
		"callbacks_rejected_signature": 3,
	}, r.Snapshot())
	assert.Equal(t, []string{"callbacks_rejected_signature", "payments_dispatched"}, r.Names())

	t.Run("NilRegistryDiscards", func(t *testing.T) {
		var nilReg *Registry
		assert.NotPanics(t, func() { nilReg.Inc("x") })
		assert.Empty(t, nilReg.Snapshot())
	})

	t.Run("Handler", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.Handler()(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		var body map[string]uint64
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, uint64(2), body["payments_dispatched"])
	})
}
