package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyflow/pkg/logger"
	"keyflow/pkg/order"
)

func testLog() *logger.Logger {
	return logger.New(io.Discard, logger.LevelInfo, "test", nil)
}

func claims() []order.ClaimedKey {
	return []order.ClaimedKey{{ProductID: "shadow-weekly", Key: "SHADOW-AAAA-BBBB"}}
}

func TestKeysIssuedBothDeliveries(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []message
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		mu.Lock()
		sent = append(sent, m)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMailer(srv.URL, "key", "shop@example.com", "ops@example.com", testLog())
	err := m.KeysIssued(context.Background(), "buyer@example.com", "ord_1", claims())
	require.NoError(t, err)

	require.Len(t, sent, 2)
	recipients := map[string]bool{sent[0].To: true, sent[1].To: true}
	assert.True(t, recipients["buyer@example.com"])
	assert.True(t, recipients["ops@example.com"])
}

func TestKeysIssuedOneFailureStillSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		if m.To == "ops@example.com" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMailer(srv.URL, "key", "shop@example.com", "ops@example.com", testLog())
	err := m.KeysIssued(context.Background(), "buyer@example.com", "ord_1", claims())
	assert.NoError(t, err, "one delivery landing is overall success")
}

func TestKeysIssuedBothFailuresError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := NewMailer(srv.URL, "key", "shop@example.com", "ops@example.com", testLog())
	err := m.KeysIssued(context.Background(), "buyer@example.com", "ord_1", claims())
	assert.Error(t, err)
}
