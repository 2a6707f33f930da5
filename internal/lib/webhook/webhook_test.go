package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/partners/internal/model"
)

func TestSignKnownVector(t *testing.T) {
	// RFC 4231 test case 2.
	got := Sign("Jefe", []byte("what do ya want for nothing?"))
	assert.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", got)
}

func TestVerify(t *testing.T) {
	body := []byte(`{"event":"partner.enrolled"}`)
	sig := Sign("whsec_test", body)

	assert.True(t, Verify("whsec_test", body, sig))
	assert.False(t, Verify("whsec_other", body, sig))
	assert.False(t, Verify("whsec_test", []byte(`{}`), sig))
	assert.False(t, Verify("whsec_test", body, "not-hex"))
}

func TestBuildPayload(t *testing.T) {
	body, err := BuildPayload(model.WebhookCommissionCreated, map[string]any{"id": "cm_1", "earnings": 1500})
	require.NoError(t, err)

	var payload model.WebhookPayload
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.True(t, strings.HasPrefix(payload.ID, model.PrefixWebhookEvent))
	assert.Equal(t, model.WebhookCommissionCreated, payload.Event)
	assert.JSONEq(t, `{"id":"cm_1","earnings":1500}`, string(payload.Data))
	assert.False(t, payload.CreatedAt.IsZero())
}

func TestSenderSignsRequests(t *testing.T) {
	var gotSig, gotEvent string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotEvent = r.Header.Get(EventHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	body := []byte(`{"hello":"world"}`)
	err := NewSender(time.Second).Send(context.Background(), srv.URL, "whsec_abc", model.WebhookPartnerBanned, body)
	require.NoError(t, err)

	assert.Equal(t, body, gotBody)
	assert.Equal(t, "partner.banned", gotEvent)
	assert.True(t, Verify("whsec_abc", gotBody, gotSig))
}

func TestSenderReportsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	err := NewSender(time.Second).Send(context.Background(), srv.URL, "s", model.WebhookPayoutConfirmed, []byte(`{}`))

	var derr *DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, http.StatusBadGateway, derr.StatusCode)
	assert.Equal(t, "upstream down", derr.Body)
}
