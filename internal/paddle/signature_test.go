package paddle

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "pdl_ntfset_test_secret"

func fixedVerifier(tolerance time.Duration, now time.Time) *Verifier {
	v := NewVerifier(testSecret, tolerance)
	v.now = func() time.Time { return now }
	return v
}

func TestVerifier_ValidSignature(t *testing.T) {
	now := time.Unix(1718000000, 0)
	bodies := []string{
		`{"event_type":"transaction.completed"}`,
		``,
		`{"data":{"custom_data":{"user_id":"u-1"}},"note":"ts=1;h1=ab"}`,
		"unicode: привет",
	}
	for _, body := range bodies {
		header := Sign(testSecret, now, []byte(body))
		assert.True(t, fixedVerifier(0, now).Verify([]byte(body), header), "body %q", body)
		assert.True(t, fixedVerifier(5*time.Minute, now).Verify([]byte(body), header), "body %q", body)
	}
}

func TestVerifier_BodyBitFlip(t *testing.T) {
	now := time.Unix(1718000000, 0)
	body := []byte(`{"event_type":"transaction.completed","data":{"id":"txn_1"}}`)
	header := Sign(testSecret, now, body)
	v := fixedVerifier(0, now)

	for i := range body {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), body...)
			mutated[i] ^= 1 << bit
			require.False(t, v.Verify(mutated, header), "byte %d bit %d", i, bit)
		}
	}
}

func TestVerifier_DigestMutation(t *testing.T) {
	now := time.Unix(1718000000, 0)
	body := []byte(`{"event_type":"subscription.updated"}`)
	header := Sign(testSecret, now, body)
	v := fixedVerifier(0, now)

	idx := strings.Index(header, "h1=") + len("h1=")
	for i := idx; i < len(header); i++ {
		mutated := []byte(header)
		if mutated[i] == '0' {
			mutated[i] = '1'
		} else {
			mutated[i] = '0'
		}
		require.False(t, v.Verify(body, string(mutated)), "position %d", i)
	}
}

func TestVerifier_TimestampMutation(t *testing.T) {
	now := time.Unix(1718000000, 0)
	body := []byte(`{"event_type":"transaction.completed"}`)
	header := Sign(testSecret, now, body)
	digest := header[strings.Index(header, ";"):]

	for _, ts := range []int64{now.Unix() + 1, now.Unix() - 1, now.Unix() ^ 1} {
		mutated := "ts=" + strconv.FormatInt(ts, 10) + digest
		assert.False(t, fixedVerifier(0, now).Verify(body, mutated), "ts %d", ts)
	}
}

func TestVerifier_FailsClosed(t *testing.T) {
	now := time.Unix(1718000000, 0)
	body := []byte(`{}`)
	valid := Sign(testSecret, now, body)
	digest := valid[strings.Index(valid, "h1=")+3:]

	tests := []struct {
		name     string
		verifier *Verifier
		header   string
	}{
		{"empty secret", &Verifier{secret: "", now: func() time.Time { return now }}, valid},
		{"empty header", fixedVerifier(0, now), ""},
		{"missing ts", fixedVerifier(0, now), "h1=" + digest},
		{"missing h1", fixedVerifier(0, now), "ts=1718000000"},
		{"empty h1", fixedVerifier(0, now), "ts=1718000000;h1="},
		{"malformed hex", fixedVerifier(0, now), "ts=1718000000;h1=zz" + digest[2:]},
		{"non numeric ts", fixedVerifier(0, now), "ts=abc;h1=" + digest},
		{"garbage", fixedVerifier(0, now), ";;;="},
		{"wrong secret", NewVerifier("other", 0), valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.verifier.Verify(body, tt.header))
		})
	}
}

func TestVerifier_HeaderWhitespaceAndRotation(t *testing.T) {
	now := time.Unix(1718000000, 0)
	body := []byte(`{"a":1}`)
	valid := Sign(testSecret, now, body)
	digest := valid[strings.Index(valid, "h1=")+3:]

	v := fixedVerifier(0, now)
	assert.True(t, v.Verify(body, " ts=1718000000 ; h1="+digest+" "))
	assert.True(t, v.Verify(body, "ts=1718000000;h1=deadbeef;h1="+digest))
}

func TestVerifier_Tolerance(t *testing.T) {
	signedAt := time.Unix(1718000000, 0)
	body := []byte(`{"event_type":"transaction.completed"}`)
	header := Sign(testSecret, signedAt, body)

	assert.True(t, fixedVerifier(5*time.Minute, signedAt.Add(4*time.Minute)).Verify(body, header))
	assert.False(t, fixedVerifier(5*time.Minute, signedAt.Add(6*time.Minute)).Verify(body, header))
	assert.False(t, fixedVerifier(5*time.Minute, signedAt.Add(-6*time.Minute)).Verify(body, header))
	assert.True(t, fixedVerifier(0, signedAt.Add(24*time.Hour)).Verify(body, header))
}

func TestEvent_Accessors(t *testing.T) {
	raw := `{
		"event_id": "evt_01",
		"event_type": "transaction.completed",
		"occurred_at": "2024-06-10T10:00:00Z",
		"data": {
			"id": "txn_01",
			"status": "completed",
			"subscription_id": "sub_01",
			"custom_data": {"user_id": " acc-1 "},
			"items": [{"price_id": "", "price": {"id": "pri_pro"}}]
		}
	}`
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))

	assert.Equal(t, "acc-1", ev.AccountID())
	assert.Equal(t, "pri_pro", ev.PriceID())
	assert.False(t, ev.IsSubscriptionEvent())
	assert.Equal(t, "sub_01", ev.SubscriptionRef())

	sub := Event{EventType: "subscription.canceled", Data: EventData{ID: "sub_02", Items: []Item{{PriceID: "pri_x"}}}}
	assert.True(t, sub.IsSubscriptionEvent())
	assert.Equal(t, "sub_02", sub.SubscriptionRef())
	assert.Equal(t, "pri_x", sub.PriceID())
	assert.Empty(t, sub.AccountID())
}
