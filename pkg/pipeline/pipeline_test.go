package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uhyunpark/sigbook/pkg/crypto"
	"github.com/uhyunpark/sigbook/pkg/order"
	"github.com/uhyunpark/sigbook/pkg/storage"
)

const receiver = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

func payloadJSON(sender, platform string) string {
	return fmt.Sprintf(
		`{"sender_pk": %q, "receiver_pk": %q, "buy_currency": "Algorand", "sell_currency": "Ethereum", "buy_amount": 51, "sell_amount": 0.5, "platform": %q}`,
		sender, receiver, platform,
	)
}

// signedSubmission signs payload's canonical form with signer
func signedSubmission(t *testing.T, signer crypto.MessageSigner, payload string) []byte {
	t.Helper()
	msg, err := order.CanonicalJSON([]byte(payload))
	require.NoError(t, err)
	sig, err := signer.SignMessage(msg)
	require.NoError(t, err)
	return []byte(fmt.Sprintf(`{"sig": %q, "payload": %s}`, sig, payload))
}

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	return New(store, zap.NewNop().Sugar(), opts...), store
}

func counts(t *testing.T, s storage.Store) (orders, logs int) {
	t.Helper()
	o, err := s.ListOrders(context.Background())
	require.NoError(t, err)
	l, err := s.ListLogs(context.Background())
	require.NoError(t, err)
	return len(o), len(l)
}

func TestSubmitStructuralFailures(t *testing.T) {
	eth, err := crypto.GenerateKey()
	require.NoError(t, err)
	full := payloadJSON(eth.SignerID(), "Ethereum")

	tests := []struct {
		name    string
		raw     string
		wantLog string
	}{
		{"not json", `{"sig": `, "{}"},
		{"array", `[]`, "{}"},
		{"missing sig", `{"payload": {"platform": "Ethereum"}}`, `{"platform": "Ethereum"}`},
		{"missing payload", `{"sig": "0x00"}`, "{}"},
		{"null payload", `{"sig": "0x00", "payload": null}`, "null"},
		{"missing platform", `{"sig": "0x00", "payload": {"sender_pk": "a"}}`, `{"sender_pk": "a"}`},
		{"sig not string", `{"sig": 7, "payload": ` + full + `}`, ""},
		{"amount is string", `{"sig": "0x00", "payload": ` + strings.Replace(full, `"buy_amount": 51`, `"buy_amount": "51"`, 1) + `}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, store := newTestPipeline(t)

			ok, err := p.Submit(context.Background(), []byte(tt.raw))
			require.NoError(t, err)
			assert.False(t, ok)

			orders, logs := counts(t, store)
			assert.Equal(t, 0, orders)
			require.Equal(t, 1, logs)

			if tt.wantLog != "" {
				entries, _ := store.ListLogs(context.Background())
				assert.Equal(t, tt.wantLog, entries[0].Message)
			}
		})
	}
}

func TestSubmitEthereumAccepted(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	p, store := newTestPipeline(t)

	ok, err := p.Submit(context.Background(), signedSubmission(t, signer, payloadJSON(signer.SignerID(), "Ethereum")))
	require.NoError(t, err)
	assert.True(t, ok)

	orders, err := store.ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	o := orders[0]
	assert.Equal(t, signer.SignerID(), o.SenderPK)
	assert.Equal(t, receiver, o.ReceiverPK)
	assert.Equal(t, "Algorand", o.BuyCurrency)
	assert.Equal(t, "Ethereum", o.SellCurrency)
	assert.Equal(t, "51", o.BuyAmount.String())
	assert.Equal(t, "0.5", o.SellAmount.String())
	assert.True(t, strings.HasPrefix(o.Signature, "0x"))

	_, logs := counts(t, store)
	assert.Equal(t, 0, logs)
}

func TestSubmitEthereumWrongKey(t *testing.T) {
	claimed, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	p, store := newTestPipeline(t)

	payload := payloadJSON(claimed.SignerID(), "Ethereum")
	ok, err := p.Submit(context.Background(), signedSubmission(t, other, payload))
	require.NoError(t, err)
	assert.False(t, ok)

	orders, logs := counts(t, store)
	assert.Equal(t, 0, orders)
	require.Equal(t, 1, logs)

	// the audit row carries the exact signed message
	entries, _ := store.ListLogs(context.Background())
	want, _ := order.CanonicalJSON([]byte(payload))
	assert.Equal(t, want, entries[0].Message)
}

func TestSubmitTamperedPayload(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	p, store := newTestPipeline(t)

	raw := signedSubmission(t, signer, payloadJSON(signer.SignerID(), "Ethereum"))
	tampered := strings.Replace(string(raw), `"buy_amount": 51`, `"buy_amount": 52`, 1)

	ok, err := p.Submit(context.Background(), []byte(tampered))
	require.NoError(t, err)
	assert.False(t, ok)

	orders, logs := counts(t, store)
	assert.Equal(t, 0, orders)
	assert.Equal(t, 1, logs)
}

func TestSubmitAlgorandAccepted(t *testing.T) {
	signer, err := crypto.GenerateAlgorandKey()
	require.NoError(t, err)
	p, store := newTestPipeline(t)

	ok, err := p.Submit(context.Background(), signedSubmission(t, signer, payloadJSON(signer.SignerID(), "Algorand")))
	require.NoError(t, err)
	assert.True(t, ok)

	orders, logs := counts(t, store)
	assert.Equal(t, 1, orders)
	assert.Equal(t, 0, logs)
}

func TestSubmitAlgorandWrongKey(t *testing.T) {
	claimed, err := crypto.GenerateAlgorandKey()
	require.NoError(t, err)
	other, err := crypto.GenerateAlgorandKey()
	require.NoError(t, err)
	p, store := newTestPipeline(t)

	ok, err := p.Submit(context.Background(), signedSubmission(t, other, payloadJSON(claimed.SignerID(), "Algorand")))
	require.NoError(t, err)
	assert.False(t, ok)

	orders, logs := counts(t, store)
	assert.Equal(t, 0, orders)
	assert.Equal(t, 1, logs)
}

func TestSubmitUnsupportedPlatform(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)

	for _, platform := range []string{"Bitcoin", "ethereum", ""} {
		t.Run(platform, func(t *testing.T) {
			p, store := newTestPipeline(t)

			// signature is valid under Ethereum rules; the platform still decides
			ok, err := p.Submit(context.Background(), signedSubmission(t, signer, payloadJSON(signer.SignerID(), platform)))
			require.NoError(t, err)
			assert.False(t, ok)

			orders, logs := counts(t, store)
			assert.Equal(t, 0, orders)
			assert.Equal(t, 1, logs)
		})
	}
}

func TestSubmitRegistryWithoutAlgorand(t *testing.T) {
	signer, err := crypto.GenerateAlgorandKey()
	require.NoError(t, err)

	registry := crypto.DefaultRegistry()
	delete(registry, crypto.PlatformAlgorand)
	p, store := newTestPipeline(t, WithRegistry(registry))

	ok, err := p.Submit(context.Background(), signedSubmission(t, signer, payloadJSON(signer.SignerID(), "Algorand")))
	require.NoError(t, err)
	assert.False(t, ok)

	_, logs := counts(t, store)
	assert.Equal(t, 1, logs)
}

func TestSubmitDuplicatesCreateTwoOrders(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	p, store := newTestPipeline(t)

	raw := signedSubmission(t, signer, payloadJSON(signer.SignerID(), "Ethereum"))
	for i := 0; i < 2; i++ {
		ok, err := p.Submit(context.Background(), raw)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	orders, err := store.ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.NotEqual(t, orders[0].ID, orders[1].ID)
	assert.Equal(t, orders[0].Signature, orders[1].Signature)
}

func TestSubmitOrderHook(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)

	var got []order.Order
	p, _ := newTestPipeline(t, WithOrderHook(func(o order.Order) { got = append(got, o) }))

	_, err = p.Submit(context.Background(), signedSubmission(t, signer, payloadJSON(signer.SignerID(), "Ethereum")))
	require.NoError(t, err)
	_, err = p.Submit(context.Background(), []byte(`{}`))
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].ID)
}

func TestSubmitConcurrent(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	p, store := newTestPipeline(t)

	good := signedSubmission(t, signer, payloadJSON(signer.SignerID(), "Ethereum"))
	bad := []byte(`{"sig": "0x00"}`)

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ok, err := p.Submit(context.Background(), good)
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
		go func() {
			defer wg.Done()
			ok, err := p.Submit(context.Background(), bad)
			assert.NoError(t, err)
			assert.False(t, ok)
		}()
	}
	wg.Wait()

	orders, logs := counts(t, store)
	assert.Equal(t, n, orders)
	assert.Equal(t, n, logs)
}

func TestSubmitMetrics(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)

	m := NewMetrics(prometheus.NewRegistry())
	p, _ := newTestPipeline(t, WithMetrics(m))
	ctx := context.Background()

	_, _ = p.Submit(ctx, signedSubmission(t, signer, payloadJSON(signer.SignerID(), "Ethereum")))
	_, _ = p.Submit(ctx, []byte(`{}`))
	_, _ = p.Submit(ctx, signedSubmission(t, signer, payloadJSON(signer.SignerID(), "Bitcoin")))
	_, _ = p.Submit(ctx, signedSubmission(t, signer, payloadJSON(receiver, "Ethereum")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues(OutcomeAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues(OutcomeStructural)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues(OutcomeUnsupported)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues(OutcomeVerification)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.storeErrors))
}

// failingStore fails every write
type failingStore struct {
	storage.MemoryStore
}

var errDown = errors.New("database unavailable")

func (*failingStore) CreateOrder(context.Context, *order.Order) (uint64, error) { return 0, errDown }
func (*failingStore) CreateLog(context.Context, string) (uint64, error)         { return 0, errDown }

func TestSubmitStoreFailure(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)

	m := NewMetrics(prometheus.NewRegistry())
	p := New(&failingStore{}, zap.NewNop().Sugar(), WithMetrics(m))

	_, err = p.Submit(context.Background(), signedSubmission(t, signer, payloadJSON(signer.SignerID(), "Ethereum")))
	assert.ErrorIs(t, err, errDown)

	_, err = p.Submit(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, errDown)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.storeErrors))
}

func TestSubmitRejectsHugeExponentOnPebble(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)

	store, err := storage.NewPebbleStore(filepath.Join(t.TempDir(), "orderbook"))
	require.NoError(t, err)
	defer store.Close()
	p := New(store, zap.NewNop().Sugar())

	// correctly signed, but the amount would take unbounded time to render
	payload := strings.Replace(payloadJSON(signer.SignerID(), "Ethereum"), `"buy_amount": 51`, `"buy_amount": 1e2147483647`, 1)
	raw := signedSubmission(t, signer, payload)

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := p.Submit(context.Background(), raw)
		done <- result{ok, err}
	}()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.False(t, r.ok)
	case <-time.After(5 * time.Second):
		t.Fatal("Submit did not return")
	}

	orders, logs := counts(t, store)
	assert.Equal(t, 0, orders)
	assert.Equal(t, 1, logs)

	// the store stays usable
	ok, err := p.Submit(context.Background(), signedSubmission(t, signer, payloadJSON(signer.SignerID(), "Ethereum")))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSubmitRejectsDuplicateKeys(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	p, store := newTestPipeline(t)

	// signed over both members; the typed payload would only see the last one
	payload := strings.Replace(payloadJSON(signer.SignerID(), "Ethereum"), `"buy_amount": 51`, `"buy_amount": 51, "buy_amount": 5100`, 1)
	// payloadJSON is already in canonical form, so the text itself is the message
	sig, err := signer.SignMessage(payload)
	require.NoError(t, err)
	raw := []byte(fmt.Sprintf(`{"sig": %q, "payload": %s}`, sig, payload))

	ok, err := p.Submit(context.Background(), raw)
	require.NoError(t, err)
	assert.False(t, ok)

	orders, logs := counts(t, store)
	assert.Equal(t, 0, orders)
	assert.Equal(t, 1, logs)
}
