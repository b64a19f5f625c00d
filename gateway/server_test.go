package gateway_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mintgate/gateway"
	"mintgate/native/bank"
	"mintgate/native/factory"
	"mintgate/native/sale"
	"mintgate/native/token"
	"mintgate/storage"
	"mintgate/storage/salestate"
)

const adminSecret = "test-secret"

var factoryOwner = testAddr(0x01)

func testAddr(fill byte) sale.Address {
	var a sale.Address
	for i := range a {
		a[i] = fill
	}
	return a
}

func hexAddr(a sale.Address) string {
	return fmt.Sprintf("0x%x", a[:])
}

type fixture struct {
	server  *httptest.Server
	auth    *gateway.Authenticator
	factory *factory.Factory[sale.SingleToken]
	ledger  *bank.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	ledger := bank.NewLedger()
	registry := salestate.NewRegistry(db, "collection")
	f := factory.NewSingleCollection(testAddr(0xF0), factoryOwner, registry, func(instance sale.Address, variant sale.Variant) (*sale.Engine[sale.SingleToken], error) {
		state := salestate.New[sale.SingleToken](db, instance)
		engine := sale.NewEngine[sale.SingleToken](instance, variant, state, token.NewCollection(), ledger)
		return engine, nil
	})
	auth := gateway.NewAuthenticator(gateway.AuthConfig{HMACSecret: adminSecret, Issuer: "mintgate"})
	server := gateway.NewServer(gateway.Config{
		Factory:       f,
		Authenticator: auth,
		RateLimitRPS:  1_000,
	})
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return &fixture{server: ts, auth: auth, factory: f, ledger: ledger}
}

func (fx *fixture) adminToken(t *testing.T) string {
	t.Helper()
	tok, err := fx.auth.IssueToken("admin", time.Hour)
	require.NoError(t, err)
	return tok
}

func (fx *fixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, fx.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := fx.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createRequest() map[string]any {
	return map[string]any{
		"variant":                 "standard",
		"name":                    "Drop",
		"symbol":                  "DROP",
		"baseURI":                 "ipfs://drop/",
		"unitPrice":               "100",
		"maxSupply":               10,
		"maxTokensPerTransaction": 3,
		"saleStart":               1,
	}
}

func TestHealthz(t *testing.T) {
	fx := newFixture(t)
	resp := fx.do(t, http.MethodGet, "/healthz", "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateInstanceRequiresAuth(t *testing.T) {
	fx := newFixture(t)

	resp := fx.do(t, http.MethodPost, "/v1/instances", "", createRequest())
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = fx.do(t, http.MethodPost, "/v1/instances", "not-a-token", createRequest())
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = fx.do(t, http.MethodPost, "/v1/instances", fx.adminToken(t), createRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]any](t, resp)
	require.Equal(t, "standard", created["variant"])
	require.NotEmpty(t, created["address"])
}

func TestInstanceLifecycleOverHTTP(t *testing.T) {
	fx := newFixture(t)
	token := fx.adminToken(t)

	resp := fx.do(t, http.MethodPost, "/v1/instances", token, createRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[struct {
		Address string `json:"address"`
	}](t, resp)

	// Listing shows the new instance.
	resp = fx.do(t, http.MethodGet, "/v1/instances", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed := decode[[]map[string]any](t, resp)
	require.Len(t, listed, 1)

	// Detail endpoint reports the sale policy.
	resp = fx.do(t, http.MethodGet, "/v1/instances/"+created.Address, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decode[struct {
		UnitPrice   string `json:"unitPrice"`
		MaxSupply   uint64 `json:"maxSupply"`
		TotalMinted uint64 `json:"totalMinted"`
	}](t, resp)
	require.Equal(t, "100", detail.UnitPrice)
	require.EqualValues(t, 10, detail.MaxSupply)
	require.Zero(t, detail.TotalMinted)

	// Sale started at unix second 1, so the phase is public.
	resp = fx.do(t, http.MethodGet, "/v1/instances/"+created.Address+"/phase", "", nil)
	phase := decode[map[string]string](t, resp)
	require.Equal(t, "public", phase["phase"])

	// A funded buyer purchases two units.
	buyer := testAddr(0x42)
	fx.ledger.MintNative(buyer, big.NewInt(1_000))
	resp = fx.do(t, http.MethodPost, "/v1/instances/"+created.Address+"/purchases", "", map[string]any{
		"buyer":    hexAddr(buyer),
		"quantity": 2,
		"value":    "200",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	receipt := decode[struct {
		Paid  string `json:"paid"`
		Phase string `json:"phase"`
	}](t, resp)
	require.Equal(t, "200", receipt.Paid)
	require.Equal(t, "public", receipt.Phase)

	// Wrong tender maps to a 400.
	resp = fx.do(t, http.MethodPost, "/v1/instances/"+created.Address+"/purchases", "", map[string]any{
		"buyer":    hexAddr(buyer),
		"quantity": 1,
		"value":    "99",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Pause via the admin surface, then purchases conflict.
	resp = fx.do(t, http.MethodPost, "/v1/instances/"+created.Address+"/pause", token, map[string]any{
		"caller": hexAddr(factoryOwner),
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = fx.do(t, http.MethodPost, "/v1/instances/"+created.Address+"/purchases", "", map[string]any{
		"buyer":    hexAddr(buyer),
		"quantity": 1,
		"value":    "100",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Withdraw the proceeds to the owner.
	resp = fx.do(t, http.MethodPost, "/v1/instances/"+created.Address+"/withdraw", token, map[string]any{
		"caller": hexAddr(factoryOwner),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	withdrawn := decode[map[string]string](t, resp)
	require.Equal(t, "200", withdrawn["amount"])
}

func TestUnknownInstanceIs404(t *testing.T) {
	fx := newFixture(t)
	resp := fx.do(t, http.MethodGet, "/v1/instances/"+hexAddr(testAddr(0x77)), "", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMalformedAddressIs400(t *testing.T) {
	fx := newFixture(t)
	resp := fx.do(t, http.MethodGet, "/v1/instances/zzzz", "", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
