// Package gateway exposes the sale platform over HTTP: public purchase and
// query endpoints plus a JWT-gated admin surface.
package gateway

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mintgate/native/factory"
	"mintgate/native/sale"
)

// Server wires the single-collection factory to the HTTP surface.
type Server struct {
	factory       *factory.Factory[sale.SingleToken]
	logger        *slog.Logger
	authenticator *Authenticator
	rateLimiter   *RateLimiter
	observability *Observability
	registry      *prometheus.Registry
	purchases     *prometheus.CounterVec
}

// Config carries the server collaborators.
type Config struct {
	Factory       *factory.Factory[sale.SingleToken]
	Logger        *slog.Logger
	Authenticator *Authenticator
	RateLimitRPS  int
}

// NewServer builds the server and its metrics registry.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := prometheus.NewRegistry()
	s := &Server{
		factory:       cfg.Factory,
		logger:        logger,
		authenticator: cfg.Authenticator,
		rateLimiter:   NewRateLimiter(cfg.RateLimitRPS),
		observability: NewObservability(logger, registry),
		registry:      registry,
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mintgate",
			Subsystem: "sale",
			Name:      "purchases_total",
			Help:      "Settled purchases, by phase.",
		}, []string{"phase"}),
	}
	registry.MustRegister(s.purchases)
	return s
}

// Handler assembles the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.observability.Middleware("root"))
	r.Use(s.rateLimiter.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/v1/instances", func(r chi.Router) {
		r.Get("/", s.handleListInstances)
		r.Get("/{address}", s.handleGetInstance)
		r.Get("/{address}/phase", s.handleGetPhase)
		r.Post("/{address}/allowlist/check", s.handleAllowListCheck)
		r.Post("/{address}/purchases", s.handleBuyPublic)
		r.Post("/{address}/presale-purchases", s.handleBuyPresale)

		if s.authenticator != nil {
			r.Group(func(r chi.Router) {
				r.Use(s.authenticator.Middleware())
				r.Post("/", s.handleCreateInstance)
				r.Post("/{address}/pause", s.handlePause)
				r.Post("/{address}/unpause", s.handleUnpause)
				r.Post("/{address}/withdraw", s.handleWithdraw)
				r.Post("/{address}/signer", s.handleRotateSigner)
				r.Post("/{address}/allowlist/root", s.handleAllowListRoot)
				r.Post("/{address}/allowlist/active", s.handleAllowListToggle)
			})
		}
	})
	return r
}

type instanceResponse struct {
	Address   string `json:"address"`
	Variant   string `json:"variant"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	CreatedAt int64  `json:"createdAt"`
}

func recordResponse(record *factory.Record) instanceResponse {
	return instanceResponse{
		Address:   encodeAddress(record.Address),
		Variant:   record.Variant,
		Name:      record.Name,
		Symbol:    record.Symbol,
		CreatedAt: record.CreatedAt,
	}
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	records, err := s.factory.Records()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]instanceResponse, 0, len(records))
	for _, record := range records {
		out = append(out, recordResponse(record))
	}
	writeJSON(w, http.StatusOK, out)
}

type instanceDetail struct {
	instanceResponse
	Owner       string `json:"owner"`
	Paused      bool   `json:"paused"`
	BaseURI     string `json:"baseURI"`
	MaxSupply   uint64 `json:"maxSupply"`
	TotalMinted uint64 `json:"totalMinted"`
	UnitPrice   string `json:"unitPrice"`
	SaleStart   int64  `json:"saleStart"`
	SaleEnd     int64  `json:"saleEnd"`
}

func (s *Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	engine, record, ok := s.lookup(w, r)
	if !ok {
		return
	}
	identity, err := engine.Identity()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cfg, err := engine.Config(sale.SingleToken{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	minted, err := engine.TotalMinted(sale.SingleToken{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, instanceDetail{
		instanceResponse: recordResponse(record),
		Owner:            encodeAddress(identity.Owner),
		Paused:           identity.Paused,
		BaseURI:          identity.BaseURI,
		MaxSupply:        cfg.MaxSupply,
		TotalMinted:      minted,
		UnitPrice:        bigString(cfg.UnitPrice),
		SaleStart:        cfg.SaleStart,
		SaleEnd:          cfg.SaleEnd,
	})
}

func (s *Server) handleGetPhase(w http.ResponseWriter, r *http.Request) {
	engine, _, ok := s.lookup(w, r)
	if !ok {
		return
	}
	phase, err := engine.PhaseAt(sale.SingleToken{}, nowUnix())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"phase": phase.String()})
}

type allowListCheckRequest struct {
	Address string   `json:"address"`
	Proof   []string `json:"proof"`
}

func (s *Server) handleAllowListCheck(w http.ResponseWriter, r *http.Request) {
	engine, _, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req allowListCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "malformed body")
		return
	}
	addr, err := parseAddress(req.Address)
	if err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	proof, err := parseProof(req.Proof)
	if err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	allowed, err := engine.CheckAllowListed(sale.SingleToken{}, addr, proof)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

type purchaseRequest struct {
	Buyer     string   `json:"buyer"`
	Quantity  uint64   `json:"quantity"`
	Value     string   `json:"value"`
	Salt      string   `json:"salt,omitempty"`
	Signature string   `json:"signature,omitempty"`
	Proof     []string `json:"proof,omitempty"`
}

type purchaseResponse struct {
	Buyer    string `json:"buyer"`
	Quantity uint64 `json:"quantity"`
	Paid     string `json:"paid"`
	Phase    string `json:"phase"`
}

func (s *Server) handleBuyPublic(w http.ResponseWriter, r *http.Request) {
	s.handlePurchase(w, r, func(engine *sale.Engine[sale.SingleToken], p sale.Purchase[sale.SingleToken]) (*sale.Receipt[sale.SingleToken], error) {
		return engine.BuyPublic(p)
	})
}

func (s *Server) handleBuyPresale(w http.ResponseWriter, r *http.Request) {
	s.handlePurchase(w, r, func(engine *sale.Engine[sale.SingleToken], p sale.Purchase[sale.SingleToken]) (*sale.Receipt[sale.SingleToken], error) {
		return engine.BuyPresale(p)
	})
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request, buy func(*sale.Engine[sale.SingleToken], sale.Purchase[sale.SingleToken]) (*sale.Receipt[sale.SingleToken], error)) {
	engine, _, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "malformed body")
		return
	}
	purchase, err := buildPurchase(req)
	if err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	receipt, err := buy(engine, purchase)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.purchases.WithLabelValues(receipt.Phase.String()).Inc()
	writeJSON(w, http.StatusOK, purchaseResponse{
		Buyer:    encodeAddress(receipt.Buyer),
		Quantity: receipt.Quantity,
		Paid:     bigString(receipt.Paid),
		Phase:    receipt.Phase.String(),
	})
}

func buildPurchase(req purchaseRequest) (sale.Purchase[sale.SingleToken], error) {
	var p sale.Purchase[sale.SingleToken]
	buyer, err := parseAddress(req.Buyer)
	if err != nil {
		return p, err
	}
	p.Buyer = buyer
	p.Origin = buyer
	p.Quantity = req.Quantity
	if req.Value != "" {
		value, err := parseBigInt(req.Value)
		if err != nil {
			return p, err
		}
		p.Value = value
	}
	if req.Salt != "" {
		salt, err := parseBigInt(req.Salt)
		if err != nil {
			return p, err
		}
		p.Salt = salt
	}
	if req.Signature != "" {
		sig, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
		if err != nil {
			return p, fmt.Errorf("malformed signature")
		}
		p.Signature = sig
	}
	if len(req.Proof) > 0 {
		proof, err := parseProof(req.Proof)
		if err != nil {
			return p, err
		}
		p.Proof = proof
	}
	return p, nil
}

type createInstanceRequest struct {
	Variant                 string `json:"variant"`
	Name                    string `json:"name"`
	Symbol                  string `json:"symbol"`
	BaseURI                 string `json:"baseURI"`
	Owner                   string `json:"owner,omitempty"`
	Signer                  string `json:"signer,omitempty"`
	PaymentAsset            string `json:"paymentAsset,omitempty"`
	UnitPrice               string `json:"unitPrice"`
	MaxSupply               uint64 `json:"maxSupply"`
	MaxTokensPerTransaction uint64 `json:"maxTokensPerTransaction"`
	SaleStart               int64  `json:"saleStart"`
	SaleEnd                 int64  `json:"saleEnd"`
	PublicSaleStart         int64  `json:"publicSaleStart"`
	MaxMintedPerAddress     uint64 `json:"maxMintedPerAddress"`
	PresaleUnitPrice        string `json:"presaleUnitPrice"`
}

func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var req createInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "malformed body")
		return
	}
	variant, ok := sale.ParseVariant(req.Variant)
	if !ok {
		s.writeBadRequest(w, "unknown variant")
		return
	}
	params := sale.Params{
		Name:                    req.Name,
		Symbol:                  req.Symbol,
		BaseURI:                 req.BaseURI,
		MaxSupply:               req.MaxSupply,
		MaxTokensPerTransaction: req.MaxTokensPerTransaction,
		SaleStart:               req.SaleStart,
		SaleEnd:                 req.SaleEnd,
		PublicSaleStart:         req.PublicSaleStart,
		MaxMintedPerAddress:     req.MaxMintedPerAddress,
	}
	var err error
	if params.UnitPrice, err = parseOptionalBigInt(req.UnitPrice); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	if params.PresaleUnitPrice, err = parseOptionalBigInt(req.PresaleUnitPrice); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	if params.Owner, err = parseOptionalAddress(req.Owner); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	if params.PaymentAsset, err = parseOptionalAddress(req.PaymentAsset); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	signer, err := parseOptionalAddress(req.Signer)
	if err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	_, record, err := s.factory.CreateInstance(s.factory.Owner(), variant, params, signer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recordResponse(record))
}

type ownerRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.ownerAction(w, r, func(engine *sale.Engine[sale.SingleToken], caller sale.Address, _ json.RawMessage) (any, error) {
		return nil, engine.Pause(caller)
	})
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	s.ownerAction(w, r, func(engine *sale.Engine[sale.SingleToken], caller sale.Address, _ json.RawMessage) (any, error) {
		return nil, engine.Unpause(caller)
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	type withdrawRequest struct {
		Asset string `json:"asset,omitempty"`
	}
	s.ownerAction(w, r, func(engine *sale.Engine[sale.SingleToken], caller sale.Address, body json.RawMessage) (any, error) {
		var req withdrawRequest
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return nil, errBadRequest("malformed body")
			}
		}
		asset, err := parseOptionalAddress(req.Asset)
		if err != nil {
			return nil, errBadRequest(err.Error())
		}
		amount, err := engine.Withdraw(caller, asset)
		if err != nil {
			return nil, err
		}
		return map[string]string{"amount": bigString(amount)}, nil
	})
}

func (s *Server) handleRotateSigner(w http.ResponseWriter, r *http.Request) {
	type signerRequest struct {
		Signer string `json:"signer"`
	}
	s.ownerAction(w, r, func(engine *sale.Engine[sale.SingleToken], caller sale.Address, body json.RawMessage) (any, error) {
		var req signerRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, errBadRequest("malformed body")
		}
		signer, err := parseAddress(req.Signer)
		if err != nil {
			return nil, errBadRequest(err.Error())
		}
		return nil, engine.RotateSigner(caller, signer)
	})
}

func (s *Server) handleAllowListRoot(w http.ResponseWriter, r *http.Request) {
	type rootRequest struct {
		Root string `json:"root"`
	}
	s.ownerAction(w, r, func(engine *sale.Engine[sale.SingleToken], caller sale.Address, body json.RawMessage) (any, error) {
		var req rootRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, errBadRequest("malformed body")
		}
		root, err := parseHash32(req.Root)
		if err != nil {
			return nil, errBadRequest(err.Error())
		}
		return nil, engine.UpdateAllowListRoot(caller, sale.SingleToken{}, root)
	})
}

func (s *Server) handleAllowListToggle(w http.ResponseWriter, r *http.Request) {
	type toggleRequest struct {
		Active bool `json:"active"`
	}
	s.ownerAction(w, r, func(engine *sale.Engine[sale.SingleToken], caller sale.Address, body json.RawMessage) (any, error) {
		var req toggleRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, errBadRequest("malformed body")
		}
		if req.Active {
			return nil, engine.ActivateAllowList(caller, sale.SingleToken{})
		}
		return nil, engine.DeactivateAllowList(caller, sale.SingleToken{})
	})
}

func (s *Server) ownerAction(w http.ResponseWriter, r *http.Request, fn func(*sale.Engine[sale.SingleToken], sale.Address, json.RawMessage) (any, error)) {
	engine, _, ok := s.lookup(w, r)
	if !ok {
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.writeBadRequest(w, "malformed body")
		return
	}
	var owner ownerRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &owner); err != nil {
			s.writeBadRequest(w, "malformed body")
			return
		}
	}
	caller, err := parseAddress(owner.Caller)
	if err != nil {
		s.writeBadRequest(w, "caller required")
		return
	}
	out, err := fn(engine, caller, raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if out == nil {
		out = map[string]string{"status": "ok"}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*sale.Engine[sale.SingleToken], *factory.Record, bool) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeBadRequest(w, err.Error())
		return nil, nil, false
	}
	engine, err := s.factory.Instance(addr)
	if err != nil {
		s.writeError(w, r, err)
		return nil, nil, false
	}
	records, err := s.factory.Records()
	if err != nil {
		s.writeError(w, r, err)
		return nil, nil, false
	}
	for _, record := range records {
		if record.Address == addr {
			return engine, record, true
		}
	}
	s.writeError(w, r, factory.ErrNotFound)
	return nil, nil, false
}

type badRequestError string

func errBadRequest(msg string) error { return badRequestError(msg) }

func (e badRequestError) Error() string { return string(e) }

func (s *Server) writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// writeError maps domain errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var badReq badRequestError
	switch {
	case errors.As(err, &badReq):
		status = http.StatusBadRequest
	case errors.Is(err, factory.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sale.ErrUnauthorized), errors.Is(err, factory.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, sale.ErrInvalidSignature),
		errors.Is(err, sale.ErrSignatureReplayed),
		errors.Is(err, sale.ErrPresaleUnauthorized),
		errors.Is(err, sale.ErrCallerNotEOA):
		status = http.StatusForbidden
	case errors.Is(err, sale.ErrPaused),
		errors.Is(err, sale.ErrSaleNotStarted),
		errors.Is(err, sale.ErrSaleEnded),
		errors.Is(err, sale.ErrSupplyExceeded),
		errors.Is(err, sale.ErrPresaleLimitExceeded),
		errors.Is(err, sale.ErrAlreadyInitialized),
		errors.Is(err, sale.ErrAllowListActive),
		errors.Is(err, sale.ErrAllowListInactive):
		status = http.StatusConflict
	case errors.Is(err, sale.ErrInvalidPayment),
		errors.Is(err, sale.ErrNativeNotAllowed),
		errors.Is(err, sale.ErrPerTxCapExceeded),
		errors.Is(err, sale.ErrInvalidWindow),
		errors.Is(err, sale.ErrInvalidPresaleWindow),
		errors.Is(err, sale.ErrInvalidPresaleCap),
		errors.Is(err, sale.ErrZeroPerTxCap),
		errors.Is(err, sale.ErrNegativePrice),
		errors.Is(err, sale.ErrZeroSigner),
		errors.Is(err, sale.ErrZeroOwner),
		errors.Is(err, sale.ErrTokenInactive),
		errors.Is(err, factory.ErrInvalidVariant),
		errors.Is(err, factory.ErrEmptyName),
		errors.Is(err, factory.ErrEmptySymbol),
		errors.Is(err, factory.ErrZeroSigner):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("request_id", RequestID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func encodeAddress(addr sale.Address) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func parseAddress(raw string) (sale.Address, error) {
	var addr sale.Address
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	b, err := hex.DecodeString(raw)
	if err != nil || len(b) != len(addr) {
		return addr, fmt.Errorf("malformed address")
	}
	copy(addr[:], b)
	return addr, nil
}

func parseOptionalAddress(raw string) (sale.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return sale.Address{}, nil
	}
	return parseAddress(raw)
}

func parseHash32(raw string) ([32]byte, error) {
	var out [32]byte
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	b, err := hex.DecodeString(raw)
	if err != nil || len(b) != len(out) {
		return out, fmt.Errorf("malformed 32-byte digest")
	}
	copy(out[:], b)
	return out, nil
}

func parseProof(raw []string) ([][32]byte, error) {
	proof := make([][32]byte, 0, len(raw))
	for _, entry := range raw {
		node, err := parseHash32(entry)
		if err != nil {
			return nil, fmt.Errorf("malformed proof node")
		}
		proof = append(proof, node)
	}
	return proof, nil
}

func parseBigInt(raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("malformed amount")
	}
	return v, nil
}

func parseOptionalBigInt(raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return big.NewInt(0), nil
	}
	return parseBigInt(raw)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func nowUnix() int64 { return time.Now().Unix() }
