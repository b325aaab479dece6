package simulator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/zeuslawyer/remix-simulator/internal/db/models"
	"github.com/zeuslawyer/remix-simulator/internal/events"
	"github.com/zeuslawyer/remix-simulator/internal/jsonrpc"
	"github.com/zeuslawyer/remix-simulator/internal/provider"
	"golang.org/x/crypto/sha3"
	"gorm.io/gorm"
)

const DefaultClientVersion = "RemixSimulator/v0.1.0"

var (
	ErrNoAccounts     = errors.New("at least one account is required")
	ErrClosed         = errors.New("simulator is closed")
	ErrNotInitialized = errors.New("simulator is not initialized")
)

type Options struct {
	ChainID             uint64
	Accounts            int
	InitialBalanceEther uint64
	BlockGasLimit       uint64
	ClientVersion       string
}

type handlerFunc func(ctx context.Context, params []json.RawMessage) (any, error)

// Simulator is an instamining chain kept in a gorm store. It implements
// provider.Provider.
type Simulator struct {
	db            *gorm.DB
	opts          Options
	bus           *events.EventBus
	handlers      map[string]handlerFunc
	subscriptions *xsync.MapOf[string, subscription]

	// mineMu serializes block production.
	mineMu sync.Mutex

	accountsMu sync.RWMutex
	accounts   []string

	initialized atomic.Bool
	closed      atomic.Bool
	initMu      sync.Mutex
}

type subscription struct {
	kind    string
	channel string
}

var (
	_ provider.Provider        = (*Simulator)(nil)
	_ provider.ChannelReleaser = (*Simulator)(nil)
)

func New(db *gorm.DB, opts Options) *Simulator {
	if opts.ClientVersion == "" {
		opts.ClientVersion = DefaultClientVersion
	}
	s := &Simulator{
		db:            db,
		opts:          opts,
		bus:           events.NewEventBus(),
		subscriptions: xsync.NewMapOf[string, subscription](),
	}
	s.registerHandlers()
	return s
}

// Init loads or creates the test accounts and the genesis block. Calling it
// again after success is a no-op.
func (s *Simulator) Init(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.closed.Load() {
		return ErrClosed
	}
	if s.initialized.Load() {
		return nil
	}
	if s.opts.Accounts <= 0 {
		return ErrNoAccounts
	}

	var accounts []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := models.ListAccounts(tx)
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		if len(existing) == 0 {
			existing, err = s.seedAccounts(tx)
			if err != nil {
				return err
			}
		}
		for _, account := range existing {
			accounts = append(accounts, account.Address)
		}

		_, err = models.LatestBlockNumber(tx)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			genesis := models.Block{
				Number:     0,
				ParentHash: zeroHash,
				Timestamp:  uint64(time.Now().Unix()),
				GasLimit:   s.opts.BlockGasLimit,
				Miner:      accounts[0],
			}
			genesis.Hash = blockHash(genesis, nil)
			if err := tx.Create(&genesis).Error; err != nil {
				return fmt.Errorf("failed to create genesis block: %w", err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load latest block: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.accountsMu.Lock()
	s.accounts = accounts
	s.accountsMu.Unlock()

	s.bus.Start()
	s.initialized.Store(true)
	slog.Debug("Simulator initialized", "chainID", s.opts.ChainID, "accounts", len(accounts))
	return nil
}

func (s *Simulator) seedAccounts(tx *gorm.DB) ([]models.Account, error) {
	balance := new(big.Int).Mul(new(big.Int).SetUint64(s.opts.InitialBalanceEther), weiPerEther)
	accounts := make([]models.Account, 0, s.opts.Accounts)
	for i := range s.opts.Accounts {
		address, err := randomAddress()
		if err != nil {
			return nil, fmt.Errorf("failed to generate account: %w", err)
		}
		accounts = append(accounts, models.Account{
			Address: address,
			Balance: balance.String(),
			Ordinal: i,
		})
	}
	if err := tx.Create(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to store accounts: %w", err)
	}
	return accounts, nil
}

// Close stops event delivery. The database is owned by the caller.
func (s *Simulator) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.bus.Stop()
}

func (s *Simulator) Accounts() []string {
	s.accountsMu.RLock()
	defer s.accountsMu.RUnlock()
	out := make([]string, len(s.accounts))
	copy(out, s.accounts)
	return out
}

func (s *Simulator) OnData(fn func(data any)) func() {
	return s.bus.Subscribe(func(event events.Event) {
		switch data := event.(type) {
		case events.DataEvent:
			fn(data.Payload)
		case events.DataBatchEvent:
			for _, payload := range data.Payloads {
				fn(payload)
			}
		}
	})
}

func (s *Simulator) SendAsync(ctx context.Context, req *jsonrpc.Request) <-chan provider.Result {
	return provider.Async(ctx, func(ctx context.Context) (*jsonrpc.Response, error) {
		return s.handle(ctx, req)
	})
}

func (s *Simulator) handle(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	if req == nil || req.Method == "" {
		var id json.RawMessage
		if req != nil {
			id = req.ID
		}
		return jsonrpc.NewError(id, jsonrpc.CodeInvalidRequest, "invalid request"), nil
	}
	if !s.initialized.Load() {
		return nil, ErrNotInitialized
	}
	handler, ok := s.handlers[req.Method]
	if !ok {
		return jsonrpc.NewError(req.ID, jsonrpc.CodeMethodNotFound, fmt.Sprintf("the method %s does not exist/is not available", req.Method)), nil
	}
	params, err := req.ParamsArray()
	if err != nil {
		return jsonrpc.NewError(req.ID, jsonrpc.CodeInvalidParams, err.Error()), nil
	}

	result, err := handler(ctx, params)
	if err != nil {
		var rpcErr *jsonrpc.Error
		if errors.As(err, &rpcErr) {
			return &jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: req.ID, Error: rpcErr}, nil
		}
		return nil, err
	}
	return jsonrpc.NewResult(req.ID, result)
}

func (s *Simulator) publish(event events.Event) {
	if !s.bus.Publish(event) {
		slog.Warn("Dropped simulator data event")
	}
}

// ReleaseChannel removes the subscriptions opened on a closed channel.
func (s *Simulator) ReleaseChannel(id string) {
	if id == "" {
		return
	}
	released := 0
	s.subscriptions.Range(func(subscriptionID string, sub subscription) bool {
		if sub.channel == id {
			s.subscriptions.Delete(subscriptionID)
			released++
		}
		return true
	})
	if released > 0 {
		slog.Debug("Released subscriptions", "channel", id, "count", released)
	}
}

func randomAddress() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(keccak(key)[12:]), nil
}

func keccak(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}
