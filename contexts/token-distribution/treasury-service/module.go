package treasuryservice

import (
	"context"
	"log/slog"

	httpadapter "tranche/contexts/token-distribution/treasury-service/adapters/http"
	"tranche/contexts/token-distribution/treasury-service/adapters/memory"
	"tranche/contexts/token-distribution/treasury-service/application"
	"tranche/contexts/token-distribution/treasury-service/ports"
)

// PoolAddress is the account the vesting engine pays releases from.
const PoolAddress = "treasury:vesting-pool"

// VestingSpender is the allowance principal the vesting engine spends as.
const VestingSpender = "vesting-engine"

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Repository ports.Repository
	Clock      ports.Clock
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:   deps.Repository,
		Clock:  deps.Clock,
		Guard:  application.NewAccountGuard(),
		Logger: deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Service: service,
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository: store,
		Clock:      store,
		Logger:     logger,
	})
	module.Store = store
	return module
}

// PoolTransferrer pays vesting releases out of the treasury pool. It
// satisfies the vesting engine's transfer boundary without that module
// importing this one.
type PoolTransferrer struct {
	Service application.Service
}

func (t PoolTransferrer) Transfer(ctx context.Context, recipient string, amount uint64) error {
	return t.Service.Transfer(ctx, application.TransferCommand{
		Spender: VestingSpender,
		From:    PoolAddress,
		To:      recipient,
		Amount:  amount,
	})
}
