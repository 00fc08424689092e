package vestingengine

import (
	"log/slog"

	httpadapter "tranche/contexts/token-distribution/vesting-engine/adapters/http"
	"tranche/contexts/token-distribution/vesting-engine/adapters/memory"
	"tranche/contexts/token-distribution/vesting-engine/application/commands"
	"tranche/contexts/token-distribution/vesting-engine/application/queries"
	"tranche/contexts/token-distribution/vesting-engine/domain/entities"
	"tranche/contexts/token-distribution/vesting-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Schedules ports.ScheduleRepository
	Claims    ports.ClaimRepository
	Transfer  ports.TokenTransferrer
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func NewModule(deps Dependencies) Module {
	commandUseCase := commands.UseCase{
		Schedules: deps.Schedules,
		Claims:    deps.Claims,
		Transfer:  deps.Transfer,
		Outbox:    deps.Outbox,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Locks:     commands.NewRecipientLocks(),
		Logger:    deps.Logger,
	}
	queryUseCase := queries.UseCase{
		Schedules: deps.Schedules,
		Claims:    deps.Claims,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Commands: commandUseCase,
			Queries:  queryUseCase,
			Logger:   deps.Logger,
		},
	}
}

func NewInMemoryModule(
	seed []entities.Schedule,
	transfer ports.TokenTransferrer,
	logger *slog.Logger,
) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Schedules: store,
		Claims:    store,
		Transfer:  transfer,
		Outbox:    store,
		Clock:     store,
		IDGen:     store,
		Logger:    logger,
	})
	module.Store = store
	return module
}
