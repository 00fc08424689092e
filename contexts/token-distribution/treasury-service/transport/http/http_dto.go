package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type DepositRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

type ApproveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  uint64 `json:"amount"`
}

type TransferRequest struct {
	Spender string `json:"spender,omitempty"`
	From    string `json:"from"`
	To      string `json:"to"`
	Amount  uint64 `json:"amount"`
}

type AccountDTO struct {
	Address   string `json:"address"`
	Balance   uint64 `json:"balance"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type AllowanceDTO struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Remaining uint64 `json:"remaining"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type PayoutDTO struct {
	PayoutID      string `json:"payout_id"`
	Recipient     string `json:"recipient"`
	ScheduleID    uint64 `json:"schedule_id"`
	Amount        uint64 `json:"amount"`
	SourceEventID string `json:"source_event_id,omitempty"`
	RecordedAt    string `json:"recorded_at"`
}
