package models

type SubmitOrderRequest struct {
	OrderID  string `json:"id,omitempty"` // generated when empty
	Side     string `json:"side"`
	Type     string `json:"type"`
	Price    int64  `json:"price"` // price in ticks
	Quantity int64  `json:"quantity"`
}

type ModifyOrderRequest struct {
	Side     string `json:"side"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

type TradeInfo struct {
	RestingOrderID  string `json:"resting_order_id"`
	RestingPrice    int64  `json:"resting_price"`
	IncomingOrderID string `json:"incoming_order_id"`
	IncomingPrice   int64  `json:"incoming_price"`
	Quantity        int64  `json:"quantity"`
}

type OrderResponse struct {
	OrderID           string      `json:"order_id"`
	Status            string      `json:"status"`
	Message           string      `json:"message,omitempty"`
	FilledQuantity    int64       `json:"filled_quantity"`
	RemainingQuantity int64       `json:"remaining_quantity"`
	Trades            []TradeInfo `json:"trades,omitempty"`
}

type CancelOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type OrderBookResponse struct {
	Timestamp int64            `json:"timestamp"` // unix timestamp in milliseconds
	Sells     []PriceLevelInfo `json:"sells"`     // sorted ascending (lowest first)
	Buys      []PriceLevelInfo `json:"buys"`      // sorted descending (highest first)
}

type PriceLevelInfo struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"` // live quantity at this price
}

type OrderStatusResponse struct {
	OrderID        string `json:"order_id"`
	Side           string `json:"side"`
	Type           string `json:"type"`
	Price          int64  `json:"price"`
	Quantity       int64  `json:"quantity"`
	FilledQuantity int64  `json:"filled_quantity"`
	Leaves         int64  `json:"leaves"`
	Status         string `json:"status"`
}

type CommandResult struct {
	Line     string      `json:"line"`
	Accepted bool        `json:"accepted"`
	Error    string      `json:"error,omitempty"`
	Trades   []TradeInfo `json:"trades,omitempty"`
	Output   []string    `json:"output,omitempty"` // TRADE and PRINT lines
}

type CommandsResponse struct {
	Results []CommandResult `json:"results"`
}

type HealthResponse struct {
	Status          string `json:"status"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	OrdersProcessed int64  `json:"orders_processed"`
}

type MetricsResponse struct {
	CommandsReceived  int64 `json:"commands_received"`
	CommandsAccepted  int64 `json:"commands_accepted"`
	CommandsRejected  int64 `json:"commands_rejected"`
	CommandsMalformed int64 `json:"commands_malformed"`
	TradesExecuted    int64 `json:"trades_executed"`
	BuyLevels         int   `json:"buy_levels"`
	SellLevels        int   `json:"sell_levels"`
	ArenaOrders       int   `json:"arena_orders"`
	ArenaBlocks       int   `json:"arena_blocks"`
	QueueDepth        int   `json:"queue_depth"`
}
