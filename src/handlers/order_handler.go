package handlers

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"lob-engine/src/config"
	"lob-engine/src/engine"
	"lob-engine/src/models"
	"lob-engine/src/sequencer"
)

type OrderHandler struct {
	Sequencer    *sequencer.Sequencer
	StartTime    time.Time
	defaultDepth int
	maxDepth     int
}

func NewOrderHandler(seq *sequencer.Sequencer, cfg config.OrderBookConfig) *OrderHandler {
	defaultDepth := cfg.DefaultDepth
	if defaultDepth <= 0 {
		defaultDepth = 10
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 1000
	}
	return &OrderHandler{
		Sequencer:    seq,
		StartTime:    time.Now(),
		defaultDepth: defaultDepth,
		maxDepth:     maxDepth,
	}
}

func (h *OrderHandler) SubmitOrder(c *fiber.Ctx) error {
	var req models.SubmitOrderRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn().
			Err(err).
			Str("ip", c.IP()).
			Str("path", c.Path()).
			Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	cmd, err := newOrderCommand(&req)
	if err != nil {
		log.Warn().
			Err(err).
			Str("side", req.Side).
			Str("type", req.Type).
			Str("ip", c.IP()).
			Msg("Invalid order request")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: err.Error(),
		})
	}

	log.Info().
		Str("order_id", cmd.OrderID).
		Str("side", string(cmd.Side)).
		Str("type", string(cmd.Type)).
		Int64("price", cmd.Price).
		Int64("quantity", cmd.Quantity).
		Str("ip", c.IP()).
		Msg("Order submitted")

	result, err := h.Sequencer.Execute(c.UserContext(), cmd)
	if err != nil {
		return h.engineError(c, cmd, err)
	}

	// edge case: duplicate live id is the only rejection left after validation
	if !result.Accepted {
		return c.Status(fiber.StatusConflict).JSON(models.ErrorResponse{
			Error: "Order rejected: order id " + cmd.OrderID + " is already live",
		})
	}

	response := orderResponse(result)

	log.Info().
		Str("order_id", cmd.OrderID).
		Str("status", response.Status).
		Int64("filled_quantity", response.FilledQuantity).
		Int64("remaining_quantity", response.RemainingQuantity).
		Int("trades_count", len(result.Trades)).
		Msg("Order processed")

	switch engine.OrderStatus(response.Status) {
	case engine.StatusResting:
		response.Message = "Order added to book"
		return c.Status(fiber.StatusCreated).JSON(response)
	case engine.StatusPartialFill:
		return c.Status(fiber.StatusAccepted).JSON(response)
	}
	return c.Status(fiber.StatusOK).JSON(response)
}

func (h *OrderHandler) ModifyOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")

	var req models.ModifyOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	side, ok := engine.ParseSide(req.Side)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid modify: side must be BUY or SELL",
		})
	}
	if req.Price <= 0 || req.Quantity <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid modify: price and quantity must be positive",
		})
	}

	cmd := engine.Command{
		Kind:     engine.CommandModify,
		OrderID:  orderID,
		Side:     side,
		Price:    req.Price,
		Quantity: req.Quantity,
	}
	result, err := h.Sequencer.Execute(c.UserContext(), cmd)
	if err != nil {
		return h.engineError(c, cmd, err)
	}

	if !result.Accepted {
		log.Warn().
			Str("order_id", orderID).
			Str("side", req.Side).
			Msg("Modify order: order not found, already done, or side mismatch")
		return c.Status(fiber.StatusConflict).JSON(models.ErrorResponse{
			Error: "Cannot modify: order not live on side " + req.Side,
		})
	}

	log.Info().
		Str("order_id", orderID).
		Int64("price", req.Price).
		Int64("quantity", req.Quantity).
		Int("trades_count", len(result.Trades)).
		Msg("Order modified")

	return c.Status(fiber.StatusOK).JSON(orderResponse(result))
}

func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")

	cmd := engine.Command{Kind: engine.CommandCancel, OrderID: orderID}
	result, err := h.Sequencer.Execute(c.UserContext(), cmd)
	if err != nil {
		return h.engineError(c, cmd, err)
	}

	if !result.Accepted {
		log.Warn().
			Str("order_id", orderID).
			Str("ip", c.IP()).
			Msg("Cancel order: order not found or already done")
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Order not found or already done",
		})
	}

	log.Info().
		Str("order_id", orderID).
		Str("ip", c.IP()).
		Msg("Order cancelled")

	return c.Status(fiber.StatusOK).JSON(models.CancelOrderResponse{
		OrderID: orderID,
		Status:  "CANCELLED",
	})
}

func (h *OrderHandler) GetOrderStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")

	var (
		order engine.Order
		found bool
	)
	err := h.Sequencer.Query(c.UserContext(), func(m *engine.Matcher) error {
		order, found = m.Order(orderID)
		return nil
	})
	if err != nil {
		return h.engineError(c, engine.Command{Kind: "QUERY", OrderID: orderID}, err)
	}

	if !found {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Order not found",
		})
	}

	return c.Status(fiber.StatusOK).JSON(models.OrderStatusResponse{
		OrderID:        order.ID,
		Side:           string(order.Side),
		Type:           string(order.Type),
		Price:          order.Price,
		Quantity:       order.Quantity,
		FilledQuantity: order.FilledQuantity(),
		Leaves:         order.Leaves,
		Status:         string(order.Status()),
	})
}

func (h *OrderHandler) GetOrderBook(c *fiber.Ctx) error {
	depth, err := strconv.Atoi(c.Query("depth", strconv.Itoa(h.defaultDepth)))
	if err != nil || depth <= 0 {
		depth = h.defaultDepth
	}

	// edge case: enforce maximum depth limit
	if depth > h.maxDepth {
		depth = h.maxDepth
	}

	var book engine.BookSnapshot
	err = h.Sequencer.Query(c.UserContext(), func(m *engine.Matcher) error {
		book = m.Snapshot(depth)
		return nil
	})
	if err != nil {
		return h.engineError(c, engine.Command{Kind: engine.CommandPrint}, err)
	}

	return c.Status(fiber.StatusOK).JSON(models.OrderBookResponse{
		Timestamp: time.Now().UnixMilli(),
		Sells:     levelInfos(book.Sells),
		Buys:      levelInfos(book.Buys),
	})
}

// SubmitCommands applies a text body of command lines, one per line, in
// order. Each line gets its own result; malformed lines do not stop the rest.
func (h *OrderHandler) SubmitCommands(c *fiber.Ctx) error {
	body := strings.TrimSpace(string(c.Body()))
	if body == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: no commands",
		})
	}

	lines := strings.Split(body, "\n")
	results := make([]models.CommandResult, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		entry := models.CommandResult{Line: line}

		result, err := h.Sequencer.Submit(c.UserContext(), line)
		switch {
		case errors.Is(err, engine.ErrMalformedCommand):
			entry.Error = err.Error()
		case err != nil:
			return h.engineError(c, engine.Command{Kind: "LINE"}, err)
		default:
			entry.Accepted = result.Accepted
			entry.Trades = tradeInfos(result.Trades)
			entry.Output = renderOutput(result)
		}
		results = append(results, entry)
	}

	return c.Status(fiber.StatusOK).JSON(models.CommandsResponse{Results: results})
}

func (h *OrderHandler) HealthCheck(c *fiber.Ctx) error {
	uptime := time.Since(h.StartTime).Seconds()
	stats := h.Sequencer.Stats()

	status, code := "healthy", fiber.StatusOK
	if h.Sequencer.Halted() {
		status, code = "halted", fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(models.HealthResponse{
		Status:          status,
		UptimeSeconds:   int64(uptime),
		OrdersProcessed: stats.Commands,
	})
}

func (h *OrderHandler) Metrics(c *fiber.Ctx) error {
	stats := h.Sequencer.Stats()
	response := models.MetricsResponse{
		CommandsReceived:  stats.Commands,
		CommandsAccepted:  stats.Accepted,
		CommandsRejected:  stats.Rejected,
		CommandsMalformed: stats.Malformed,
		TradesExecuted:    stats.Trades,
		QueueDepth:        h.Sequencer.QueueLen(),
	}

	// edge case: book figures are unavailable once the engine halted
	_ = h.Sequencer.Query(c.UserContext(), func(m *engine.Matcher) error {
		response.BuyLevels = m.Depth(engine.SideBuy)
		response.SellLevels = m.Depth(engine.SideSell)
		response.ArenaOrders, response.ArenaBlocks = m.ArenaSize()
		return nil
	})

	return c.Status(fiber.StatusOK).JSON(response)
}

func (h *OrderHandler) engineError(c *fiber.Ctx, cmd engine.Command, err error) error {
	switch {
	case errors.Is(err, engine.ErrMalformedCommand):
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Warn().
			Err(err).
			Str("kind", string(cmd.Kind)).
			Str("order_id", cmd.OrderID).
			Msg("Request abandoned before the engine applied it")
		return c.Status(fiber.StatusRequestTimeout).JSON(models.ErrorResponse{Error: "Request cancelled"})
	case errors.Is(err, sequencer.ErrStopped), engine.IsFatal(err):
		log.Error().
			Err(err).
			Str("kind", string(cmd.Kind)).
			Str("order_id", cmd.OrderID).
			Msg("Engine unavailable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{Error: "Matching engine unavailable"})
	}
	log.Error().
		Err(err).
		Str("kind", string(cmd.Kind)).
		Msg("Error applying command")
	return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
		Error: "Internal server error",
	})
}

func orderResponse(result *engine.Result) models.OrderResponse {
	response := models.OrderResponse{
		OrderID: result.Command.OrderID,
		Trades:  tradeInfos(result.Trades),
	}
	if result.Order != nil {
		response.Status = string(result.Order.Status())
		response.FilledQuantity = result.Order.FilledQuantity()
		if !result.Order.Done {
			response.RemainingQuantity = result.Order.Leaves
		}
	}
	return response
}

func tradeInfos(trades []engine.Trade) []models.TradeInfo {
	if len(trades) == 0 {
		return nil
	}
	infos := make([]models.TradeInfo, 0, len(trades))
	for _, trade := range trades {
		infos = append(infos, models.TradeInfo{
			RestingOrderID:  trade.RestingOrderID,
			RestingPrice:    trade.RestingPrice,
			IncomingOrderID: trade.IncomingOrderID,
			IncomingPrice:   trade.IncomingPrice,
			Quantity:        trade.Quantity,
		})
	}
	return infos
}

func levelInfos(levels []engine.OrderBookSnapshot) []models.PriceLevelInfo {
	infos := make([]models.PriceLevelInfo, 0, len(levels))
	for _, level := range levels {
		infos = append(infos, models.PriceLevelInfo{
			Price:    level.Price,
			Quantity: level.Quantity,
		})
	}
	return infos
}

// renderOutput produces the lines the text protocol would print for result.
func renderOutput(result *engine.Result) []string {
	var buf bytes.Buffer
	reporter := engine.NewTextReporter(&buf)
	for _, trade := range result.Trades {
		reporter.ReportTrade(trade)
	}
	if result.Book != nil {
		reporter.ReportBook(*result.Book)
	}
	if err := reporter.Flush(); err != nil || buf.Len() == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
}

func newOrderCommand(req *models.SubmitOrderRequest) (engine.Command, error) {
	side, ok := engine.ParseSide(req.Side)
	if !ok {
		return engine.Command{}, &ValidationError{Message: "Invalid order: side must be BUY or SELL"}
	}

	orderType, ok := engine.ParseOrderType(req.Type)
	if !ok {
		return engine.Command{}, &ValidationError{Message: "Invalid order: type must be IOC, GFD or MKT"}
	}

	if req.Quantity <= 0 {
		return engine.Command{}, &ValidationError{Message: "Invalid order: quantity must be positive"}
	}

	if req.Price <= 0 {
		return engine.Command{}, &ValidationError{Message: "Invalid order: price must be positive"}
	}

	// edge case: ids are single tokens in the line protocol
	if strings.ContainsAny(req.OrderID, " \t\r\n") {
		return engine.Command{}, &ValidationError{Message: "Invalid order: id must not contain whitespace"}
	}

	orderID := req.OrderID
	if orderID == "" {
		orderID = uuid.New().String()
	}

	return engine.Command{
		Kind:     engine.CommandNew,
		OrderID:  orderID,
		Side:     side,
		Type:     orderType,
		Price:    req.Price,
		Quantity: req.Quantity,
	}, nil
}

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
