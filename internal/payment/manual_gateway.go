package payment

import (
	"context"
	"fmt"

	"payhub-be/internal/logger"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// manualGateway settles cash-style payments on the spot. There is no
// provider and therefore no callback.
type manualGateway struct {
	node *snowflake.Node
}

func NewManualGateway(nodeID int64) (Gateway, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("manual gateway: %w", err)
	}
	return &manualGateway{node: node}, nil
}

func (g *manualGateway) Method() Method { return MethodManual }

func (g *manualGateway) Pay(ctx context.Context, req *PaymentRequest) *PaymentResult {
	txID := "MANUAL-" + g.node.Generate().String()

	logger.ForPayment(ctx, req.PaymentID, req.OrderID).Info("manual payment recorded",
		zap.String("transaction_id", txID),
	)

	return &PaymentResult{
		IsSuccess:     true,
		PaymentID:     req.PaymentID,
		TransactionID: txID,
		Status:        StatusCompleted,
		Message:       msg(req.Locale, msgPaymentCompleted),
		ProviderRef:   txID,
	}
}

func (g *manualGateway) VerifyCallback(*Callback) error {
	return ErrCallbackUnsupported
}
