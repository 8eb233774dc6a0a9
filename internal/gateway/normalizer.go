// Package gateway turns provider-specific payment responses into a common
// PaymentConfirmation. Only the provider calls are retried; mapping is pure.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/cart"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/retry"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/util"

	"go.uber.org/zap"
)

// Config holds normalizer settings
type Config struct {
	LookupTimeout   time.Duration
	CaptureTimeout  time.Duration
	DefaultCurrency string
}

// Normalizer produces PaymentConfirmations for every supported gateway
type Normalizer struct {
	card   CardClient
	wallet WalletClient
	bank   BankTransferSource
	exec   *retry.Executor
	cfg    Config
	logger *zap.Logger
}

// NewNormalizer creates a new gateway normalizer
func NewNormalizer(card CardClient, wallet WalletClient, bank BankTransferSource, exec *retry.Executor, cfg Config) *Normalizer {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 10 * time.Second
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = 30 * time.Second
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "GBP"
	}
	return &Normalizer{
		card:   card,
		wallet: wallet,
		bank:   bank,
		exec:   exec,
		cfg:    cfg,
		logger: util.GetLogger(),
	}
}

// Normalize dispatches to the adapter for kind
func (n *Normalizer) Normalize(ctx context.Context, kind models.GatewayKind, reference string, snapshot *cart.Snapshot) (*models.PaymentConfirmation, error) {
	ctx, span := util.StartSpan(ctx, "Normalizer.Normalize")
	defer span.End()

	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}()

	switch kind {
	case models.GatewayCardSession:
		return n.CardSession(ctx, reference)
	case models.GatewayCardIntent:
		return n.CardIntent(ctx, reference, snapshot)
	case models.GatewayWallet:
		return n.Wallet(ctx, reference)
	case models.GatewayBankTransfer:
		return n.BankTransfer(ctx, reference, snapshot)
	default:
		return nil, fmt.Errorf("unsupported gateway kind %q", kind)
	}
}

// call runs one provider request through the retry executor with a per-attempt timeout
func call[T any](ctx context.Context, n *Normalizer, operation string, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	return retry.Do(ctx, n.exec, operation, retry.DefaultClassifier, func(ctx context.Context) (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(attemptCtx)
	})
}

// classifyProviderError converts a client error into a typed normalization error
func classifyProviderError(kind models.GatewayKind, reference string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Status == 404 {
		return &Error{Kind: ErrNotFound, Gateway: kind, Reference: reference, Err: err}
	}
	if errors.Is(err, ErrNotFound) {
		return &Error{Kind: ErrNotFound, Gateway: kind, Reference: reference, Err: err}
	}
	return &Error{Kind: ErrProviderUnavailable, Gateway: kind, Reference: reference, Err: err}
}

func notPaid(kind models.GatewayKind, reference, detail string) error {
	return &Error{Kind: ErrNotPaid, Gateway: kind, Reference: reference, Detail: detail}
}

func normalizeCurrency(c, fallback string) string {
	if c == "" {
		return strings.ToUpper(fallback)
	}
	return strings.ToUpper(c)
}

func copyMetadata(meta map[string]string) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// warnOnBadManifest logs metadata that carries a manifest the reconciler will not be able to read
func (n *Normalizer) warnOnBadManifest(kind models.GatewayKind, reference string, meta map[string]string) {
	if _, err := cart.DecodeManifest(meta); err != nil && !errors.Is(err, cart.ErrNoManifest) {
		n.logger.Warn("Provider metadata carries an unreadable cart manifest",
			zap.String("gateway", string(kind)),
			zap.String("reference", reference),
			zap.Error(err))
	}
}
