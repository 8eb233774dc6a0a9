package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/util"

	"go.uber.org/zap"
)

// SequenceSource hands out per-day order sequence numbers
type SequenceSource interface {
	NextOrderSequence(ctx context.Context, day string) (int64, error)
}

// OrderNumberGenerator produces human-facing order numbers PREFIX-YYYYMMDD-NNNN
type OrderNumberGenerator struct {
	seq    SequenceSource
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

// NewOrderNumberGenerator creates a new generator; seq may be nil
func NewOrderNumberGenerator(seq SequenceSource, prefix string) *OrderNumberGenerator {
	if prefix == "" {
		prefix = "VPC"
	}
	return &OrderNumberGenerator{
		seq:    seq,
		prefix: prefix,
		now:    time.Now,
		logger: util.GetLogger(),
	}
}

// Next returns a new order number. When the sequence is unavailable the
// suffix is random and uniqueness falls back to the store constraint.
func (g *OrderNumberGenerator) Next(ctx context.Context) string {
	day := g.now().UTC().Format("20060102")

	var n int64
	if g.seq != nil {
		seq, err := g.seq.NextOrderSequence(ctx, day)
		if err == nil {
			n = seq
		} else {
			g.logger.Warn("Order sequence unavailable, using random suffix", zap.Error(err))
		}
	}
	if n == 0 {
		n = int64(rand.Intn(9000) + 1000)
	}

	return fmt.Sprintf("%s-%s-%04d", g.prefix, day, n%10000)
}
