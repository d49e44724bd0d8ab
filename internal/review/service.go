// Package review is the public operation surface of the specimen review
// engine. It composes the scorer, ledger, workflow and export gate over the
// store's versioned update: every write presents a version, and every
// failure leaves the stored record untouched.
package review

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/herbarium-review/internal/config"
	"github.com/sells-group/herbarium-review/internal/metrics"
	"github.com/sells-group/herbarium-review/internal/model"
	"github.com/sells-group/herbarium-review/internal/roster"
	"github.com/sells-group/herbarium-review/internal/store"
	"github.com/sells-group/herbarium-review/internal/validator"
)

// ErrInvalidPayload marks a malformed ingestion payload.
var ErrInvalidPayload = errors.New("review: invalid extraction payload")

// Service runs review operations. It holds no record state of its own and
// is safe for concurrent use.
type Service struct {
	store     store.Store
	roster    *roster.Roster
	validator validator.Validator
	quality   config.QualityConfig
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithValidator sets the taxonomic/locality validator. The default is
// validator.Nop.
func WithValidator(v validator.Validator) Option {
	return func(s *Service) { s.validator = v }
}

// WithClock overrides the time source used for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service.
func New(st store.Store, r *roster.Roster, quality config.QualityConfig, opts ...Option) *Service {
	s := &Service{
		store:     st,
		roster:    r,
		validator: validator.Nop{},
		quality:   quality,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// update runs mutate under the store's compare-and-swap. A zero expected
// version means "the version just read", for callers that hold no copy.
func (s *Service) update(ctx context.Context, id string, expected int64, mutate store.Mutator) (*model.Specimen, error) {
	if expected == 0 {
		cur, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		expected = cur.Version
	}
	return s.store.Update(ctx, id, expected, mutate)
}

// resolve maps an actor id to its roles.
func (s *Service) resolve(id string) (model.Actor, error) {
	if s.roster == nil {
		return model.Actor{}, model.NewError(model.KindUnauthorizedActor, "", "no actor roster configured")
	}
	return s.roster.Resolve(id)
}

// finish records metrics and logs the outcome of one operation.
func finish(op string, id string, start time.Time, err error, fields ...zap.Field) {
	metrics.Observe(op, start, err)

	log := zap.L().With(zap.String("operation", op), zap.String("specimen_id", id))
	switch {
	case err == nil:
		log.Info("review: "+op, fields...)
	case model.KindOf(err) != "":
		log.Warn("review: "+op+" rejected", append(fields, zap.Error(err))...)
	default:
		log.Error("review: "+op+" failed", append(fields, zap.Error(err))...)
	}
}
