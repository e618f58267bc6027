package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"linkage/internal/contact/models"
	"linkage/internal/platform/metrics"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/platform/sentinel"
	"linkage/pkg/requestcontext"
)

const (
	defaultMaxAttempts = 5
	defaultRetryDelay  = 10 * time.Millisecond
)

// Service reconciles identify requests against the contact graph.
type Service struct {
	tx          StoreTx
	locker      IdentifierLocker
	publisher   EventPublisher
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	maxAttempts int
	retryDelay  time.Duration
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLocker adds an application-level lock taken before the transaction starts.
func WithLocker(locker IdentifierLocker) Option {
	return func(s *Service) {
		s.locker = locker
	}
}

func WithPublisher(publisher EventPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithRetry bounds how often a transaction is replayed after a serialization failure.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(s *Service) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if baseDelay >= 0 {
			s.retryDelay = baseDelay
		}
	}
}

// New constructs a Service. The transactional store is required.
func New(tx StoreTx, opts ...Option) (*Service, error) {
	if tx == nil {
		return nil, errors.New("store transaction is required")
	}
	s := &Service{
		tx:          tx,
		logger:      slog.Default(),
		tracer:      otel.Tracer("linkage/contact/service"),
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Identify matches ids against known contacts, creating and merging contacts as
// needed, and returns the consolidated chain the request belongs to.
func (s *Service) Identify(ctx context.Context, ids models.Identifiers) (*models.Chain, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "contact.Identify")
	defer span.End()

	if ids.Empty() {
		s.metrics.ObserveIdentify("invalid", time.Since(start))
		return nil, dErrors.New(dErrors.CodeValidation, "either email or phoneNumber must be provided")
	}

	if s.locker != nil {
		release, err := s.locker.Lock(ctx, ids.LockKeys())
		if err != nil {
			s.metrics.ObserveIdentify("error", time.Since(start))
			span.RecordError(err)
			span.SetStatus(codes.Error, "identifier lock")
			return nil, s.translate(err, "acquire identifier lock")
		}
		defer release()
	}

	var result *reconciliation
	err := s.withRetry(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
		return s.tx.RunLocked(ctx, ids.LockKeys(), func(store Store) error {
			r, err := reconcile(ctx, store, ids, now)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		s.metrics.ObserveIdentify("error", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile")
		s.logger.ErrorContext(ctx, "identify failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, s.translate(err, "reconcile contacts")
	}

	s.record(ctx, result)
	span.SetAttributes(
		attribute.Int64("contact.primary_id", result.chain.PrimaryContactID),
		attribute.Bool("contact.created", result.created != nil),
		attribute.Int("contact.demoted", len(result.demoted)),
	)
	s.metrics.ObserveIdentify(result.outcome(), time.Since(start))
	s.publish(ctx, result.events(requestcontext.Now(ctx)))
	return result.chain, nil
}

// Lookup returns the consolidated chain containing contactID without changing anything.
func (s *Service) Lookup(ctx context.Context, contactID int64) (*models.Chain, error) {
	ctx, span := s.tracer.Start(ctx, "contact.Lookup")
	defer span.End()

	var chain *models.Chain
	err := s.tx.RunInTx(ctx, func(store Store) error {
		contact, err := store.FindByID(ctx, contactID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "contact not found")
			}
			return err
		}
		primary, err := resolvePrimary(ctx, store, models.Candidates{*contact})
		if err != nil {
			return err
		}
		members, err := store.FindChain(ctx, primary.ID)
		if err != nil {
			return err
		}
		chain, err = models.BuildChain(*primary, members)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup")
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.logger.ErrorContext(ctx, "lookup failed",
				"request_id", requestcontext.RequestID(ctx),
				"contact_id", contactID,
				"error", err,
			)
		}
		return nil, s.translate(err, "lookup contact")
	}
	return chain, nil
}

func (s *Service) record(ctx context.Context, r *reconciliation) {
	requestID := requestcontext.RequestID(ctx)
	if r.created != nil {
		s.metrics.IncrementContactsCreated(r.created.LinkPrecedence.String())
		s.logger.InfoContext(ctx, "contact created",
			"request_id", requestID,
			"contact_id", r.created.ID,
			"link_precedence", r.created.LinkPrecedence,
		)
	}
	if len(r.demoted) > 0 {
		s.metrics.RecordMerge(r.relinked)
		s.logger.InfoContext(ctx, "contact chains merged",
			"request_id", requestID,
			"primary_contact_id", r.chain.PrimaryContactID,
			"demoted_primary_ids", r.demoted,
			"relinked", r.relinked,
		)
	}
}

func (s *Service) publish(ctx context.Context, events []models.LinkEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events); err != nil {
		s.metrics.IncrementEventPublishFailures()
		s.logger.WarnContext(ctx, "failed to publish link events",
			"request_id", requestcontext.RequestID(ctx),
			"events", len(events),
			"error", err,
		)
	}
}

// translate maps store and context failures onto domain codes. Coded errors
// pass through, except a missing referenced contact, which is a data-integrity
// fault rather than a caller error.
func (s *Service) translate(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		if de.Code == dErrors.CodeNotFound && errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, msg)
		}
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeStorage, msg)
	}
}
