// Package checkout implements the multi-step checkout pipeline: a strictly
// linear state machine (Billing → Order Review → Payment → Completed) where
// every transition requires local schema validation and a backend
// acknowledgment. There is no backward transition; abandoning checkout
// destroys the session.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/okstore/commerce-client/internal/backend"
	"github.com/okstore/commerce-client/pkg/contracts/domain"
)

// Stage is one step of the checkout pipeline.
type Stage string

const (
	StageBilling     Stage = "billing"
	StageOrderReview Stage = "order_review"
	StagePayment     Stage = "payment"
	StageCompleted   Stage = "completed"
)

var (
	// ErrSubmissionInFlight rejects a duplicate submission for a stage while
	// one is pending. Duplicate concurrent submissions would risk duplicate
	// server-side order creation.
	ErrSubmissionInFlight = errors.New("a submission for this stage is already in flight")

	// ErrWrongStage rejects a submission for a stage the session is not in.
	ErrWrongStage = errors.New("checkout stages must be completed in order")
)

// SubmissionRejectedError is a backend rejection of a stage submission. The
// stage does not advance and already-entered form data is retained.
type SubmissionRejectedError struct {
	Stage  Stage
	Fields []FieldError
	Err    error
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("%s submission rejected: %v", e.Stage, e.Err)
}

func (e *SubmissionRejectedError) Unwrap() error { return e.Err }

// Submitter is the backend surface the pipeline submits stages through.
type Submitter interface {
	SubmitBilling(ctx context.Context, details domain.BillingDetails, verifyToken string) error
	SubmitOrder(ctx context.Context, review domain.OrderReview, verifyToken string) (paymentURL string, err error)
}

// TokenProvider supplies bot-verification tokens keyed by action name. It
// must distinguish "not initialized" from "verification failed".
type TokenProvider interface {
	Token(ctx context.Context, action string) (string, error)
}

// Transition is emitted to observers after every committed stage change.
type Transition struct {
	From Stage     `json:"from"`
	To   Stage     `json:"to"`
	At   time.Time `json:"at"`
}

// Session is one transient checkout run. It holds validated stage data only
// as long as the pipeline is alive; Abandon or completion destroys it.
type Session struct {
	mu         sync.Mutex
	stage      Stage
	inFlight   bool
	billing    *domain.BillingDetails
	terms      bool
	paymentURL string

	submitter Submitter
	tokens    TokenProvider
	observers []func(Transition)
	logger    *slog.Logger
}

// NewSession starts a pipeline at the billing stage.
func NewSession(submitter Submitter, tokens TokenProvider, logger *slog.Logger) *Session {
	return &Session{
		stage:     StageBilling,
		submitter: submitter,
		tokens:    tokens,
		logger:    logger.With(slog.String("component", "checkout_session")),
	}
}

// Stage returns the current pipeline stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Billing returns the validated billing details once stage one succeeded.
func (s *Session) Billing() *domain.BillingDetails {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.billing == nil {
		return nil
	}
	billing := *s.billing
	return &billing
}

// PaymentURL returns the payment location once stage two succeeded.
func (s *Session) PaymentURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paymentURL
}

// TermsAccepted reports whether stage two recorded the terms acceptance.
func (s *Session) TermsAccepted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terms
}

// Observe registers a callback for stage transitions.
func (s *Session) Observe(fn func(Transition)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// SubmitBilling validates and submits the stage-one form. On success the
// pipeline advances to order review. Local validation failure and server
// rejection both leave the stage unchanged without discarding the input.
func (s *Session) SubmitBilling(ctx context.Context, details domain.BillingDetails) error {
	if err := s.begin(StageBilling); err != nil {
		return err
	}
	defer s.end()

	if err := ValidateBilling(details); err != nil {
		s.logger.InfoContext(ctx, "billing validation failed", slog.String("error", err.Error()))
		return err
	}

	token, err := s.tokens.Token(ctx, "checkout_billing")
	if err != nil {
		return err
	}

	if err := s.submitter.SubmitBilling(ctx, details, token); err != nil {
		s.logger.WarnContext(ctx, "billing submission rejected", slog.String("error", err.Error()))
		return &SubmissionRejectedError{Stage: StageBilling, Fields: serverFields(err), Err: err}
	}

	s.mu.Lock()
	s.billing = &details
	s.mu.Unlock()
	s.advance(ctx, StageBilling, StageOrderReview)
	return nil
}

// SubmitReview validates and submits the stage-two form. On success the
// pipeline advances to payment and records the payment location.
func (s *Session) SubmitReview(ctx context.Context, review domain.OrderReview) error {
	if err := s.begin(StageOrderReview); err != nil {
		return err
	}
	defer s.end()

	if err := ValidateReview(review); err != nil {
		s.logger.InfoContext(ctx, "order review validation failed", slog.String("error", err.Error()))
		return err
	}

	token, err := s.tokens.Token(ctx, "checkout_order")
	if err != nil {
		return err
	}

	paymentURL, err := s.submitter.SubmitOrder(ctx, review, token)
	if err != nil {
		s.logger.WarnContext(ctx, "order submission rejected", slog.String("error", err.Error()))
		return &SubmissionRejectedError{Stage: StageOrderReview, Fields: serverFields(err), Err: err}
	}

	s.mu.Lock()
	s.terms = true
	s.paymentURL = paymentURL
	s.mu.Unlock()
	s.advance(ctx, StageOrderReview, StagePayment)
	return nil
}

// Complete marks the external payment flow as finished. Terminal: the order
// is placed and the server has cleared the cart.
func (s *Session) Complete(ctx context.Context) error {
	s.mu.Lock()
	if s.stage != StagePayment {
		stage := s.stage
		s.mu.Unlock()
		return fmt.Errorf("%w: in %s", ErrWrongStage, stage)
	}
	s.mu.Unlock()
	s.advance(ctx, StagePayment, StageCompleted)
	return nil
}

// Abandon destroys the session's transient data. Partially entered data does
// not survive a pipeline restart unless the server persisted it from stage
// one.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = StageBilling
	s.billing = nil
	s.terms = false
	s.paymentURL = ""
}

// begin takes the in-flight guard for the given stage.
func (s *Session) begin(stage Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != stage {
		return fmt.Errorf("%w: in %s, submitted %s", ErrWrongStage, s.stage, stage)
	}
	if s.inFlight {
		return ErrSubmissionInFlight
	}
	s.inFlight = true
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

func (s *Session) advance(ctx context.Context, from, to Stage) {
	s.mu.Lock()
	s.stage = to
	observers := make([]func(Transition), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "checkout stage advanced",
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	transition := Transition{From: from, To: to, At: time.Now()}
	for _, fn := range observers {
		fn(transition)
	}
}

// serverFields extracts field-scoped messages from a backend validation
// rejection, if the error carried any.
func serverFields(err error) []FieldError {
	var vErr *backend.ValidationFailedError
	if !errors.As(err, &vErr) {
		return nil
	}
	var fields []FieldError
	for field, messages := range vErr.Fields {
		for _, msg := range messages {
			fields = append(fields, FieldError{Field: field, Message: msg})
		}
	}
	return fields
}
