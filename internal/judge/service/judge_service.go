package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jsjudge/internal/judge/model"
	"jsjudge/internal/judge/repository"
	"jsjudge/internal/judge/sandbox"
	"jsjudge/internal/judge/sandbox/result"
	appErr "jsjudge/pkg/errors"
	"jsjudge/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxInFlight       = 8
	defaultSlotWait          = 2 * time.Second
	defaultSubmissionTimeout = 5 * time.Minute
)

// Service accepts executions, runs them on the sandbox and tracks their status.
type Service struct {
	executor          sandbox.Executor
	statusRepo        *repository.StatusRepository
	publisher         repository.StatusEventPublisher
	submissionTimeout time.Duration
	statusTimeout     time.Duration
	slotWait          time.Duration
	sem               chan struct{}

	// statusMu serializes read-modify-write cycles on stored statuses.
	statusMu sync.Mutex

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// Config holds service dependencies and settings.
type Config struct {
	Executor   sandbox.Executor
	StatusRepo *repository.StatusRepository
	// Publisher is optional; when set every terminal status is announced.
	Publisher         repository.StatusEventPublisher
	MaxInFlight       int
	SlotWait          time.Duration
	SubmissionTimeout time.Duration
	StatusTimeout     time.Duration
}

// NewService creates a new judge service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.StatusRepo == nil {
		return nil, fmt.Errorf("status repository is required")
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaultMaxInFlight
	}
	if cfg.SlotWait <= 0 {
		cfg.SlotWait = defaultSlotWait
	}
	if cfg.SubmissionTimeout <= 0 {
		cfg.SubmissionTimeout = defaultSubmissionTimeout
	}
	return &Service{
		executor:          cfg.Executor,
		statusRepo:        cfg.StatusRepo,
		publisher:         cfg.Publisher,
		submissionTimeout: cfg.SubmissionTimeout,
		statusTimeout:     cfg.StatusTimeout,
		slotWait:          cfg.SlotWait,
		sem:               make(chan struct{}, cfg.MaxInFlight),
		cancels:           make(map[string]context.CancelFunc),
	}, nil
}

// Run judges req synchronously and returns the verdict.
func (s *Service) Run(ctx context.Context, req model.ExecutionRequest) (result.SubmissionVerdict, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.submissionTimeout)
	defer cancel()
	id, err := s.admit(ctx, req, cancel)
	if err != nil {
		return result.SubmissionVerdict{}, err
	}
	defer s.releaseSlot()
	defer s.untrackCancel(id)

	return s.execute(runCtx, id, req)
}

// Submit queues req for background judging and returns its submission id.
// The verdict is read back through Status.
func (s *Service) Submit(ctx context.Context, req model.ExecutionRequest) (string, error) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.submissionTimeout)
	id, err := s.admit(ctx, req, cancel)
	if err != nil {
		cancel()
		return "", err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.releaseSlot()
		defer cancel()
		defer s.untrackCancel(id)
		_, _ = s.execute(runCtx, id, req)
	}()
	return id, nil
}

// Cancel stops a running submission. Finished or unknown ids report NotFound.
func (s *Service) Cancel(ctx context.Context, submissionID string) error {
	s.mu.Lock()
	cancel, ok := s.cancels[submissionID]
	s.mu.Unlock()
	if !ok {
		return appErr.New(appErr.SubmissionNotFound).WithMessage("no running submission with this id")
	}
	cancel()
	logger.Info(ctx, "submission cancel requested", zap.String("submission_id", submissionID))
	return nil
}

// Status returns the latest stored status of a submission.
func (s *Service) Status(ctx context.Context, submissionID string) (model.ExecutionStatus, error) {
	return s.statusRepo.Get(ctx, submissionID)
}

// Running returns the number of submissions currently being judged.
func (s *Service) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cancels)
}

// Wait blocks until background submissions finish or ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// admit reserves the submission id together with its cancel func, takes a
// slot and stores the running status. On success the caller owns the slot
// and the reservation.
func (s *Service) admit(ctx context.Context, req model.ExecutionRequest, cancel context.CancelFunc) (string, error) {
	id := req.SubmissionID
	if id == "" {
		id = uuid.NewString()
	}
	if !s.reserve(id, cancel) {
		return "", errSubmissionIDInUse()
	}
	if req.SubmissionID != "" {
		if _, err := s.statusRepo.Get(ctx, id); err == nil {
			s.untrackCancel(id)
			return "", errSubmissionIDInUse()
		}
	}
	if err := s.acquireSlot(ctx); err != nil {
		s.untrackCancel(id)
		return "", err
	}
	running := model.ExecutionStatus{
		SubmissionID: id,
		Status:       sandbox.StatusRunning,
		Progress:     model.Progress{TotalTests: len(req.TestCases)},
		Timestamps:   model.Timestamps{ReceivedAt: time.Now().UnixMilli()},
	}
	if err := s.persistStatus(ctx, running); err != nil {
		s.releaseSlot()
		s.untrackCancel(id)
		return "", err
	}
	return id, nil
}

func errSubmissionIDInUse() error {
	return appErr.InvalidSubmissionError("submission id is already in use")
}

func (s *Service) execute(ctx context.Context, id string, req model.ExecutionRequest) (result.SubmissionVerdict, error) {
	ctx = logger.WithSubmissionID(ctx, id)
	verdict, err := s.executor.Execute(ctx, req.Submission(id))
	if err != nil {
		err = s.handleFailure(ctx, id, err)
		s.publishFinal(ctx, id)
		return result.SubmissionVerdict{}, err
	}
	s.finish(ctx, id, verdict)
	s.publishFinal(ctx, id)
	return verdict, nil
}

// reserve registers cancel under id unless the id is already being judged.
func (s *Service) reserve(id string, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.cancels[id]; taken {
		return false
	}
	s.cancels[id] = cancel
	return true
}

func (s *Service) untrackCancel(id string) {
	s.mu.Lock()
	delete(s.cancels, id)
	s.mu.Unlock()
}

func (s *Service) acquireSlot(ctx context.Context) error {
	timer := time.NewTimer(s.slotWait)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return appErr.Wrap(ctx.Err(), appErr.GetCode(ctx.Err()))
	case <-timer.C:
		return appErr.New(appErr.TooManyRequests).WithMessage("judge queue is full")
	}
}

func (s *Service) releaseSlot() {
	select {
	case <-s.sem:
	default:
	}
}
