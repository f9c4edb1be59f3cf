package service

import (
	"context"
	"time"

	"jsjudge/internal/judge/model"
	"jsjudge/internal/judge/sandbox"
	"jsjudge/internal/judge/sandbox/result"
	appErr "jsjudge/pkg/errors"
	"jsjudge/pkg/utils/logger"

	"go.uber.org/zap"
)

func (s *Service) persistStatus(ctx context.Context, status model.ExecutionStatus) error {
	ctxStatus := ctx
	if s.statusTimeout > 0 {
		var cancel context.CancelFunc
		ctxStatus, cancel = context.WithTimeout(ctx, s.statusTimeout)
		defer cancel()
	}
	return s.statusRepo.Save(ctxStatus, status)
}

// ReportStatus records intermediate progress. Terminal states are written
// by the service itself once the verdict is known.
func (s *Service) ReportStatus(ctx context.Context, update sandbox.StatusUpdate) {
	if update.Status != sandbox.StatusRunning {
		return
	}
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	err := s.statusRepo.Update(ctx, update.SubmissionID, func(status *model.ExecutionStatus) {
		if status.Status != sandbox.StatusRunning {
			return
		}
		status.Progress.TotalTests = update.TotalTests
		if update.DoneTests > status.Progress.DoneTests {
			status.Progress.DoneTests = update.DoneTests
		}
	})
	if err != nil {
		logger.Warn(ctx, "update intermediate status failed", zap.Error(err))
	}
}

func (s *Service) finish(ctx context.Context, submissionID string, verdict result.SubmissionVerdict) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	err := s.statusRepo.Update(context.WithoutCancel(ctx), submissionID, func(status *model.ExecutionStatus) {
		status.Status = sandbox.StatusFinished
		status.Verdict = &verdict
		status.Progress = model.Progress{TotalTests: verdict.Summary.Total, DoneTests: verdict.Summary.Total}
		status.Timestamps.FinishedAt = time.Now().UnixMilli()
	})
	if err != nil {
		logger.Warn(ctx, "update final status failed", zap.Error(err))
	}
}

func (s *Service) handleFailure(ctx context.Context, submissionID string, err error) error {
	code := appErr.GetCode(err)
	s.statusMu.Lock()
	// ctx is often the reason for the failure; the status write must outlive it.
	saveErr := s.statusRepo.Update(context.WithoutCancel(ctx), submissionID, func(status *model.ExecutionStatus) {
		status.Status = sandbox.StatusFailed
		status.ErrorCode = int(code)
		status.ErrorMessage = err.Error()
		status.Timestamps.FinishedAt = time.Now().UnixMilli()
	})
	s.statusMu.Unlock()
	if saveErr != nil {
		logger.Warn(ctx, "update failure status failed", zap.Error(saveErr))
	}
	if code.HTTPStatus() >= 500 {
		logger.Error(ctx, "submission failed", zap.Int("code", int(code)), zap.Error(err))
	} else {
		logger.Warn(ctx, "submission rejected", zap.Int("code", int(code)), zap.Error(err))
	}
	return err
}

func (s *Service) publishFinal(ctx context.Context, submissionID string) {
	if s.publisher == nil {
		return
	}
	// The run context may already be canceled; the event must still go out.
	pubCtx := context.WithoutCancel(ctx)
	if s.statusTimeout > 0 {
		var cancel context.CancelFunc
		pubCtx, cancel = context.WithTimeout(pubCtx, s.statusTimeout)
		defer cancel()
	}
	status, err := s.statusRepo.Get(pubCtx, submissionID)
	if err != nil {
		logger.Warn(ctx, "load final status for publishing failed", zap.Error(err))
		return
	}
	if err := s.publisher.PublishFinalStatus(pubCtx, status); err != nil {
		logger.Warn(ctx, "publish final status failed", zap.Error(err))
	}
}
