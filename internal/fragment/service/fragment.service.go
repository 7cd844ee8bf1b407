package service

import (
	"context"
	"errors"
	"fmt"
	"fragmentone/internal/fragment/model"
	"fragmentone/internal/fragment/repository"
	"fragmentone/pkg/logger"
	"fragmentone/pkg/metrics"
	"fragmentone/pkg/validation"
	"fragmentone/socket"
	"strings"
	"time"
)

var ErrInvalid = errors.New("invalid request")

// maxClockSkew bounds how far past the server clock a sweep boundary may be.
const maxClockSkew = 5 * time.Minute

type FragmentService struct {
	Repo    *repository.FragmentRepository
	Hub     *socket.Hub
	Metrics *metrics.Collector
	now     func() time.Time
}

func NewFragmentService(repo *repository.FragmentRepository, hub *socket.Hub, collector *metrics.Collector) *FragmentService {
	return &FragmentService{Repo: repo, Hub: hub, Metrics: collector, now: time.Now}
}

func (s *FragmentService) CreateFragment(ctx context.Context, authorID string, req model.CreateFragmentRequest) (model.Fragment, error) {
	req.Text = strings.TrimSpace(req.Text)
	if err := validation.Struct(req); err != nil {
		return model.Fragment{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	f, err := s.Repo.Append(ctx, authorID, req.Text)
	if err != nil {
		return model.Fragment{}, err
	}

	if s.Metrics != nil {
		s.Metrics.FragmentsAppended.Inc()
	}
	if s.Hub != nil {
		s.Hub.NotifyFragmentAdded(f)
	}
	return f, nil
}

func (s *FragmentService) ListSince(ctx context.Context, since time.Time) ([]model.Fragment, error) {
	return s.Repo.FindSince(ctx, since)
}

func (s *FragmentService) ListByAuthorSince(ctx context.Context, authorID string, since time.Time) ([]model.Fragment, error) {
	return s.Repo.FindByAuthorSince(ctx, authorID, since)
}

// Sweep deletes fragments created before the caller's day boundary.
func (s *FragmentService) Sweep(ctx context.Context, authorID string, before time.Time) (int64, error) {
	if before.After(s.now().Add(maxClockSkew)) {
		return 0, fmt.Errorf("%w: sweep boundary %s is in the future", ErrInvalid, before.Format(time.RFC3339))
	}

	deleted, err := s.Repo.DeleteBefore(ctx, before)
	if err != nil {
		return 0, err
	}
	if s.Metrics != nil {
		s.Metrics.Sweeps.Inc()
		s.Metrics.FragmentsSwept.Add(float64(deleted))
	}
	logger.Sugar.Infof("Sweep by %s before %s removed %d fragments", authorID, before.Format(time.RFC3339), deleted)
	return deleted, nil
}
