package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saudashfaq/market-market-sub002/services/api/internal/domain"
)

type Repository interface {
	CreateNotification(ctx context.Context, n domain.Notification) error
	AdminIDs(ctx context.Context) ([]string, error)
	UserEmail(ctx context.Context, userID string) (string, error)
}

// Mailer sends a rendered notification by email. Template rendering lives
// outside this subsystem.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer records the send instead of delivering it. Default wiring until
// a real SMTP relay is configured.
type LogMailer struct {
	Log *zap.Logger
}

func (m LogMailer) Send(_ context.Context, to, subject, _ string) error {
	if m.Log != nil {
		m.Log.Info("email dispatched", zap.String("to", to), zap.String("subject", subject))
	}
	return nil
}

type emailJob struct {
	recipientID string
	subject     string
	body        string
}

// Service persists in-app notifications and queues email dispatch onto a
// background worker. The worker runs off the request path; a full queue
// drops the email and logs, it never blocks or fails the caller.
type Service struct {
	repo   Repository
	mailer Mailer
	log    *zap.Logger

	jobs      chan emailJob
	wg        sync.WaitGroup
	closeOnce sync.Once
}

const emailQueueSize = 64

func NewService(repo Repository, mailer Mailer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		mailer: mailer,
		log:    log,
		jobs:   make(chan emailJob, emailQueueSize),
	}
}

// Start launches the email worker. Call Close to drain and stop it.
func (s *Service) Start() {
	s.wg.Add(1)
	go s.worker()
}

// Close stops accepting email jobs and waits for the queue to drain.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.jobs)
	})
	s.wg.Wait()
}

// Notify persists the in-app notification and enqueues the matching email.
func (s *Service) Notify(ctx context.Context, n domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return err
	}

	select {
	case s.jobs <- emailJob{recipientID: n.RecipientID, subject: n.Title, body: n.Body}:
	default:
		s.log.Warn("email queue full, dropping dispatch",
			zap.String("recipient_id", n.RecipientID),
			zap.String("subject", n.Title),
		)
	}
	return nil
}

func (s *Service) AdminIDs(ctx context.Context) ([]string, error) {
	return s.repo.AdminIDs(ctx)
}

func (s *Service) worker() {
	defer s.wg.Done()
	for job := range s.jobs {
		s.deliver(job)
	}
}

func (s *Service) deliver(job emailJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	to, err := s.repo.UserEmail(ctx, job.recipientID)
	if err != nil {
		s.log.Warn("resolve recipient email",
			zap.String("recipient_id", job.recipientID),
			zap.Error(err),
		)
		return
	}
	if err := s.mailer.Send(ctx, to, job.subject, job.body); err != nil {
		s.log.Warn("email send failed",
			zap.String("recipient_id", job.recipientID),
			zap.String("subject", job.subject),
			zap.Error(err),
		)
	}
}
