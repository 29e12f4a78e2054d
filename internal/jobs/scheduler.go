package jobs

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"gbconnect/internal/metrics"
	"gbconnect/internal/models"
	"gbconnect/internal/repositories"
	"gbconnect/internal/services"
)

const (
	otpCleanupSpec   = "@every 15m"
	completionSpec   = "@hourly"
	reminderSpec     = "0 8 * * *"
	userGaugeSpec    = "@every 1m"
	defaultJobBudget = 2 * time.Minute
)

// Scheduler runs the periodic maintenance jobs in a single cron goroutine.
type Scheduler struct {
	cron        *cron.Cron
	otpRepo     repositories.OTPRepository
	bookingRepo repositories.BookingRepository
	userRepo    repositories.UserRepository
	email       services.EmailService
	now         func() time.Time
	timeout     time.Duration
}

func NewScheduler(
	otpRepo repositories.OTPRepository,
	bookingRepo repositories.BookingRepository,
	userRepo repositories.UserRepository,
	email services.EmailService,
) *Scheduler {
	return &Scheduler{
		cron:        cron.New(cron.WithLocation(time.UTC)),
		otpRepo:     otpRepo,
		bookingRepo: bookingRepo,
		userRepo:    userRepo,
		email:       email,
		now:         time.Now,
		timeout:     defaultJobBudget,
	}
}

// Start registers every job and starts the cron loop.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"otp_cleanup", otpCleanupSpec, s.CleanupOTPs},
		{"booking_completion", completionSpec, s.CompleteEndedBookings},
		{"booking_reminders", reminderSpec, s.SendReminders},
		{"user_gauge", userGaugeSpec, s.RefreshUserGauge},
	}

	for _, j := range jobs {
		job := j
		if _, err := s.cron.AddFunc(job.spec, func() { s.runJob(job.name, job.run) }); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
	}

	s.cron.Start()
	log.Info().Int("jobs", len(jobs)).Msg("Background jobs started")
	return nil
}

// Stop halts scheduling and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		log.Info().Msg("Background jobs stopped")
	case <-ctx.Done():
		log.Warn().Msg("Background jobs did not stop in time")
	}
}

func (s *Scheduler) runJob(name string, run func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := run(ctx); err != nil {
		log.Error().Err(err).Str("job", name).Msg("Background job failed")
		return
	}
	log.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("Background job finished")
}

func (s *Scheduler) CleanupOTPs(ctx context.Context) error {
	deleted, err := s.otpRepo.DeleteExpired(ctx)
	if err != nil {
		return err
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Msg("Expired OTPs removed")
	}
	return nil
}

// CompleteEndedBookings closes confirmed bookings whose end date is before today.
func (s *Scheduler) CompleteEndedBookings(ctx context.Context) error {
	completed, err := s.bookingRepo.CompleteEnded(ctx, startOfDay(s.now()))
	if err != nil {
		return err
	}
	if completed > 0 {
		metrics.BookingStatusChangesTotal.WithLabelValues(models.BookingCompleted).Add(float64(completed))
		log.Info().Int64("completed", completed).Msg("Ended bookings marked completed")
	}
	return nil
}

// SendReminders emails tourists whose confirmed booking starts tomorrow. Each booking is
// reminded at most once.
func (s *Scheduler) SendReminders(ctx context.Context) error {
	from := startOfDay(s.now()).AddDate(0, 0, 1)
	due, err := s.bookingRepo.FindDueReminders(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		return err
	}

	sent := 0
	for _, b := range due {
		user, err := s.userRepo.FindByID(ctx, b.UserID)
		if err != nil {
			log.Warn().Err(err).Str("booking_id", b.ID.Hex()).Msg("Skipping reminder, tourist not found")
			continue
		}

		body := fmt.Sprintf("<p>Hi %s,</p><p>This is a reminder that your booking for <strong>%s</strong> starts on %s.</p>",
			html.EscapeString(user.Name), html.EscapeString(b.ServiceTitle), b.StartDate.Format(models.DateLayout))
		if err := s.email.SendEmail(user.Email, "Your GBConnect booking is tomorrow", body); err != nil {
			continue
		}
		if err := s.bookingRepo.MarkReminderSent(ctx, b.ID); err != nil {
			log.Error().Err(err).Str("booking_id", b.ID.Hex()).Msg("Failed to flag reminder as sent")
			continue
		}
		sent++
	}

	if len(due) > 0 {
		log.Info().Int("due", len(due)).Int("sent", sent).Msg("Booking reminders processed")
	}
	return nil
}

func (s *Scheduler) RefreshUserGauge(ctx context.Context) error {
	count, err := s.userRepo.CountAll(ctx)
	if err != nil {
		return err
	}
	metrics.TotalUsers.Set(float64(count))
	return nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
