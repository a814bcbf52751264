package service

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/lshigami/Margays/config"
	"github.com/lshigami/Margays/internal/model"
	"github.com/lshigami/Margays/internal/repository"
	"github.com/rs/zerolog/log"
)

// IncidentReporter performs best-effort writes to the incident log and the
// attempt activity timestamp. Enqueueing never blocks the exam flow: when the
// queue is full the message is dropped with a diagnostic log, and a write
// failure is retried a bounded number of times before being dropped too.
// Losing a record degrades auditability, never exam integrity.
type IncidentReporter interface {
	Report(event *model.ViolationEvent)
	TouchActivity(attemptID uint, at time.Time)
	Stop()
}

type incidentMessage struct {
	event    *model.ViolationEvent
	activity *activityTouch
}

type activityTouch struct {
	attemptID uint
	at        time.Time
}

type incidentReporter struct {
	violationRepo repository.ViolationRepository
	attemptRepo   repository.AttemptRepository
	presence      PresenceStore

	queue      chan incidentMessage
	stop       chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
	maxRetries int
}

func NewIncidentReporter(
	cfg *config.Config,
	violationRepo repository.ViolationRepository,
	attemptRepo repository.AttemptRepository,
	presence PresenceStore,
) IncidentReporter {
	r := &incidentReporter{
		violationRepo: violationRepo,
		attemptRepo:   attemptRepo,
		presence:      presence,
		queue:         make(chan incidentMessage, cfg.Proctor.ReporterQueueSize),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		maxRetries:    cfg.Proctor.ReporterMaxRetries,
	}
	go r.worker()
	return r
}

func (r *incidentReporter) Report(event *model.ViolationEvent) {
	select {
	case r.queue <- incidentMessage{event: event}:
	default:
		log.Warn().
			Uint("attemptID", event.AttemptID).
			Str("type", string(event.Type)).
			Msg("Incident queue full, dropping violation record")
	}
}

func (r *incidentReporter) TouchActivity(attemptID uint, at time.Time) {
	select {
	case r.queue <- incidentMessage{activity: &activityTouch{attemptID: attemptID, at: at}}:
	default:
		log.Debug().Uint("attemptID", attemptID).Msg("Incident queue full, dropping activity heartbeat")
	}
}

// Stop drains whatever is already queued, then returns. Safe to call more
// than once.
func (r *incidentReporter) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (r *incidentReporter) worker() {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			for {
				select {
				case msg := <-r.queue:
					r.deliver(msg)
				default:
					return
				}
			}
		case msg := <-r.queue:
			r.deliver(msg)
		}
	}
}

func (r *incidentReporter) deliver(msg incidentMessage) {
	if msg.event != nil {
		r.writeEvent(msg.event)
	}
	if msg.activity != nil {
		r.writeActivity(msg.activity)
	}
}

func (r *incidentReporter) writeEvent(event *model.ViolationEvent) {
	op := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return r.violationRepo.Append(ctx, event)
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(r.maxRetries))
	if err := backoff.Retry(op, bo); err != nil {
		log.Warn().
			Err(err).
			Uint("attemptID", event.AttemptID).
			Str("type", string(event.Type)).
			Str("eventUID", event.EventUID).
			Msg("Incident write failed, record dropped")
	}
}

func (r *incidentReporter) writeActivity(touch *activityTouch) {
	// No retries: the next heartbeat supersedes this one anyway.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.attemptRepo.TouchActivity(ctx, touch.attemptID, touch.at); err != nil {
		log.Warn().Err(err).Uint("attemptID", touch.attemptID).Msg("Activity heartbeat write failed")
	}
	if r.presence != nil {
		if err := r.presence.Refresh(ctx, touch.attemptID, touch.at); err != nil {
			log.Debug().Err(err).Uint("attemptID", touch.attemptID).Msg("Presence refresh failed")
		}
	}
}
