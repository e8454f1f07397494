package leads

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jmehdipour/leadsite/internal/apperr"
	"github.com/jmehdipour/leadsite/internal/dedup"
	"github.com/jmehdipour/leadsite/internal/events"
	"github.com/jmehdipour/leadsite/internal/features"
	"github.com/jmehdipour/leadsite/internal/metrics"
	"github.com/jmehdipour/leadsite/internal/model"
	"github.com/jmehdipour/leadsite/internal/notify"
	"github.com/jmehdipour/leadsite/internal/repository"
	"github.com/jmehdipour/leadsite/internal/validation"
)

var (
	ErrDuplicate       = errors.New("duplicate submission")
	ErrFeatureDisabled = errors.New("feature disabled for this package")
	ErrNotConfigured   = errors.New("lead storage not configured")
)

const (
	DefaultFirstFollowUp  = 24 * time.Hour
	DefaultSecondFollowUp = 72 * time.Hour
)

// Settings are the business details rendered into notifications.
type Settings struct {
	BusinessName  string
	OwnerName     string
	OwnerEmail    string
	OwnerWhatsApp string
	SiteURL       string

	FirstFollowUpAfter  time.Duration
	SecondFollowUpAfter time.Duration
}

type Deps struct {
	Store    repository.LeadStore // nil when lead storage is off
	Dedup    *dedup.Deduplicator
	Email    notify.Sender
	WhatsApp notify.Sender
	Events   events.Publisher
	Client   features.ClientConfig
	Settings Settings
	Log      *zap.Logger
}

// Service runs the lead pipeline: validate, guard against repeats, store,
// notify, publish.
type Service struct {
	store    repository.LeadStore
	dedup    *dedup.Deduplicator
	email    notify.Sender
	whatsapp notify.Sender
	events   events.Publisher
	client   features.ClientConfig
	settings Settings
	log      *zap.Logger
	now      func() time.Time
}

func New(d Deps) *Service {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Events == nil {
		d.Events = events.NopPublisher{}
	}
	if d.Settings.FirstFollowUpAfter <= 0 {
		d.Settings.FirstFollowUpAfter = DefaultFirstFollowUp
	}
	if d.Settings.SecondFollowUpAfter <= 0 {
		d.Settings.SecondFollowUpAfter = DefaultSecondFollowUp
	}
	return &Service{
		store:    d.Store,
		dedup:    d.Dedup,
		email:    d.Email,
		whatsapp: d.WhatsApp,
		events:   d.Events,
		client:   d.Client,
		settings: d.Settings,
		log:      d.Log.Named("leads"),
		now:      time.Now,
	}
}

// WithClock replaces the clock used for follow-up due dates and events.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SubmitResult reports the stored lead and each notification outcome, keyed
// by "<channel>:<recipient role>".
type SubmitResult struct {
	Lead          model.Lead
	Notifications map[string]notify.Result
}

func leadKey(email string) string { return "lead:" + email }

// Submit accepts one lead form submission. Notification failures are logged
// and reported in the result; they never fail the submission.
func (s *Service) Submit(ctx context.Context, in validation.LeadInput) (SubmitResult, error) {
	const op = "leads.Submit"

	lead, errs := validation.Lead(in)
	if len(errs) > 0 {
		metrics.LeadsTotal.WithLabelValues("invalid").Inc()
		return SubmitResult{}, apperr.Wrap(apperr.KindValidation, op, errs, "Please correct the highlighted fields.", "")
	}

	key := leadKey(lead.Email)
	if s.dedup != nil && s.dedup.ShouldSuppress(ctx, key) {
		metrics.LeadsTotal.WithLabelValues("duplicate").Inc()
		s.log.Info("duplicate lead suppressed", zap.String("email", lead.Email))
		return SubmitResult{}, apperr.Wrap(apperr.KindDuplicate, op, ErrDuplicate, "This submission was already received.", "")
	}

	if s.store != nil {
		res, err := s.store.Save(ctx, &lead)
		if err != nil {
			metrics.LeadsTotal.WithLabelValues("error").Inc()
			s.log.Error("save lead failed", zap.String("email", lead.Email), zap.Error(err))
			return SubmitResult{}, apperr.Wrap(apperr.KindUpstream, op, err,
				"We couldn't save your submission. Please try again shortly.", repository.StorageHint(err))
		}
		if res.Duplicate {
			metrics.LeadsTotal.WithLabelValues("duplicate").Inc()
			return SubmitResult{}, apperr.Wrap(apperr.KindDuplicate, op, ErrDuplicate, "This submission was already received.", "")
		}
	} else {
		lead.Stamp(s.now())
		s.log.Warn("lead storage disabled, lead not persisted", zap.String("email", lead.Email))
	}

	if s.dedup != nil {
		s.dedup.MarkSent(ctx, key)
	}
	metrics.LeadsTotal.WithLabelValues("accepted").Inc()

	out := SubmitResult{Lead: lead, Notifications: s.notifyNewLead(ctx, lead)}

	if err := s.events.Publish(ctx, events.NewEvent(model.EventLeadSubmitted, lead, s.now())); err != nil {
		s.log.Warn("publish lead event failed", zap.Error(err))
	}
	return out, nil
}

type notification struct {
	name        string
	sender      notify.Sender
	to          string
	template    string
	messageType string
}

// notifyNewLead sends every applicable notification concurrently and waits
// for all of them.
func (s *Service) notifyNewLead(ctx context.Context, lead model.Lead) map[string]notify.Result {
	var jobs []notification
	if s.email != nil {
		jobs = append(jobs, notification{"email:lead", s.email, lead.Email, "leadConfirmation", model.MessageConfirmation})
		if s.settings.OwnerEmail != "" {
			jobs = append(jobs, notification{"email:owner", s.email, s.settings.OwnerEmail, "ownerNotification", model.MessageOwnerAlert})
		}
	}
	if s.whatsapp != nil {
		jobs = append(jobs, notification{"whatsapp:lead", s.whatsapp, lead.Phone, "leadConfirmation", model.MessageConfirmation})
		if s.settings.OwnerWhatsApp != "" {
			jobs = append(jobs, notification{"whatsapp:owner", s.whatsapp, s.settings.OwnerWhatsApp, "ownerAlert", model.MessageOwnerAlert})
		}
	}

	data := s.templateData(lead)
	results := make([]notify.Result, len(jobs))

	var g errgroup.Group
	for i, j := range jobs {
		g.Go(func() error {
			results[i] = j.sender.Send(ctx, j.to, j.template, data, j.messageType)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]notify.Result, len(jobs))
	for i, j := range jobs {
		out[j.name] = results[i]
		if !results[i].Success && !results[i].Skipped {
			s.log.Warn("lead notification failed",
				zap.String("notification", j.name), zap.String("email", lead.Email), zap.String("error", results[i].Error))
		}
	}
	return out
}

func (s *Service) templateData(lead model.Lead) notify.TemplateData {
	return notify.TemplateData{
		Lead:         lead,
		BusinessName: s.settings.BusinessName,
		OwnerName:    s.settings.OwnerName,
		BookingLink:  s.client.BookingLink(),
		SiteURL:      s.settings.SiteURL,
	}
}

// FollowUpSummary counts one follow-up pass. Skipped covers leads that were
// not due, excluded, or whose channels are switched off.
type FollowUpSummary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// ProcessFollowUps sends the first follow-up to leads left uncontacted for
// FirstFollowUpAfter and the second to contacted leads quiet for
// SecondFollowUpAfter. Only the newest row per email is considered.
func (s *Service) ProcessFollowUps(ctx context.Context) (FollowUpSummary, error) {
	const op = "leads.ProcessFollowUps"

	var sum FollowUpSummary
	if !s.client.IsFeatureEnabled(features.FollowUps) {
		return sum, apperr.Wrap(apperr.KindForbidden, op, ErrFeatureDisabled,
			"Follow-ups are not included in your package.", "Upgrade to PREMIUM or set FOLLOW_UPS_ENABLED=true.")
	}
	if s.store == nil {
		return sum, apperr.Wrap(apperr.KindUnavailable, op, ErrNotConfigured, "Lead storage is not configured.", "")
	}

	leads, err := s.store.List(ctx)
	if err != nil {
		return sum, apperr.Wrap(apperr.KindUpstream, op, err, "Could not read leads.", repository.StorageHint(err))
	}

	now := s.now()
	seen := make(map[string]bool, len(leads))
	for _, lead := range leads {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if seen[lead.Email] {
			continue
		}
		seen[lead.Email] = true

		var (
			tmpl string
			next model.LeadStatus
		)
		switch {
		case lead.OptOut || lead.Status == model.StatusOptedOut || lead.Status == model.StatusConverted:
		case lead.Status == model.StatusNotContacted && now.Sub(lead.SubmittedTime()) >= s.settings.FirstFollowUpAfter:
			tmpl, next = "followUp1", model.StatusContacted
		case lead.Status == model.StatusContacted && now.Sub(lead.LastContactTime()) >= s.settings.SecondFollowUpAfter:
			tmpl, next = "followUp2", model.StatusFollowedUp
		}
		if tmpl == "" {
			sum.Skipped++
			continue
		}

		sum.Processed++
		switch s.followUp(ctx, lead, tmpl) {
		case followUpSent:
			at := now.UnixMilli()
			if err := s.store.UpdateStatus(ctx, lead.Email, model.LeadPatch{Status: &next, LastFollowUpAt: &at}); err != nil {
				sum.Errors++
				s.log.Error("update lead after follow-up failed", zap.String("email", lead.Email), zap.Error(err))
				continue
			}
			sum.Sent++
			lead.Status = next
			if err := s.events.Publish(ctx, events.NewEvent(model.EventLeadFollowedUp, lead, now)); err != nil {
				s.log.Warn("publish follow-up event failed", zap.Error(err))
			}
		case followUpSkipped:
			sum.Skipped++
		default:
			sum.Errors++
		}
	}

	s.log.Info("follow-up pass done",
		zap.Int("processed", sum.Processed), zap.Int("sent", sum.Sent),
		zap.Int("skipped", sum.Skipped), zap.Int("errors", sum.Errors))
	return sum, nil
}

type followUpOutcome int

const (
	followUpFailed followUpOutcome = iota
	followUpSent
	followUpSkipped
)

// followUp sends tmpl by email and, when available, the WhatsApp follow-up.
// The lead counts as followed up when any channel delivered.
func (s *Service) followUp(ctx context.Context, lead model.Lead, tmpl string) followUpOutcome {
	data := s.templateData(lead)

	var results []notify.Result
	if s.email != nil {
		results = append(results, s.email.Send(ctx, lead.Email, tmpl, data, model.MessageFollowUp))
	}
	if s.whatsapp != nil && lead.Phone != "" {
		results = append(results, s.whatsapp.Send(ctx, lead.Phone, "followUp", data, model.MessageFollowUp+":"+tmpl))
	}

	outcome := followUpSkipped
	for _, r := range results {
		switch {
		case r.Success:
			return followUpSent
		case !r.Skipped:
			outcome = followUpFailed
			s.log.Warn("follow-up send failed", zap.String("email", lead.Email), zap.String("error", r.Error))
		}
	}
	return outcome
}

// OptOut stops all further follow-ups for email.
func (s *Service) OptOut(ctx context.Context, email string) error {
	const op = "leads.OptOut"

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperr.New(apperr.KindValidation, op, "Email is required to opt out.")
	}
	if s.store == nil {
		return apperr.Wrap(apperr.KindUnavailable, op, ErrNotConfigured, "Lead storage is not configured.", "")
	}

	status, optOut := model.StatusOptedOut, true
	err := s.store.UpdateStatus(ctx, email, model.LeadPatch{Status: &status, OptOut: &optOut})
	switch {
	case errors.Is(err, repository.ErrLeadNotFound):
		return apperr.Wrap(apperr.KindNotFound, op, err, "No lead found for that email.", "")
	case err != nil:
		return apperr.Wrap(apperr.KindUpstream, op, err, "Could not update the lead.", repository.StorageHint(err))
	}

	ev := events.NewEvent(model.EventLeadOptedOut, model.Lead{Email: email, Status: status}, s.now())
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish opt-out event failed", zap.Error(err))
	}
	s.log.Info("lead opted out", zap.String("email", email))
	return nil
}

// List returns stored leads, newest first.
func (s *Service) List(ctx context.Context) ([]model.Lead, error) {
	if s.store == nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "leads.List", ErrNotConfigured, "Lead storage is not configured.", "")
	}
	leads, err := s.store.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "leads.List", err, "Could not read leads.", repository.StorageHint(err))
	}
	return leads, nil
}
