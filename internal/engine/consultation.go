package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
	"github.com/Veraticus/aromance/internal/session"
)

// Analytics event types.
const (
	EventRecsLoaded      = "recs_loaded"
	EventCheckoutSuccess = "checkout_success"
)

var errMissingProfile = errors.New("agent finished without a fragrance profile")

// StartConsultation opens an interview with the consultation agent.
func (o *Orchestrator) StartConsultation(ctx context.Context) (err error) {
	const op = "start_consultation"
	defer func() { err = o.finish(op, err) }()

	id, _, err := o.requireProfile(op)
	if err != nil {
		return err
	}
	if o.store.Consultation().State == session.ConsultationCompleted {
		return common.Validation(op, "Your consultation is already complete")
	}
	if o.consultation == nil {
		return common.Unavailable(op, nil)
	}
	release, err := o.store.Begin(keyConsultation)
	if err != nil {
		return err
	}
	defer release()

	gen := o.store.Generation()
	sessionID := "session_" + o.cfg.NewKey()
	var reply service.ConsultationReply
	err = o.agentCall(ctx, op, func(ctx context.Context) error {
		var err error
		reply, err = o.consultation.Start(ctx, id.WalletAddress, sessionID)
		return err
	})
	if err != nil {
		return err
	}

	if !o.store.UpdateConsultation(gen, func(c *session.Consultation) {
		*c = session.Consultation{
			State:      session.ConsultationInProgress,
			SessionID:  sessionID,
			NextStep:   reply.NextStep,
			FollowUps:  reply.FollowUpQuestions,
			Progress:   reply.Progress,
			Transcript: []session.Turn{{Role: session.RoleAgent, Content: reply.Response}},
		}
	}) {
		return ErrSessionChanged
	}
	return nil
}

// SendMessage sends one user message to the consultation agent. When the
// agent reports the interview finished, the identity is created, the
// profile is updated, and recommendations are refreshed, in that order.
// If any of those steps fails the consultation stays in progress, and
// sending the last message again (or calling CompleteConsultation)
// finishes it.
func (o *Orchestrator) SendMessage(ctx context.Context, text string) (err error) {
	const op = "consultation_message"
	defer func() { err = o.finish(op, err) }()

	text = strings.TrimSpace(text)
	if text == "" {
		return common.Validation(op, "Message is empty")
	}
	id, _, err := o.requireProfile(op)
	if err != nil {
		return err
	}
	c := o.store.Consultation()
	switch c.State {
	case session.ConsultationCompleted:
		return common.Validation(op, "Your consultation is already complete")
	case session.ConsultationNotStarted:
		return common.Validation(op, "Start the consultation first")
	}
	if o.consultation == nil {
		return common.Unavailable(op, nil)
	}
	release, err := o.store.Begin(keyConsultation)
	if err != nil {
		return err
	}
	defer release()

	gen := o.store.Generation()
	var reply service.ConsultationReply
	err = o.agentCall(ctx, op, func(ctx context.Context) error {
		var err error
		reply, err = o.consultation.Send(ctx, id.WalletAddress, c.SessionID, text)
		return err
	})
	if err != nil {
		return err
	}

	done := reply.Progress >= 1.0
	if done && reply.Profile == nil {
		return common.Unavailable(op, errMissingProfile)
	}
	if !o.store.UpdateConsultation(gen, func(c *session.Consultation) {
		c.Transcript = append(c.Transcript,
			session.Turn{Role: session.RoleUser, Content: text},
			session.Turn{Role: session.RoleAgent, Content: reply.Response},
		)
		c.LastMessage = text
		c.NextStep = reply.NextStep
		c.FollowUps = reply.FollowUpQuestions
		c.Progress = reply.Progress
		if done {
			fp := reply.Profile.Clone()
			c.Profile = &fp
		}
	}) {
		return ErrSessionChanged
	}

	if !done {
		return nil
	}
	return o.complete(ctx, gen, id.WalletAddress, *reply.Profile)
}

// CompleteConsultation retries the completion steps for an interview the
// agent already finished.
func (o *Orchestrator) CompleteConsultation(ctx context.Context) (err error) {
	const op = "complete_consultation"
	defer func() { err = o.finish(op, err) }()

	id, _, err := o.requireProfile(op)
	if err != nil {
		return err
	}
	c := o.store.Consultation()
	if c.State == session.ConsultationCompleted {
		return nil
	}
	if c.Profile == nil {
		return common.Validation(op, "The consultation has not finished yet")
	}
	release, err := o.store.Begin(keyConsultation)
	if err != nil {
		return err
	}
	defer release()

	return o.complete(ctx, o.store.Generation(), id.WalletAddress, *c.Profile)
}

// complete runs the ordered completion steps. The consultation becomes
// Completed only after all of them succeed.
func (o *Orchestrator) complete(ctx context.Context, gen uint64, wallet string, fp model.FragranceProfile) error {
	did := o.store.Identity().DID
	if did == "" {
		ident, err := o.gateway.CreateIdentity(ctx, wallet, fp)
		if err != nil {
			return err
		}
		if !o.store.Current(gen) {
			return ErrSessionChanged
		}
		if err := o.store.SetIdentity(session.IdentityPatch{DID: ident.DID}); err != nil {
			return err
		}
		did = ident.DID
	}

	profile, err := o.gateway.GetProfile(ctx, wallet)
	if err != nil {
		return err
	}
	if profile == nil {
		return common.Rejected("get_profile", "User not found")
	}
	if !profile.ConsultationCompleted || profile.DID != did {
		profile.DID = did
		profile.ConsultationCompleted = true
		profile.LastActive = o.cfg.Now().UTC()
		if _, err := o.gateway.UpdateProfile(ctx, *profile); err != nil {
			return err
		}
	}
	if !o.store.Current(gen) || !o.store.SetProfile(*profile) {
		return ErrSessionChanged
	}

	if err := o.refreshRecommendations(ctx, gen, wallet, &fp); err != nil {
		return err
	}

	if !o.store.UpdateConsultation(gen, func(c *session.Consultation) {
		c.State = session.ConsultationCompleted
		c.Progress = 1.0
	}) {
		return ErrSessionChanged
	}
	o.logger.Info("Consultation completed", "wallet", wallet, "did", did)
	o.succeed("consultation", "Your fragrance identity is ready")
	return nil
}

// RefreshRecommendations asks the recommendation agent for fresh matches
// and then loads the stored recommendations. The agent is best effort;
// the stored list is loaded even when it is unavailable.
func (o *Orchestrator) RefreshRecommendations(ctx context.Context) (err error) {
	const op = "refresh_recommendations"
	defer func() { err = o.finish(op, err) }()

	id, err := o.requireConnected(op)
	if err != nil {
		return err
	}
	release, err := o.store.Begin(keyRecs)
	if err != nil {
		return err
	}
	defer release()

	return o.refreshRecommendations(ctx, o.store.Generation(), id.WalletAddress, o.store.Consultation().Profile)
}

func (o *Orchestrator) refreshRecommendations(ctx context.Context, gen uint64, wallet string, fp *model.FragranceProfile) error {
	if o.recommender != nil {
		err := o.agentCall(ctx, "recommend", func(ctx context.Context) error {
			return o.recommender.Recommend(ctx, wallet, fp)
		})
		if err != nil {
			o.logger.Warn("Recommendation agent unavailable, using stored matches", "wallet", wallet, "error", err)
		}
	}
	if err := o.loadRecommendations(ctx, gen, wallet); err != nil {
		return err
	}

	props := map[string]any{"recommendations_count": len(o.store.Recommendations()), "personality_type": "unknown"}
	if fp != nil && fp.PersonalityType != "" {
		props["personality_type"] = fp.PersonalityType
	}
	o.track(wallet, EventRecsLoaded, props)
	return nil
}

func (o *Orchestrator) loadRecommendations(ctx context.Context, gen uint64, wallet string) error {
	o.store.SetLoading("recommendations", true)
	defer o.store.SetLoading("recommendations", false)

	recs, err := o.gateway.Recommendations(ctx, wallet)
	if err != nil {
		return err
	}
	if !o.store.SetRecommendationsAt(gen, recs) {
		return ErrSessionChanged
	}
	return nil
}
