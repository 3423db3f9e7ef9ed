package jobs

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/provider"
	"github.com/sells-group/outreach-cli/internal/store"
)

type sendStep struct {
	prospectOps
	sender provider.Sender
	now    func() time.Time
}

func newSendStep(st store.Store, snd provider.Sender, o Options) *sendStep {
	return &sendStep{
		prospectOps: prospectOps{
			st:     st,
			law:    law{eligible: model.CanSend, fail: model.FailSend},
			filter: model.ProspectFilter{SendStatus: model.SendPending, DraftStatus: model.DraftDrafted},
			limit:  o.DefaultLimit,
		},
		sender: snd,
		now:    o.Now,
	}
}

func (s *sendStep) gate() string { return s.sender.Name() }

func (s *sendStep) execute(ctx context.Context, it item) (tally, error) {
	p, err := s.load(ctx, it.prospectID)
	if err != nil || p == nil {
		return skipped, err
	}

	d, err := s.sender.Send(ctx, provider.Message{
		To:      p.Email(),
		Subject: p.DraftSubject,
		Body:    p.DraftBody,
	})
	if err != nil {
		return tally{}, err
	}

	at := s.now()
	if err := model.ApplySend(p, d.ThreadID, p.DraftBody, at); err != nil {
		return skipped, nil
	}
	err = s.st.UpdateProspect(ctx, p)
	if err == nil {
		return succeeded, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return tally{}, err
	}

	// The message is out; an unrelated concurrent edit must not lose the
	// thread. Reapply once on the fresh row.
	zap.L().Warn("jobs: prospect changed during send, reapplying",
		zap.String("prospect_id", p.ID), zap.String("thread_id", d.ThreadID))
	fresh, err := s.st.GetProspect(ctx, p.ID)
	if err != nil {
		return tally{}, err
	}
	if err := model.ApplySend(fresh, d.ThreadID, fresh.DraftBody, at); err != nil {
		return skipped, nil
	}
	return s.commit(ctx, fresh, succeeded)
}
