package api

import (
	"time"

	sdkmath "cosmossdk.io/math"
	apiutil "github.com/absmach/supermq/api/http/util"

	"github.com/cotrain-ai/cotrain/model"
	"github.com/cotrain-ai/cotrain/pkg/api"
	pkgerrors "github.com/cotrain-ai/cotrain/pkg/errors"
)

type modelReq struct {
	model.Model `json:",inline"`
}

func (m *modelReq) validate() error {
	if m.Name == "" {
		return apiutil.ErrMissingName
	}
	if m.Creator == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type entityReq struct {
	id uint64
}

func (e *entityReq) validate() error {
	return nil
}

type listEntityReq struct {
	offset, limit uint64
}

func (e *listEntityReq) validate() error {
	if e.limit > api.MaxLimitSize {
		return apiutil.ErrLimitSize
	}

	return nil
}

type startRoundReq struct {
	ModelID    uint64      `json:"model_id"`
	DatasetRef string      `json:"dataset_ref"`
	Duration   string      `json:"duration"`
	RewardPool sdkmath.Int `json:"reward_pool"`
	Initiator  string      `json:"initiator"`

	duration time.Duration
}

func (r *startRoundReq) validate() error {
	if r.Initiator == "" {
		return apiutil.ErrMissingID
	}
	d, err := time.ParseDuration(r.Duration)
	if err != nil {
		return pkgerrors.ErrInvalidInput
	}
	r.duration = d

	return nil
}

type submissionReq struct {
	roundID uint64

	Participant string `json:"participant"`
	ResultRef   string `json:"result_ref"`
	Accuracy    uint64 `json:"accuracy"`
	Proof       []byte `json:"proof"`

	// cbor carries the raw body when the client posts application/cbor.
	cbor []byte
}

func (s *submissionReq) validate() error {
	if len(s.cbor) > 0 {
		return nil
	}
	if s.Participant == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type completeRoundReq struct {
	roundID uint64

	Caller string `json:"caller"`
}

func (c *completeRoundReq) validate() error {
	if c.Caller == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type participantReq struct {
	id string
}

func (p *participantReq) validate() error {
	if p.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type submissionEntityReq struct {
	roundID       uint64
	participantID string
}

func (s *submissionEntityReq) validate() error {
	if s.participantID == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type balanceReq struct {
	id string

	Amount sdkmath.Int `json:"amount"`
}

func (b *balanceReq) validate() error {
	if b.id == "" {
		return apiutil.ErrMissingID
	}
	if b.Amount.IsNil() {
		return pkgerrors.ErrInvalidInput
	}

	return nil
}
