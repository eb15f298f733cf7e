package api

import (
	"context"
	"errors"

	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"

	"github.com/cotrain-ai/cotrain/coordinator"
	pkgerrors "github.com/cotrain-ai/cotrain/pkg/errors"
	"github.com/cotrain-ai/cotrain/round"
)

func createModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(modelReq)
		if !ok {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		m, err := svc.CreateModel(ctx, req.Model)
		if err != nil {
			return modelResponse{}, err
		}

		return modelResponse{
			Model:   m,
			created: true,
		}, nil
	}
}

func getModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		m, err := svc.GetModel(ctx, req.id)
		if err != nil {
			return modelResponse{}, err
		}

		return modelResponse{
			Model: m,
		}, nil
	}
}

func listModelsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listModelsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listModelsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		models, err := svc.ListModels(ctx, req.offset, req.limit)
		if err != nil {
			return listModelsResponse{}, err
		}

		return listModelsResponse{
			Page: models,
		}, nil
	}
}

func startRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(startRoundReq)
		if !ok {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		r, err := svc.StartRound(ctx, req.ModelID, req.DatasetRef, req.duration, req.RewardPool, req.Initiator)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{
			Round:   r,
			created: true,
		}, nil
	}
}

func getRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		r, err := svc.GetRound(ctx, req.id)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{
			Round: r,
		}, nil
	}
}

func listRoundsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listRoundsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listRoundsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		rounds, err := svc.ListRounds(ctx, req.offset, req.limit)
		if err != nil {
			return listRoundsResponse{}, err
		}

		return listRoundsResponse{
			Page: rounds,
		}, nil
	}
}

func listParticipantsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return listSubmissionsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listSubmissionsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		subs, err := svc.ListParticipants(ctx, req.id)
		if err != nil {
			return listSubmissionsResponse{}, err
		}

		return listSubmissionsResponse{
			Submissions: subs,
			Total:       uint64(len(subs)),
		}, nil
	}
}

func getSubmissionEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(submissionEntityReq)
		if !ok {
			return submissionResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return submissionResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		sub, err := svc.GetSubmission(ctx, req.roundID, req.participantID)
		if err != nil {
			return submissionResponse{}, err
		}

		return submissionResponse{
			Submission: sub,
		}, nil
	}
}

func submitEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(submissionReq)
		if !ok {
			return submissionResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return submissionResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		var sub round.Submission
		var err error
		if len(req.cbor) > 0 {
			sub, err = svc.SubmitCBOR(ctx, req.cbor)
		} else {
			sub, err = svc.Submit(ctx, round.Submission{
				RoundID:     req.roundID,
				Participant: req.Participant,
				ResultRef:   req.ResultRef,
				Accuracy:    req.Accuracy,
				Proof:       req.Proof,
			})
		}
		if err != nil {
			return submissionResponse{}, err
		}

		return submissionResponse{
			Submission: sub,
			created:    true,
		}, nil
	}
}

func completeRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(completeRoundReq)
		if !ok {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		r, err := svc.ForceComplete(ctx, req.roundID, req.Caller)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{
			Round: r,
		}, nil
	}
}

func roundActiveEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return activeResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return activeResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		active, err := svc.IsRoundActive(ctx, req.id)
		if err != nil {
			return activeResponse{}, err
		}

		return activeResponse{
			Active: active,
		}, nil
	}
}

func stakeEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(balanceReq)
		if !ok {
			return accountResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return accountResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		acc, err := svc.Stake(ctx, req.id, req.Amount)
		if err != nil {
			return accountResponse{}, err
		}

		return accountResponse{
			Account: acc,
		}, nil
	}
}

func withdrawEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(balanceReq)
		if !ok {
			return accountResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return accountResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		acc, err := svc.Withdraw(ctx, req.id, req.Amount)
		if err != nil {
			return accountResponse{}, err
		}

		return accountResponse{
			Account: acc,
		}, nil
	}
}

func getAccountEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(participantReq)
		if !ok {
			return accountResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return accountResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		acc, err := svc.GetAccount(ctx, req.id)
		if err != nil {
			return accountResponse{}, err
		}

		return accountResponse{
			Account: acc,
		}, nil
	}
}

func countersEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		counters, err := svc.Counters(ctx)
		if err != nil {
			return countersResponse{}, err
		}

		return countersResponse{
			Counters: counters,
		}, nil
	}
}
