package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/cotrain-ai/cotrain/coordinator"
	"github.com/cotrain-ai/cotrain/pkg/api"
)

const (
	maxSubmissionSize = 1024 * 1024
	cborContentType   = "application/cbor"
)

func MakeHandler(svc coordinator.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Route("/models", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			createModelEndpoint(svc),
			decodeModelReq,
			api.EncodeResponse,
			opts...,
		), "create-model").ServeHTTP)
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listModelsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-models").ServeHTTP)
		r.Get("/{modelID}", otelhttp.NewHandler(kithttp.NewServer(
			getModelEndpoint(svc),
			decodeEntityReq("modelID"),
			api.EncodeResponse,
			opts...,
		), "get-model").ServeHTTP)
	})

	mux.Route("/rounds", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			startRoundEndpoint(svc),
			decodeStartRoundReq,
			api.EncodeResponse,
			opts...,
		), "start-round").ServeHTTP)
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listRoundsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-rounds").ServeHTTP)
		r.Route("/{roundID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getRoundEndpoint(svc),
				decodeEntityReq("roundID"),
				api.EncodeResponse,
				opts...,
			), "get-round").ServeHTTP)
			r.Get("/participants", otelhttp.NewHandler(kithttp.NewServer(
				listParticipantsEndpoint(svc),
				decodeEntityReq("roundID"),
				api.EncodeResponse,
				opts...,
			), "list-participants").ServeHTTP)
			r.Get("/participants/{participantID}", otelhttp.NewHandler(kithttp.NewServer(
				getSubmissionEndpoint(svc),
				decodeSubmissionEntityReq,
				api.EncodeResponse,
				opts...,
			), "get-submission").ServeHTTP)
			r.Post("/submissions", otelhttp.NewHandler(kithttp.NewServer(
				submitEndpoint(svc),
				decodeSubmissionReq,
				api.EncodeResponse,
				opts...,
			), "submit").ServeHTTP)
			r.Post("/complete", otelhttp.NewHandler(kithttp.NewServer(
				completeRoundEndpoint(svc),
				decodeCompleteRoundReq,
				api.EncodeResponse,
				opts...,
			), "complete-round").ServeHTTP)
			r.Get("/active", otelhttp.NewHandler(kithttp.NewServer(
				roundActiveEndpoint(svc),
				decodeEntityReq("roundID"),
				api.EncodeResponse,
				opts...,
			), "round-active").ServeHTTP)
		})
	})

	mux.Route("/participants", func(r chi.Router) {
		r.Route("/{participantID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getAccountEndpoint(svc),
				decodeParticipantReq,
				api.EncodeResponse,
				opts...,
			), "get-account").ServeHTTP)
			r.Post("/stake", otelhttp.NewHandler(kithttp.NewServer(
				stakeEndpoint(svc),
				decodeBalanceReq,
				api.EncodeResponse,
				opts...,
			), "stake").ServeHTTP)
			r.Post("/withdraw", otelhttp.NewHandler(kithttp.NewServer(
				withdrawEndpoint(svc),
				decodeBalanceReq,
				api.EncodeResponse,
				opts...,
			), "withdraw").ServeHTTP)
		})
	})

	mux.Get("/counters", otelhttp.NewHandler(kithttp.NewServer(
		countersEndpoint(svc),
		decodeEmptyReq,
		api.EncodeResponse,
		opts...,
	), "counters").ServeHTTP)

	mux.Get("/health", supermq.Health("coordinator", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeEntityReq(key string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		id, err := strconv.ParseUint(chi.URLParam(r, key), 10, 64)
		if err != nil {
			return nil, errors.Join(apiutil.ErrValidation, err)
		}

		return entityReq{
			id: id,
		}, nil
	}
}

func decodeEmptyReq(_ context.Context, _ *http.Request) (any, error) {
	return nil, nil
}

func decodeModelReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req modelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeListEntityReq(_ context.Context, r *http.Request) (any, error) {
	o, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	l, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return listEntityReq{
		offset: o,
		limit:  l,
	}, nil
}

func decodeStartRoundReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req startRoundReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

// decodeSubmissionReq accepts either a JSON submission or a raw CBOR body,
// selected by Content-Type.
func decodeSubmissionReq(_ context.Context, r *http.Request) (any, error) {
	roundID, err := strconv.ParseUint(chi.URLParam(r, "roundID"), 10, 64)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	ct := r.Header.Get("Content-Type")
	if strings.Contains(ct, cborContentType) {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxSubmissionSize))
		if err != nil {
			return nil, errors.Join(err, apiutil.ErrValidation)
		}

		return submissionReq{
			roundID: roundID,
			cbor:    data,
		}, nil
	}
	if !strings.Contains(ct, api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req submissionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}
	req.roundID = roundID

	return req, nil
}

func decodeCompleteRoundReq(_ context.Context, r *http.Request) (any, error) {
	roundID, err := strconv.ParseUint(chi.URLParam(r, "roundID"), 10, 64)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req completeRoundReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}
	req.roundID = roundID

	return req, nil
}

func decodeSubmissionEntityReq(_ context.Context, r *http.Request) (any, error) {
	roundID, err := strconv.ParseUint(chi.URLParam(r, "roundID"), 10, 64)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return submissionEntityReq{
		roundID:       roundID,
		participantID: chi.URLParam(r, "participantID"),
	}, nil
}

func decodeParticipantReq(_ context.Context, r *http.Request) (any, error) {
	return participantReq{
		id: chi.URLParam(r, "participantID"),
	}, nil
}

func decodeBalanceReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req balanceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}
	req.id = chi.URLParam(r, "participantID")

	return req, nil
}
