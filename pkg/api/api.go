package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"

	pkgerrors "github.com/cotrain-ai/cotrain/pkg/errors"
)

const (
	OffsetKey = "offset"
	LimitKey  = "limit"
	DefOffset = 0
	DefLimit  = 100

	ContentType = "application/json"

	MaxLimitSize = 100
)

func EncodeResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	if ar, ok := response.(supermq.Response); ok {
		for k, v := range ar.Headers() {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(ar.Code())

		if ar.Empty() {
			return nil
		}
	}

	return json.NewEncoder(w).Encode(response)
}

type errorRes struct {
	Err string `json:"error"`
}

func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", ContentType)
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidInput),
		errors.Is(err, pkgerrors.ErrEmptyKey),
		errors.Is(err, apiutil.ErrValidation):
		w.WriteHeader(http.StatusBadRequest)
	case errors.Is(err, pkgerrors.ErrUnauthorized):
		w.WriteHeader(http.StatusForbidden)
	case errors.Is(err, pkgerrors.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, pkgerrors.ErrInvalidState),
		errors.Is(err, pkgerrors.ErrAlreadyCompleted),
		errors.Is(err, pkgerrors.ErrEntityExists):
		w.WriteHeader(http.StatusConflict)
	case errors.Is(err, pkgerrors.ErrInsufficientStake),
		errors.Is(err, pkgerrors.ErrBelowAccuracyThreshold),
		errors.Is(err, pkgerrors.ErrCapacityExceeded):
		w.WriteHeader(http.StatusUnprocessableEntity)
	case errors.Is(err, pkgerrors.ErrTransferFailed):
		w.WriteHeader(http.StatusBadGateway)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}

	if err := json.NewEncoder(w).Encode(errorRes{Err: err.Error()}); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}
