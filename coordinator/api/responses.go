package api

import (
	"net/http"

	"github.com/absmach/supermq"

	"github.com/cotrain-ai/cotrain/coordinator"
	"github.com/cotrain-ai/cotrain/model"
	"github.com/cotrain-ai/cotrain/participant"
	"github.com/cotrain-ai/cotrain/round"
)

var (
	_ supermq.Response = (*modelResponse)(nil)
	_ supermq.Response = (*listModelsResponse)(nil)
	_ supermq.Response = (*roundResponse)(nil)
	_ supermq.Response = (*listRoundsResponse)(nil)
	_ supermq.Response = (*submissionResponse)(nil)
	_ supermq.Response = (*listSubmissionsResponse)(nil)
	_ supermq.Response = (*accountResponse)(nil)
	_ supermq.Response = (*activeResponse)(nil)
	_ supermq.Response = (*countersResponse)(nil)
)

type modelResponse struct {
	model.Model
	created bool
}

func (m modelResponse) Code() int {
	if m.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (m modelResponse) Headers() map[string]string {
	if m.created {
		return map[string]string{
			"Location": "/models/" + model.Key(m.ID),
		}
	}

	return map[string]string{}
}

func (m modelResponse) Empty() bool {
	return false
}

type listModelsResponse struct {
	model.Page
}

func (l listModelsResponse) Code() int {
	return http.StatusOK
}

func (l listModelsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listModelsResponse) Empty() bool {
	return false
}

type roundResponse struct {
	round.Round
	created bool
}

func (r roundResponse) Code() int {
	if r.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (r roundResponse) Headers() map[string]string {
	if r.created {
		return map[string]string{
			"Location": "/rounds/" + round.Key(r.ID),
		}
	}

	return map[string]string{}
}

func (r roundResponse) Empty() bool {
	return false
}

type listRoundsResponse struct {
	round.Page
}

func (l listRoundsResponse) Code() int {
	return http.StatusOK
}

func (l listRoundsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listRoundsResponse) Empty() bool {
	return false
}

type submissionResponse struct {
	round.Submission
	created bool
}

func (s submissionResponse) Code() int {
	if s.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (s submissionResponse) Headers() map[string]string {
	return map[string]string{}
}

func (s submissionResponse) Empty() bool {
	return false
}

type listSubmissionsResponse struct {
	Submissions []round.Submission `json:"submissions"`
	Total       uint64             `json:"total"`
}

func (l listSubmissionsResponse) Code() int {
	return http.StatusOK
}

func (l listSubmissionsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listSubmissionsResponse) Empty() bool {
	return false
}

type accountResponse struct {
	participant.Account
}

func (a accountResponse) Code() int {
	return http.StatusOK
}

func (a accountResponse) Headers() map[string]string {
	return map[string]string{}
}

func (a accountResponse) Empty() bool {
	return false
}

type activeResponse struct {
	Active bool `json:"active"`
}

func (a activeResponse) Code() int {
	return http.StatusOK
}

func (a activeResponse) Headers() map[string]string {
	return map[string]string{}
}

func (a activeResponse) Empty() bool {
	return false
}

type countersResponse struct {
	coordinator.Counters
}

func (c countersResponse) Code() int {
	return http.StatusOK
}

func (c countersResponse) Headers() map[string]string {
	return map[string]string{}
}

func (c countersResponse) Empty() bool {
	return false
}
