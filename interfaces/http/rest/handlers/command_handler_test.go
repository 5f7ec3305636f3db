package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"graphengine/application/batch"
	"graphengine/application/router"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		resp router.Response
		want int
	}{
		{name: "success", resp: router.Response{Success: true, Operation: router.OpAddNode}, want: http.StatusOK},
		{
			name: "routing error",
			resp: router.Response{Operation: router.OpAddNode, Error: &router.ErrorBody{Code: 404}},
			want: http.StatusNotFound,
		},
		{
			name: "failed single operation",
			resp: router.Response{Operation: router.OpConnectPins, Result: &batch.Result{}, Error: &router.ErrorBody{Code: 422}},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "batch that ran",
			resp: router.Response{Operation: router.OpBatch, Result: &batch.Result{}, Error: &router.ErrorBody{Code: 404}},
			want: http.StatusOK,
		},
		{
			name: "batch that never ran",
			resp: router.Response{Operation: router.OpBatch, Error: &router.ErrorBody{Code: 400}},
			want: http.StatusBadRequest,
		},
		{
			name: "no usable code",
			resp: router.Response{Operation: router.OpAddNode, Error: &router.ErrorBody{}},
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.resp))
		})
	}
}
