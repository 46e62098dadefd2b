package datasets

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socrata/socrata-sdk-go/model"
)

func TestMetadata(t *testing.T) {
	site := newFakeSite(t, func(r recordedRequest) (int, string) {
		return http.StatusOK, `{"id":"abcd-1234","name":"Parks","rowsUpdatedAt":1700000000}`
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metadata, err := site.newClient(ctx).Dataset("abcd-1234").Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Parks", metadata["name"])
	assert.Equal(t, "/views/abcd-1234.json", site.recorded()[0].URI)
}

func TestSetters(t *testing.T) {
	tests := []struct {
		name     string
		call     func(ctx context.Context, d *Dataset) error
		wantURI  string
		wantBody string
	}{
		{
			name:     "name",
			call:     func(ctx context.Context, d *Dataset) error { return d.SetName(ctx, "City Parks") },
			wantURI:  "/views/abcd-1234.json",
			wantBody: `{"name":"City Parks"}`,
		},
		{
			name:     "description",
			call:     func(ctx context.Context, d *Dataset) error { return d.SetDescription(ctx, "All parks") },
			wantURI:  "/views/abcd-1234.json",
			wantBody: `{"description":"All parks"}`,
		},
		{
			name:     "tags",
			call:     func(ctx context.Context, d *Dataset) error { return d.SetTags(ctx, []string{"parks", "green"}) },
			wantURI:  "/views/abcd-1234.json",
			wantBody: `{"tags":["parks","green"]}`,
		},
		{
			name:     "no tags",
			call:     func(ctx context.Context, d *Dataset) error { return d.SetTags(ctx, nil) },
			wantURI:  "/views/abcd-1234.json",
			wantBody: `{"tags":[]}`,
		},
		{
			name: "attribution",
			call: func(ctx context.Context, d *Dataset) error {
				return d.SetAttribution(ctx, "Parks Department", "https://parks.example.com")
			},
			wantURI:  "/views/abcd-1234.json",
			wantBody: `{"attribution":"Parks Department","attributionLink":"https://parks.example.com"}`,
		},
		{
			name:    "public",
			call:    func(ctx context.Context, d *Dataset) error { return d.SetPublic(ctx, true) },
			wantURI: "/views/abcd-1234.json?method=setPermission&value=public.read",
		},
		{
			name:    "private",
			call:    func(ctx context.Context, d *Dataset) error { return d.SetPublic(ctx, false) },
			wantURI: "/views/abcd-1234.json?method=setPermission&value=private",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := newFakeSite(t, func(r recordedRequest) (int, string) {
				return http.StatusOK, `{"id":"abcd-1234"}`
			})
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			require.NoError(t, tt.call(ctx, site.newClient(ctx).Dataset("abcd-1234")))
			requests := site.recorded()
			require.Len(t, requests, 1)
			assert.Equal(t, http.MethodPut, requests[0].Method)
			assert.Equal(t, tt.wantURI, requests[0].URI)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, requests[0].Body)
			} else {
				assert.Empty(t, requests[0].Body)
			}
		})
	}
}

func TestColumns(t *testing.T) {
	site := newFakeSite(t, func(r recordedRequest) (int, string) {
		if r.Method == http.MethodPost {
			return http.StatusOK, `{"id":3,"name":"Acres","fieldName":"acres","dataTypeName":"number","position":2}`
		}
		return http.StatusOK, `[{"id":2,"name":"Name","fieldName":"name","dataTypeName":"text","position":1}]`
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dataset := site.newClient(ctx).Dataset("abcd-1234")

	columns, err := dataset.Columns(ctx)
	require.NoError(t, err)
	require.Len(t, columns, 1)
	assert.Equal(t, "name", columns[0].FieldName)
	assert.Equal(t, "text", columns[0].DataTypeName)

	created, err := dataset.AddColumn(ctx, model.Column{Name: "Acres", DataTypeName: "number"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), created.ID)
	assert.Equal(t, "acres", created.FieldName)

	requests := site.recorded()
	require.Len(t, requests, 2)
	assert.Equal(t, "/views/abcd-1234/columns.json", requests[1].URI)
	assert.JSONEq(t, `{"name":"Acres","dataTypeName":"number"}`, requests[1].Body)
}

func TestRows(t *testing.T) {
	site := newFakeSite(t, func(r recordedRequest) (int, string) {
		switch r.Method {
		case http.MethodGet:
			return http.StatusOK, `[{"_id":1,"name":"Central"},{"_id":2,"name":"Riverside"}]`
		case http.MethodPost:
			return http.StatusOK, `{"_id":3,"name":"Lakeside"}`
		case http.MethodPut:
			return http.StatusOK, `{"_id":3,"name":"Lakeshore"}`
		default:
			return http.StatusOK, ``
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dataset := site.newClient(ctx).Dataset("abcd-1234")

	rows, err := dataset.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Riverside", rows[1]["name"])

	created, err := dataset.AddRow(ctx, model.Row{"name": "Lakeside"})
	require.NoError(t, err)
	assert.Equal(t, float64(3), created["_id"])

	require.NoError(t, dataset.UpdateRow(ctx, "3", model.Row{"name": "Lakeshore"}))
	require.NoError(t, dataset.DeleteRow(ctx, "3"))

	requests := site.recorded()
	require.Len(t, requests, 4)
	assert.Equal(t, "/views/abcd-1234/rows.json", requests[0].URI)
	assert.Equal(t, "/views/abcd-1234/rows.json", requests[1].URI)
	assert.Equal(t, "/views/abcd-1234/rows/3.json", requests[2].URI)
	assert.Equal(t, http.MethodDelete, requests[3].Method)
	assert.Equal(t, "/views/abcd-1234/rows/3.json", requests[3].URI)
}

func TestDelete(t *testing.T) {
	site := newFakeSite(t, func(r recordedRequest) (int, string) {
		return http.StatusOK, ``
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, site.newClient(ctx).Dataset("abcd-1234").Delete(ctx))
	requests := site.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodDelete, requests[0].Method)
	assert.Equal(t, "/views/abcd-1234.json", requests[0].URI)
}

func TestGetWithEmptyBodyIsRejected(t *testing.T) {
	site := newFakeSite(t, func(r recordedRequest) (int, string) {
		return http.StatusOK, ``
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := site.newClient(ctx).Dataset("abcd-1234").Metadata(ctx)
	assert.Error(t, err)
}
