package scrapers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRaw(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		want        bool
	}{
		{name: "png", status: http.StatusOK, contentType: "image/png", want: true},
		{name: "jpeg", status: http.StatusOK, contentType: "image/jpeg", want: true},
		{name: "gif", status: http.StatusOK, contentType: "image/gif", want: true},
		{name: "svg", status: http.StatusOK, contentType: "image/svg+xml", want: true},
		{name: "webm", status: http.StatusOK, contentType: "video/webm", want: true},
		{name: "content type parameters ignored", status: http.StatusOK, contentType: "image/png; charset=binary", want: true},
		{name: "html page", status: http.StatusOK, contentType: "text/html", want: false},
		{name: "mp4 not allowed", status: http.StatusOK, contentType: "video/mp4", want: false},
		{name: "not found", status: http.StatusNotFound, contentType: "image/png", want: false},
		{name: "redirect not followed", status: http.StatusFound, contentType: "image/png", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method)
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			svc := newTestService(t)
			matched, err := svc.isRaw(context.Background(), testURL(t, ts.URL+"/img/view/4010154.png"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, matched)
		})
	}
}

func TestScrapeRaw(t *testing.T) {
	svc := newTestService(t)
	u := testURL(t, "https://static.example.art/img/view/4010154.png")

	result, err := svc.scrapeRaw(u)
	require.NoError(t, err)
	require.NotNil(t, result.Data)

	data := result.Data
	assert.Equal(t, u.String(), *data.SourceURL)
	assert.Nil(t, data.AuthorName)
	assert.Nil(t, data.Description)
	assert.Nil(t, data.AdditionalTags)
	require.Len(t, data.Images, 1)
	assert.Equal(t, u.String(), data.Images[0].URL)
	assert.Equal(t, u.String(), data.Images[0].CamoURL)
}

func TestScrapeRaw_CamoConfigured(t *testing.T) {
	svc := newTestService(t)
	svc.config.CamoKey = "deadbeef"
	svc.config.CamoHost = "camo.example.com"
	u := testURL(t, "https://static.example.art/img/view/4010154.png")

	result, err := svc.scrapeRaw(u)
	require.NoError(t, err)
	require.NotNil(t, result.Data)
	require.Len(t, result.Data.Images, 1)
	assert.Contains(t, result.Data.Images[0].CamoURL, "https://camo.example.com/")
}
