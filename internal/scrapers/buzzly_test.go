package scrapers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBuzzly(t *testing.T) {
	assert.True(t, isBuzzly(testURL(t, "https://buzzly.art/~koda/art/calm-flight")))
	assert.True(t, isBuzzly(testURL(t, "https://www.buzzly.art/~koda/art/calm-flight")))
	assert.False(t, isBuzzly(testURL(t, "https://buzzly.example/~koda/art/calm-flight")))
}

const buzzlyPageFixture = `<!DOCTYPE html><html><head>
<meta property="og:image" content="https://submissions.buzzly.art/full/calm-flight.png"/>
<meta property="og:description" content="A gryphon gliding at dusk."/>
</head><body></body></html>`

func TestScrapeBuzzly(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, buzzlyPageFixture)
	}))
	defer ts.Close()

	svc := newTestService(t)
	u := testURL(t, ts.URL+"/~koda/art/calm-flight")

	result, err := svc.scrapeBuzzly(context.Background(), u)
	require.NoError(t, err)
	require.NotNil(t, result.Data)

	data := result.Data
	assert.Equal(t, u.String(), *data.SourceURL)
	assert.Equal(t, "koda", *data.AuthorName)
	require.NotNil(t, data.Description)
	assert.Equal(t, "A gryphon gliding at dusk.", *data.Description)
	require.Len(t, data.Images, 1)
	assert.Equal(t, "https://submissions.buzzly.art/full/calm-flight.png", data.Images[0].URL)
}

func TestScrapeBuzzly_NoOGImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><head></head><body></body></html>")
	}))
	defer ts.Close()

	svc := newTestService(t)
	result, err := svc.scrapeBuzzly(context.Background(), testURL(t, ts.URL+"/~koda/art/calm-flight"))
	require.NoError(t, err)
	assert.True(t, result.IsNone())
}

func TestScrapeBuzzly_NonSubmissionPath(t *testing.T) {
	svc := newTestService(t)
	result, err := svc.scrapeBuzzly(context.Background(), testURL(t, "https://buzzly.art/~koda"))
	require.NoError(t, err)
	assert.True(t, result.IsNone())
}
