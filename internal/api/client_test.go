package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autodash/pkg/dashtypes"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/", "tok-123", WithTimeout(5*time.Second)), server
}

func readJSON(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, sonic.Unmarshal(body, &out))
	return out
}

func TestNewClient_TrimsBaseURL(t *testing.T) {
	c := NewClient("http://localhost:8000///", "")
	assert.Equal(t, "http://localhost:8000", c.BaseURL())
	assert.Equal(t, DefaultTimeout, c.timeout)
}

func TestClient_SendsCredentials(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		cookie, err := r.Cookie("session")
		require.NoError(t, err)
		assert.Equal(t, "tok-123", cookie.Value)
		assert.Equal(t, "autodash-client", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"dashboards":[]}`))
	})

	_, err := client.RecentDashboards(context.Background())
	require.NoError(t, err)
}

func TestClient_EndpointEscapesSegments(t *testing.T) {
	var gotPath string
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"notes":"hello"}`))
	})

	notes, err := client.GetNotes(context.Background(), "a/b c", 3)
	require.NoError(t, err)
	assert.Equal(t, "hello", notes)
	assert.Equal(t, "/api/data/datasets/a%2Fb%20c/charts/3/notes", gotPath)
}

func TestDecodeError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		detail string
	}{
		{"plain detail", 400, `{"detail":"Dataset not found"}`, "Dataset not found"},
		{"json string detail", 400, `{"detail":"{\"message\":\"Column missing\"}"}`, "Column missing"},
		{"object detail", 422, `{"detail":{"error":"bad query"}}`, "bad query"},
		{"list detail", 422, `{"detail":[{"msg":"field required"},{"msg":"too long"}]}`, "field required; too long"},
		{"no body", 500, ``, ""},
		{"not json", 502, `<html>bad gateway</html>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := decodeError(tt.status, "status text", []byte(tt.body))
			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.detail, httpErr.Detail)
			if tt.detail == "" {
				assert.Equal(t, "status text", httpErr.Message())
			} else {
				assert.Equal(t, tt.detail, httpErr.Message())
			}
		})
	}
}

func TestDecodeError_InsufficientCredits(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"object", `{"detail":{"error":"insufficient_credits","required":5,"balance":1.5,"plan":"free"}}`},
		{"encoded string", `{"detail":"{\"code\":\"insufficient_credits\",\"required\":5,\"balance\":1.5,\"plan\":\"free\"}"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := decodeError(402, "402 Payment Required", []byte(tt.body))
			var credits *InsufficientCreditsError
			require.True(t, errors.As(err, &credits))
			assert.Equal(t, 5.0, credits.Required)
			assert.Equal(t, 1.5, credits.Balance)
			assert.Equal(t, "free", credits.Plan)
			assert.Contains(t, credits.Error(), "insufficient credits")
		})
	}
}

func TestDecodeError_402WithoutCreditsCode(t *testing.T) {
	err := decodeError(402, "402 Payment Required", []byte(`{"detail":"card declined"}`))
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, "card declined", httpErr.Detail)
}

func TestClient_HTTPErrorSurfaced(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Dataset not found"}`))
	})

	_, err := client.Preview(context.Background(), "ds1", 10)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, "backend returned 404: Dataset not found", err.Error())
}

func TestClient_Upload(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/data/upload", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "sales.csv", header.Filename)
		assert.Equal(t, "region,total\nnorth,10\n", string(data))

		_, _ = w.Write([]byte(`{"dataset_id":"ds1","file_info":{"filename":"sales.csv","column_names":["region","total"],"preview":[{"region":"north","total":10}],"row_count":1}}`))
	})

	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte("region,total\nnorth,10\n"), 0o600))

	info, err := client.Upload(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "ds1", info.DatasetID)
	assert.Equal(t, []string{"region", "total"}, info.ColumnNames)
	require.Len(t, info.Preview, 1)
	assert.Equal(t, 10.0, info.Preview[0]["total"])
}

func TestClient_UploadMissingFile(t *testing.T) {
	client := NewClient("http://localhost:1", "")
	_, err := client.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open dataset")
}

func TestClient_LoadSample_TolerantFields(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(`{"dataset_id":"sample","dataset_info":{"name":"Superstore","columns":["a","b"],"rows":42}}`))
	})

	info, err := client.LoadSample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Superstore", info.Filename)
	assert.Equal(t, []string{"a", "b"}, info.ColumnNames)
	assert.Equal(t, 42, info.RowCount)
}

func TestClient_PreviewAndFull(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/data/datasets/ds1/preview":
			assert.Equal(t, "5", r.URL.Query().Get("rows"))
		case "/api/data/datasets/ds1/full":
			assert.Equal(t, "100", r.URL.Query().Get("limit"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"columns":["a"],"rows":[{"a":1}],"total_rows":1}`))
	})

	table, err := client.Preview(context.Background(), "ds1", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, table.Columns)

	table, err = client.FullData(context.Background(), "ds1", 100)
	require.NoError(t, err)
	assert.Equal(t, 1, table.TotalRows)
}

func TestClient_AnalyzeJSON(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body := readJSON(t, r)
		assert.Equal(t, "show sales", body["query"])
		assert.Equal(t, "ds1", body["dataset_id"])
		assert.Equal(t, false, body["stream"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"charts":[{"chart_spec":"fig = px.bar()","chart_type":"bar","title":"Sales","figure":{"data":[{"type":"bar","x":["a"],"y":[1]}]}}],"kpi_cards":[],"message":"done","total_charts":1}`))
	})

	resp, err := client.Analyze(context.Background(), AnalyzeRequest{Query: "show sales", DatasetID: "ds1"})
	require.NoError(t, err)
	defer func() { _ = resp.Close() }()

	require.Nil(t, resp.Stream)
	require.NotNil(t, resp.Result)
	require.Len(t, resp.Result.Charts, 1)
	assert.Equal(t, "Sales", resp.Result.Charts[0].Title)
	assert.Equal(t, "bar", resp.Result.Charts[0].Figure.Data[0].Type())
	require.NotNil(t, resp.Result.TotalCharts)
	assert.Equal(t, 1, *resp.Result.TotalCharts)
	assert.Nil(t, resp.Result.TotalKPIs)
}

func TestClient_AnalyzeStream(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept"), "text/event-stream")
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		_, _ = w.Write([]byte("data: {\"type\":\"progress\",\"message\":\"Thinking\"}\n\n"))
		_, _ = w.Write([]byte("data: {\"type\":\"complete\",\"total_charts\":0,\"total_kpis\":0}\n\n"))
	})

	resp, err := client.Analyze(context.Background(), AnalyzeRequest{Query: "q", DatasetID: "ds1", Stream: true})
	require.NoError(t, err)
	require.NotNil(t, resp.Stream)
	defer func() { _ = resp.Close() }()

	var types []string
	for resp.Stream.Next() {
		types = append(types, resp.Stream.Current().Type)
	}
	require.NoError(t, resp.Stream.Err())
	assert.Equal(t, []string{"progress", "complete"}, types)
}

func TestClient_ChatAndRetry(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body := readJSON(t, r)
		switch r.URL.Path {
		case "/api/chat":
			assert.Equal(t, "make it red", body["message"])
			_, _ = w.Write([]byte(`{"response":"Here you go","code_type":"plotly_edit","executable_code":"fig.update_traces(marker_color='red')","matched_chart":{"chart_index":1,"title":"Sales"}}`))
		case "/api/chat/retry":
			assert.Equal(t, "make it red", body["original_query"])
			_, _ = w.Write([]byte(`{"response":"Retried"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	resp, err := client.Chat(context.Background(), ChatRequest{Message: "make it red", DatasetID: "ds1"})
	require.NoError(t, err)
	assert.Equal(t, dashtypes.CodePlotlyEdit, resp.CodeType)
	require.NotNil(t, resp.MatchedChart)
	assert.Equal(t, 1, resp.MatchedChart.ChartIndex)

	resp, err = client.Retry(context.Background(), RetryRequest{OriginalQuery: "make it red", DatasetID: "ds1"})
	require.NoError(t, err)
	assert.Equal(t, "Retried", resp.Response)
}

func TestClient_ExecuteCode(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body := readJSON(t, r)
		assert.Equal(t, "analysis", body["code_type"])
		_, hasIndex := body["chart_index"]
		assert.False(t, hasIndex)
		_, _ = w.Write([]byte(`{"success":true,"output":"mean = 4.2"}`))
	})

	resp, err := client.ExecuteCode(context.Background(), ExecuteCodeRequest{Code: "df.mean()", DatasetID: "ds1", CodeType: dashtypes.CodeAnalysis})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "mean = 4.2", resp.Output)
}

func TestClient_FixVisualization(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			body := readJSON(t, r)
			assert.Equal(t, float64(2), body["chart_index"])
			assert.Equal(t, "boom", body["error"])
			_, _ = w.Write([]byte(`{"success":true,"fixed_code":"fixed","figure":{"data":[{"type":"bar","y":[1]}]}}`))
		})
		resp, err := client.FixVisualization(context.Background(), FixRequest{DatasetID: "ds1", ChartIndex: 2, Error: "boom"})
		require.NoError(t, err)
		assert.Equal(t, "fixed", resp.FixedCode)
		require.NotNil(t, resp.Figure)
	})

	t.Run("no figure", func(t *testing.T) {
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"error":"could not repair"}`))
		})
		_, err := client.FixVisualization(context.Background(), FixRequest{DatasetID: "ds1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "could not repair")
	})
}

func TestClient_ApplyFilter_EmptyMapSent(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body := readJSON(t, r)
		filters, ok := body["filters"].(map[string]any)
		require.True(t, ok, "filters must be an object, not null")
		assert.Empty(t, filters)
		_, _ = w.Write([]byte(`{"figure":{"data":[{"type":"bar","y":[1]}]}}`))
	})

	resp, err := client.ApplyFilter(context.Background(), FilterRequest{DatasetID: "ds1", ChartIndex: 0})
	require.NoError(t, err)
	require.NotNil(t, resp.Figure)
}

func TestClient_ChartMutations(t *testing.T) {
	var calls []string
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/data/add-chart":
			_, _ = w.Write([]byte(`{"chart":{"chart_type":"line","title":"Trend"}}`))
		case "/api/data/add-kpi":
			_, _ = w.Write([]byte(`{"chart":{"chart_type":"kpi_card","title":"Revenue"}}`))
		case "/api/data/edit-kpi":
			body := readJSON(t, r)
			assert.Equal(t, float64(1), body["chart_index"])
			_, _ = w.Write([]byte(`{"chart":{"chart_type":"kpi_card","title":"Profit"}}`))
		case "/api/data/datasets/ds1/charts/2":
			w.WriteHeader(http.StatusNoContent)
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	})
	ctx := context.Background()

	chart, err := client.AddChart(ctx, AddChartRequest{DatasetID: "ds1", Query: "trend"})
	require.NoError(t, err)
	assert.Equal(t, "Trend", chart.Title)

	kpi, err := client.AddKPI(ctx, KPIRequest{DatasetID: "ds1", Query: "revenue"})
	require.NoError(t, err)
	assert.True(t, kpi.IsKPI())

	kpi, err = client.EditKPI(ctx, "ds1", 1, "profit")
	require.NoError(t, err)
	assert.Equal(t, "Profit", kpi.Title)

	require.NoError(t, client.DeleteChart(ctx, "ds1", 2))

	assert.Equal(t, []string{
		"POST /api/data/add-chart",
		"POST /api/data/add-kpi",
		"POST /api/data/edit-kpi",
		"DELETE /api/data/datasets/ds1/charts/2",
	}, calls)
}

func TestClient_AddChartWithoutChart(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := client.AddChart(context.Background(), AddChartRequest{DatasetID: "ds1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carried no chart")
}

func TestClient_NotesInsightsShareColors(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "POST /api/data/datasets/ds1/charts/0/notes":
			assert.Equal(t, "note text", readJSON(t, r)["notes"])
			_, _ = w.Write([]byte(`{"success":true}`))
		case "POST /api/data/datasets/ds1/charts/0/insights":
			_, _ = w.Write([]byte(`{"insights":"Sales peak in Q4."}`))
		case "POST /api/data/datasets/ds1/share":
			_, _ = w.Write([]byte(`{"share_url":"https://autodash.example/s/abc","share_id":"abc"}`))
		case "PUT /api/data/datasets/ds1/dashboard/colors":
			assert.Equal(t, "ocean", readJSON(t, r)["color_theme"])
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})
	ctx := context.Background()

	require.NoError(t, client.SaveNotes(ctx, "ds1", 0, "note text"))

	insights, err := client.Insights(ctx, "ds1", 0)
	require.NoError(t, err)
	assert.Equal(t, "Sales peak in Q4.", insights)

	link, err := client.Share(ctx, "ds1")
	require.NoError(t, err)
	assert.Equal(t, "https://autodash.example/s/abc", link.ShareURL)

	require.NoError(t, client.SetDashboardColors(ctx, "ds1", ColorsRequest{ColorTheme: "ocean"}))
}

func TestClient_ExportBinary(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body := readJSON(t, r)
		images, ok := body["images"].([]any)
		require.True(t, ok)
		assert.Len(t, images, 1)
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("PK\x03\x04zip"))
	})

	data, err := client.ChartsZip(context.Background(), ExportRequest{DatasetID: "ds1", Images: []ExportImage{{ChartIndex: 0, Title: "Sales", Image: "aGk="}}})
	require.NoError(t, err)
	assert.Equal(t, []byte("PK\x03\x04zip"), data)
}

func TestClient_TimeoutApplies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "", WithTimeout(50*time.Millisecond))
	_, err := client.RecentDashboards(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClient_AnalyzeJSONTimeoutApplies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "", WithTimeout(50*time.Millisecond))
	_, err := client.Analyze(context.Background(), AnalyzeRequest{Query: "q", DatasetID: "ds1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClient_AnalyzeStreamOutlivesTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		time.Sleep(150 * time.Millisecond)
		_, _ = io.WriteString(w, "data: {\"type\":\"progress\",\"message\":\"working\"}\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "", WithTimeout(50*time.Millisecond))
	resp, err := client.Analyze(context.Background(), AnalyzeRequest{Query: "q", DatasetID: "ds1", Stream: true})
	require.NoError(t, err)
	defer func() { _ = resp.Close() }()

	require.NotNil(t, resp.Stream)
	require.True(t, resp.Stream.Next(), "stream error: %v", resp.Stream.Err())
	assert.Equal(t, "progress", resp.Stream.Current().Type)
}
