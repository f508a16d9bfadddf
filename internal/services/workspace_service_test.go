package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autodash/internal/dashboard"
	"autodash/internal/history"
	"autodash/pkg/dashtypes"
)

func newTestWorkspace(t *testing.T) *WorkspaceService {
	t.Helper()
	w := NewWorkspaceService(t.TempDir())
	require.NoError(t, w.Initialize())
	return w
}

func TestWorkspaceService_Initialize(t *testing.T) {
	assert.ErrorContains(t, NewWorkspaceService("").Initialize(), "not configured")

	w := newTestWorkspace(t)
	assert.Equal(t, "workspace", w.Name())
	info, err := os.Stat(filepath.Join(w.Dir(), "dashboards"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWorkspaceService_Current(t *testing.T) {
	w := newTestWorkspace(t)

	_, err := w.Current()
	assert.ErrorIs(t, err, ErrNoWorkspace)

	info := dashtypes.DatasetInfo{DatasetID: "ds_1", Filename: "sales.csv", ColumnNames: []string{"region", "sales"}, RowCount: 120}
	require.NoError(t, w.SetCurrent(info))

	got, err := w.Current()
	require.NoError(t, err)
	assert.Equal(t, info, got)
}

func TestWorkspaceService_SaveLoad(t *testing.T) {
	w := newTestWorkspace(t)

	charts := []dashtypes.ChartSpec{
		{ID: "c1", ChartType: "bar", Title: "Sales by region", ChartSpec: "fig = px.bar(df)", ChartIndex: 0,
			Figure: &dashtypes.Figure{Data: []dashtypes.Trace{{"type": "bar", "x": []any{"N", "S"}, "y": []any{1.0, 2.0}}}}},
	}
	st := dashboard.State{
		DatasetID: "ds_1",
		Title:     "Sales",
		Charts:    charts,
		Messages: []dashtypes.ChatMessage{
			{ID: "m1", Type: dashtypes.MessageUser, Message: "show sales", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		},
		Filters:        map[string]dashtypes.FilterMap{},
		ExpectedCharts: 1,
		History:        history.State[[]dashtypes.ChartSpec]{Entries: [][]dashtypes.ChartSpec{nil, charts}, Index: 1},
	}
	require.NoError(t, w.Save(st))

	loaded, err := w.Load("ds_1")
	require.NoError(t, err)
	assert.Equal(t, "Sales", loaded.Title)
	require.Len(t, loaded.Charts, 1)
	assert.Equal(t, "c1", loaded.Charts[0].ID)
	assert.Equal(t, "bar", loaded.Charts[0].Figure.Data[0].Type())
	require.Len(t, loaded.Messages, 1)
	assert.Equal(t, "show sales", loaded.Messages[0].Message)
	assert.Equal(t, 1, loaded.History.Index)
	assert.Len(t, loaded.History.Entries, 2)
}

func TestWorkspaceService_SaveRequiresDataset(t *testing.T) {
	w := newTestWorkspace(t)
	assert.Error(t, w.Save(dashboard.State{}))
}

func TestWorkspaceService_LoadMissing(t *testing.T) {
	w := newTestWorkspace(t)

	st, err := w.Load("ds_unknown")
	require.NoError(t, err)
	assert.Equal(t, "ds_unknown", st.DatasetID)
	assert.Empty(t, st.Charts)
}

func TestWorkspaceService_StatePathIsSanitised(t *testing.T) {
	w := newTestWorkspace(t)
	path := w.statePath("../../etc/passwd")
	assert.Equal(t, filepath.Join(w.Dir(), "dashboards"), filepath.Dir(path))
}

func TestWorkspaceService_Recent(t *testing.T) {
	w := newTestWorkspace(t)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	list, err := w.Recent()
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, w.Save(dashboard.State{DatasetID: "ds_a", Title: "A"}))
	clock = clock.Add(time.Hour)
	require.NoError(t, w.Save(dashboard.State{DatasetID: "ds_b", Title: "B", Charts: []dashtypes.ChartSpec{{ID: "x"}}}))
	clock = clock.Add(time.Hour)
	// Saving again moves it to the front without duplicating
	require.NoError(t, w.Save(dashboard.State{DatasetID: "ds_a", Title: "A2"}))

	list, err = w.Recent()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A2", list[0].Title)
	assert.Equal(t, "ds_b", list[1].ID)
	assert.Equal(t, 1, list[1].ChartCount)
}

func TestWorkspaceService_CacheRecent(t *testing.T) {
	w := newTestWorkspace(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var remote []dashtypes.DashboardMetadata
	for i := 0; i < maxRecent+5; i++ {
		remote = append(remote, dashtypes.DashboardMetadata{
			ID:        string(rune('a'+i%26)) + string(rune('a'+i/26)),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}
	require.NoError(t, w.CacheRecent(remote))

	list, err := w.Recent()
	require.NoError(t, err)
	assert.Len(t, list, maxRecent)
	assert.Equal(t, remote[len(remote)-1].ID, list[0].ID)
}
