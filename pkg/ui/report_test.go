package ui

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/lodestone/pkg/download"
	"github.com/arthur-debert/lodestone/pkg/plan"
	"github.com/arthur-debert/lodestone/pkg/types"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
		wantErr  bool
	}{
		{"auto", FormatAuto, false},
		{"", FormatAuto, false},
		{"term", FormatTerminal, false},
		{"terminal", FormatTerminal, false},
		{"text", FormatText, false},
		{"plain", FormatText, false},
		{"json", FormatJSON, false},
		{"yaml", FormatAuto, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRenderReportSuccess(t *testing.T) {
	var buf bytes.Buffer
	report := &download.Report{Results: []download.TaskResult{
		{Task: types.ArtifactTask{ID: "client/1.21"}, State: types.TaskDone},
	}}
	require.NoError(t, RenderReport(&buf, FormatText, report))
	assert.Contains(t, buf.String(), "Done: 1 artifact(s) installed")
}

func TestRenderReportPartialFailure(t *testing.T) {
	var buf bytes.Buffer
	report := &download.Report{Results: []download.TaskResult{
		{Task: types.ArtifactTask{ID: "client/1.21"}, State: types.TaskDone},
		{Task: types.ArtifactTask{ID: "lib/broken"}, State: types.TaskFailed, Err: errors.New("boom")},
	}}
	require.NoError(t, RenderReport(&buf, FormatText, report))
	out := buf.String()
	assert.Contains(t, out, "1 failure(s) out of 2")
	assert.Contains(t, out, "lib/broken")
	assert.Contains(t, out, "boom")
}

func TestRenderReportJSON(t *testing.T) {
	var buf bytes.Buffer
	report := &download.Report{Results: []download.TaskResult{
		{Task: types.ArtifactTask{ID: "client/1.21"}, State: types.TaskDone, Attempts: 1},
	}}
	require.NoError(t, RenderReport(&buf, FormatJSON, report))

	var decoded struct {
		Cancelled bool `json:"cancelled"`
		Tasks     []struct {
			ID    string `json:"id"`
			State string `json:"state"`
		} `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Tasks, 1)
	assert.Equal(t, "done", decoded.Tasks[0].State)
}

func TestRenderVerify(t *testing.T) {
	var buf bytes.Buffer
	p := &plan.Plan{
		Version:   "1.21",
		Tasks:     []types.ArtifactTask{{ID: "lib/missing", Size: 2048}},
		Satisfied: []types.ArtifactTask{{ID: "client/1.21"}},
	}
	require.NoError(t, RenderVerify(&buf, FormatText, p))
	out := buf.String()
	assert.Contains(t, out, "1 missing or invalid")
	assert.Contains(t, out, "lib/missing")
	assert.Contains(t, out, "2.0 KiB")
}
