package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/san-kum/cartpoles/internal/dynamo"
	"github.com/san-kum/cartpoles/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHistory() *sim.History {
	h := sim.NewHistory(0)
	h.Append(sim.Entry{State: dynamo.State{0, 0, 0.1, 0, -0.05, 0}, Control: dynamo.Control{0}, Time: 0})
	h.Append(sim.Entry{State: dynamo.State{0.001, 0.1, 0.11, 0.2, -0.06, -0.1}, Control: dynamo.Control{3.5}, Torque: 0.0175, Time: 0.01})
	h.Append(sim.Entry{State: dynamo.State{0.002, 0.12, 0.12, 0.25, -0.07, -0.15}, Control: dynamo.Control{-12}, Torque: -0.06, Time: 0.02})
	return h
}

func TestHeader(t *testing.T) {
	assert.Equal(t, []string{"s", "d_s", "theta_1", "d_theta_1", "u", "time", "T"}, Header(1))
	assert.Equal(t, []string{
		"s", "d_s", "theta_1", "d_theta_1", "theta_2", "d_theta_2", "u", "time", "T",
	}, Header(2))
}

func TestCSVRoundTrip(t *testing.T) {
	h := sampleHistory()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, h, 2))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "s,d_s,theta_1,d_theta_1,theta_2,d_theta_2,u,time,T", lines[0])

	back, poles, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, poles)
	assert.Equal(t, h.Entries(), back.Entries())
}

func TestWriteCSV_DimensionMismatch(t *testing.T) {
	h := sampleHistory()
	err := WriteCSV(&bytes.Buffer{}, h, 1)
	assert.True(t, errors.Is(err, dynamo.ErrDimensionMismatch))
}

func TestWriteJSON(t *testing.T) {
	h := sampleHistory()
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, h, 2, map[string]float64{"upright": 1}))

	var got exportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 3, got.Steps)
	assert.Equal(t, []float64{0, 0.01, 0.02}, got.Times)
	assert.Equal(t, -12.0, got.Controls[2][0])
	assert.Equal(t, 1.0, got.Metrics["upright"])
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	id, err := st.Save(RunMetadata{
		Preset:     "double",
		Poles:      2,
		Seed:       42,
		Dt:         0.01,
		Integrator: "rk4",
		Dynamics:   "nonlinear",
		Controller: "continuous",
		Metrics:    map[string]float64{"control_effort": 1.5},
	}, sampleHistory())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	meta, err := st.Load(id)
	require.NoError(t, err)
	assert.Equal(t, id, meta.ID)
	assert.Equal(t, "double", meta.Preset)
	assert.Equal(t, 3, meta.Steps)
	assert.Equal(t, 1.5, meta.Metrics["control_effort"])

	h, poles, err := st.LoadHistory(id)
	require.NoError(t, err)
	assert.Equal(t, 2, poles)
	assert.Equal(t, 3, h.Len())

	runs, err := st.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
}

func TestStoreMissing(t *testing.T) {
	st := New(t.TempDir())

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = st.Load("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
	_, _, err = st.LoadHistory("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}
