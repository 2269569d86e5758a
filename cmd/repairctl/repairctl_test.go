package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BearBump/RepairBox/internal/models"
	"github.com/BearBump/RepairBox/internal/services/timeline"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCodeCommands(t *testing.T) {
	out, err := run(t, "code", "gen", "-n", "3", "--tag", "abc")
	require.NoError(t, err)
	lines := strings.Fields(out)
	require.Len(t, lines, 3)
	for _, l := range lines {
		require.True(t, strings.HasPrefix(l, "ABC-"), l)

		checked, err := run(t, "code", "check", strings.ToLower(l), "--tag", "ABC")
		require.NoError(t, err)
		require.Equal(t, l+" valid\n", checked)
	}

	_, err = run(t, "code", "check", "FAG-IIIIII")
	require.Error(t, err)

	_, err = run(t, "code", "gen", "-n", "0")
	require.Error(t, err)
}

func TestRepairCommands_Flow(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ctl.db")

	out, err := run(t, "--sqlite", db, "intake", "--name", "Paolo", "--phone", "3391112233", "--plate", "gg 111 hh", "--kind", "accident")
	require.NoError(t, err)
	fields := strings.Fields(out)
	require.Len(t, fields, 2)
	id, code := fields[0], fields[1]

	out, err = run(t, "--sqlite", db, "transition", id, "accepted", "--note", "preventivo ok")
	require.NoError(t, err)
	require.Equal(t, "applied: INTAKE -> ACCEPTED (v2)\n", out)

	_, err = run(t, "--sqlite", db, "transition", id, "in_progress", "--expected-status", "INTAKE")
	require.ErrorIs(t, err, models.ErrConcurrentModification)

	_, err = run(t, "--sqlite", db, "transition", id, "intake")
	require.ErrorIs(t, err, models.ErrRegressionNotAllowed)

	_, err = run(t, "--sqlite", db, "correct", id, "intake")
	require.ErrorIs(t, err, models.ErrValidation)

	out, err = run(t, "--sqlite", db, "correct", id, "intake", "--note", "accettata per errore")
	require.NoError(t, err)
	require.Equal(t, "corrected: ACCEPTED -> INTAKE (v3)\n", out)

	out, err = run(t, "--sqlite", db, "timeline", code, "--json")
	require.NoError(t, err)
	var steps []timeline.Step
	require.NoError(t, json.Unmarshal([]byte(out), &steps))
	require.Len(t, steps, 7)
	require.True(t, steps[0].Current)

	out, err = run(t, "--sqlite", db, "timeline", id)
	require.NoError(t, err)
	require.Contains(t, out, "[>]")
	require.Contains(t, out, "INTAKE")

	out, err = run(t, "--sqlite", db, "list", "-q", "GG111")
	require.NoError(t, err)
	require.Contains(t, out, code)
	require.Contains(t, out, "GG111HH")

	_, err = run(t, "--sqlite", db, "timeline", "missing-id")
	require.ErrorIs(t, err, models.ErrNotFound)
}
