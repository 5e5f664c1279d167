package table

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/offalexp/ceSSHar/pkg/models"
	"github.com/offalexp/ceSSHar/pkg/portstats"
	"github.com/offalexp/ceSSHar/pkg/safety"
)

func TestSummaryTable(t *testing.T) {
	summary := models.NewRunSummary()

	ok := models.NewRunRecord("10.0.0.1:22")
	ok.Hostname = "core-sw1"
	ok.OutputFile = "/tmp/out/core-sw1-240309-140507.txt"
	ok.Add(models.CommandResult{Command: "show clock", Status: models.CommandDone})
	ok.Add(models.CommandResult{Command: "show tech", Status: models.CommandBailed})
	ok.Add(models.CommandResult{Command: "reload", Status: models.CommandBlocked})
	ok.Finalize(nil)
	summary.Add(ok)

	failed := models.NewRunRecord("10.0.0.2:22")
	failed.Finalize(models.NewConnectionError(models.FailureAuthentication, "10.0.0.2:22", errors.New("denied")))
	summary.Add(failed)

	var buf bytes.Buffer
	st := NewSummaryTable(&buf)
	st.AddSummary(summary)
	st.Render()

	out := buf.String()
	assert.Contains(t, out, "HOSTNAME")
	assert.Contains(t, out, "core-sw1")
	assert.Contains(t, out, "core-sw1-240309-140507.txt")
	assert.NotContains(t, out, "/tmp/out")
	assert.Contains(t, out, "AuthenticationFailed")
	assert.Equal(t, 2, st.rows)
}

func TestVerdictTable(t *testing.T) {
	var buf bytes.Buffer
	vt := NewVerdictTable(&buf)
	f := safety.NewFilter()
	for _, cmd := range []string{"show version", "reload", "delete flash:old.bin"} {
		vt.AddVerdict(f.Check(cmd))
	}
	vt.Render()

	assert.Equal(t, 2, vt.Blocked())
	assert.Contains(t, buf.String(), "show version")
	assert.Contains(t, buf.String(), "do no harm sensor")
}

func TestPortTable(t *testing.T) {
	var buf bytes.Buffer
	pt := NewPortTable(&buf)
	stats := portstats.Stats{Name: "Gi0/1", Status: "up", Protocol: "up", Reliability: 255, TxLoad: 51, LoadScale: 255, Parsed: true}
	pt.AddRow(PortRow{Device: "core-sw1", Interface: "Gi0/1", Stats: stats})
	pt.AddRow(PortRow{Device: "core-sw1", Interface: "Gi0/2", Stats: stats, Problems: []string{"9 CRC"}})
	pt.AddRow(PortRow{Device: "edge", Interface: "Gi0/3", Err: errors.New("connect failed")})
	pt.Render()

	assert.Equal(t, 2, pt.Unhealthy())
	out := buf.String()
	assert.Contains(t, out, "up/up")
	assert.Contains(t, out, "20.0")
	assert.Contains(t, out, "9 CRC")
	assert.Contains(t, out, "connect failed")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
