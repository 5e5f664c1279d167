// Package table renders the tabular reports: run summary, safety verdicts and port health.
package table

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/offalexp/ceSSHar/pkg/models"
	"github.com/offalexp/ceSSHar/pkg/portstats"
	"github.com/offalexp/ceSSHar/pkg/safety"
)

const (
	HostWidth     = 24
	HostnameWidth = 20
	ReasonWidth   = 60
	ProblemWidth  = 48
)

func newWriter(w io.Writer, header []string) *tablewriter.Table {
	if w == nil {
		w = os.Stdout
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	return table
}

// SummaryTable has one row per device of a finished run.
type SummaryTable struct {
	table *tablewriter.Table
	rows  int
}

func NewSummaryTable(w io.Writer) *SummaryTable {
	return &SummaryTable{table: newWriter(w, []string{
		"", "Host", "Hostname", "Status", "Run", "Bailed", "Blocked", "Output",
	})}
}

func (st *SummaryTable) AddRecord(r *models.RunRecord) {
	status := "ok"
	switch {
	case r.Failure != nil:
		status = models.FailureKindOf(r.Failure).String()
	case r.UsedBackup:
		status = "ok (backup)"
	}
	st.table.Append([]string{
		string(r.StatusCode()),
		truncate(r.Address, HostWidth),
		truncate(r.Hostname, HostnameWidth),
		status,
		strconv.Itoa(r.Count(models.CommandDone)),
		strconv.Itoa(r.Count(models.CommandBailed) + r.Count(models.CommandCancelled)),
		strconv.Itoa(r.Count(models.CommandBlocked)),
		filepath.Base(r.OutputFile),
	})
	st.rows++
}

func (st *SummaryTable) AddSummary(s *models.RunSummary) {
	for _, r := range s.Records() {
		st.AddRecord(r)
	}
}

func (st *SummaryTable) Render() {
	st.table.Render()
}

// VerdictTable lists the safety verdict of every screened command.
type VerdictTable struct {
	table   *tablewriter.Table
	blocked int
}

func NewVerdictTable(w io.Writer) *VerdictTable {
	return &VerdictTable{table: newWriter(w, []string{"", "Command", "Rule", "Reason"})}
}

func (vt *VerdictTable) AddVerdict(v safety.Verdict) {
	code, reason := models.StatusSucceeded, "safe"
	if v.Blocked {
		code, reason = models.StatusBlocked, v.Reason
		vt.blocked++
	}
	vt.table.Append([]string{string(code), v.Command, v.Rule, truncate(reason, ReasonWidth)})
}

func (vt *VerdictTable) Blocked() int { return vt.blocked }

func (vt *VerdictTable) Render() {
	vt.table.Render()
}

// PortRow is one interface checked on one device.
type PortRow struct {
	Device    string
	Interface string
	Stats     portstats.Stats
	Problems  []string
	Err       error
}

type PortTable struct {
	table     *tablewriter.Table
	unhealthy int
}

func NewPortTable(w io.Writer) *PortTable {
	return &PortTable{table: newWriter(w, []string{
		"", "Device", "Interface", "Status", "Duplex", "Speed", "Rel", "Tx%", "Rx%", "In Err", "CRC", "Coll", "Problems",
	})}
}

func (pt *PortTable) AddRow(row PortRow) {
	if row.Err != nil {
		pt.unhealthy++
		pt.table.Append([]string{
			string(models.StatusFailed), row.Device, row.Interface,
			"", "", "", "", "", "", "", "", "", truncate(row.Err.Error(), ProblemWidth),
		})
		return
	}
	code := models.StatusSucceeded
	if len(row.Problems) > 0 {
		code = models.StatusFailed
		pt.unhealthy++
	}
	s := row.Stats
	status := s.Status
	if s.Protocol != "" {
		status = fmt.Sprintf("%s/%s", s.Status, s.Protocol)
	}
	pt.table.Append([]string{
		string(code),
		row.Device,
		row.Interface,
		status,
		s.Duplex,
		s.Speed,
		fmt.Sprintf("%d/255", s.Reliability),
		fmt.Sprintf("%.1f", s.TxPercent()),
		fmt.Sprintf("%.1f", s.RxPercent()),
		strconv.FormatInt(s.InputErrors, 10),
		strconv.FormatInt(s.CRC, 10),
		strconv.FormatInt(s.Collisions, 10),
		truncate(strings.Join(row.Problems, ", "), ProblemWidth),
	})
}

func (pt *PortTable) Unhealthy() int { return pt.unhealthy }

func (pt *PortTable) Render() {
	pt.table.Render()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
