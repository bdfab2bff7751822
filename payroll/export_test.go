package payroll_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/payroll"
)

func TestWriteCSV(t *testing.T) {
	// GIVEN: A report with one night-shift line
	// WHEN: Writing it as CSV
	// THEN: A header row plus one row with amounts fixed to two decimals

	rec := dayRecord(t,
		step{attendance.EventIn, at(20, 0)},
		step{attendance.EventOut, at(23, 30)},
	)
	line, err := payroll.Calculate(context.Background(), rec, hourly("1200"), nil)
	require.NoError(t, err)

	report := payroll.Report{
		Month: march,
		Staff: []payroll.StaffPayroll{{StaffID: "staff-1", Lines: []payroll.Line{line}}},
	}

	var buf bytes.Buffer
	require.NoError(t, payroll.WriteCSV(&buf, report.Rows()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, payroll.RowHeader, records[0])
	assert.Equal(t, []string{
		"2025-03-10", "staff-1", "store-1", "hourly",
		"210", "90", "0", "false",
		"2400.00", "450.00", "0.00", "0.00", "2850.00",
	}, records[1])
}

func TestWriteCSV_EmptyReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, payroll.WriteCSV(&buf, payroll.Report{}.Rows()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1, "header only")
}
