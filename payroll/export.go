package payroll

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/warp/attendance-engine/generic"
)

// Row is the flattened, tabular form of a Line for downstream rendering.
type Row struct {
	Date            string
	StaffID         string
	StoreID         string
	EmployeeType    string
	WorkMinutes     int
	NightMinutes    int
	OvertimeMinutes int
	IsHoliday       bool
	BaseAmount      string
	NightBonus      string
	HolidayBonus    string
	OvertimePay     string
	TotalAmount     string
}

// RowHeader is the column order used by Row.Strings and WriteCSV.
var RowHeader = []string{
	"date", "staff_id", "store_id", "employee_type",
	"work_minutes", "night_minutes", "overtime_minutes", "is_holiday",
	"base_amount", "night_bonus", "holiday_bonus", "overtime_pay", "total_amount",
}

func (l Line) Row() Row {
	return Row{
		Date:            l.Date.String(),
		StaffID:         string(l.StaffID),
		StoreID:         string(l.StoreID),
		EmployeeType:    string(l.EmployeeType),
		WorkMinutes:     l.WorkMinutes,
		NightMinutes:    l.NightMinutes,
		OvertimeMinutes: l.OvertimeMinutes,
		IsHoliday:       l.IsHoliday,
		BaseAmount:      l.BaseAmount.StringFixed(generic.MoneyPlaces),
		NightBonus:      l.NightBonus.StringFixed(generic.MoneyPlaces),
		HolidayBonus:    l.HolidayBonus.StringFixed(generic.MoneyPlaces),
		OvertimePay:     l.OvertimePay.StringFixed(generic.MoneyPlaces),
		TotalAmount:     l.TotalAmount.StringFixed(generic.MoneyPlaces),
	}
}

// Rows flattens the report, ordered by staff then date.
func (r Report) Rows() []Row {
	lines := r.Lines()
	rows := make([]Row, len(lines))
	for i, l := range lines {
		rows[i] = l.Row()
	}
	return rows
}

func (r Row) Strings() []string {
	return []string{
		r.Date, r.StaffID, r.StoreID, r.EmployeeType,
		strconv.Itoa(r.WorkMinutes), strconv.Itoa(r.NightMinutes), strconv.Itoa(r.OvertimeMinutes),
		strconv.FormatBool(r.IsHoliday),
		r.BaseAmount, r.NightBonus, r.HolidayBonus, r.OvertimePay, r.TotalAmount,
	}
}

// WriteCSV writes a header line followed by one line per row.
func WriteCSV(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(RowHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row.Strings()); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
