package reportsvc

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/lojf/nextgen/core/attendance"
)

const (
	sheetName = "Weekly Attendance"

	// ContentType is the MIME type of the generated workbooks.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// BuildWeeklyXLSX renders a WeeklyReport as an xlsx workbook.
func BuildWeeklyXLSX(rep attendance.WeeklyReport) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, errors.Wrap(err, "creating sheet")
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, errors.Wrap(err, "removing default sheet")
	}

	set := func(cell string, value interface{}) {
		_ = f.SetCellValue(sheetName, cell, value)
	}

	set("A1", "Week")
	set("B1", fmt.Sprintf("%s - %s", rep.WeekStart.Format("2006-01-02"), rep.WeekEnd.AddDate(0, 0, -1).Format("2006-01-02")))
	set("A2", "Total check-ins")
	set("B2", rep.TotalCheckIns)
	set("A3", "Unique children")
	set("B3", rep.UniqueChildren)
	set("A4", "New children")
	set("B4", rep.NewChildren)

	row := 6
	set(fmt.Sprintf("A%d", row), "Service")
	set(fmt.Sprintf("B%d", row), "Check-ins")
	set(fmt.Sprintf("C%d", row), "Check-outs")
	for _, st := range rep.PerSlot {
		row++
		set(fmt.Sprintf("A%d", row), st.SlotName)
		set(fmt.Sprintf("B%d", row), st.CheckIns)
		set(fmt.Sprintf("C%d", row), st.CheckOuts)
	}

	row += 2
	set(fmt.Sprintf("A%d", row), "Day")
	set(fmt.Sprintf("B%d", row), "Check-ins")
	for _, dc := range rep.PerDay {
		row++
		set(fmt.Sprintf("A%d", row), dc.Date.Format("Mon 2006-01-02"))
		set(fmt.Sprintf("B%d", row), dc.CheckIns)
	}

	buff, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buff, nil
}

// ObjectKey is the storage key for a week's export.
func ObjectKey(rep attendance.WeeklyReport) string {
	return fmt.Sprintf("reports/weekly-%s.xlsx", rep.WeekStart.Format("2006-01-02"))
}
