package state

import "fmt"

const (
	TicksPerHour  = 60
	HoursPerDay   = 24
	DaysPerMonth  = 30
	MonthsPerYear = 12
)

var (
	heavenlyStems   = []string{"甲", "乙", "丙", "丁", "戊", "己", "庚", "辛", "壬", "癸"}
	earthlyBranches = []string{"子", "丑", "寅", "卯", "辰", "巳", "午", "未", "申", "酉", "戌", "亥"}
	monthNames      = []string{"正", "二", "三", "四", "五", "六", "七", "八", "九", "十", "冬", "腊"}
	dayNames        = []string{
		"初一", "初二", "初三", "初四", "初五", "初六", "初七", "初八", "初九", "初十",
		"十一", "十二", "十三", "十四", "十五", "十六", "十七", "十八", "十九", "二十",
		"廿一", "廿二", "廿三", "廿四", "廿五", "廿六", "廿七", "廿八", "廿九", "三十",
	}
)

// TimeState is the in-world calendar. Month and day are 1-based.
type TimeState struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
	Hour  int `json:"hour"`
	Tick  int `json:"tick"`
}

// NewTime starts the calendar at the first morning of year one.
func NewTime() TimeState {
	return TimeState{Year: 1, Month: 1, Day: 1, Hour: 6, Tick: 0}
}

// Advance returns the time moved forward by the given number of ticks.
func (t TimeState) Advance(ticks int) TimeState {
	if ticks <= 0 {
		return t
	}
	out := t
	out.Tick += ticks

	out.Hour += out.Tick / TicksPerHour
	out.Tick %= TicksPerHour

	out.Day += out.Hour / HoursPerDay
	out.Hour %= HoursPerDay

	for out.Day > DaysPerMonth {
		out.Day -= DaysPerMonth
		out.Month++
	}
	for out.Month > MonthsPerYear {
		out.Month -= MonthsPerYear
		out.Year++
	}
	return out
}

// Format renders the date with the sexagenary year, e.g. 甲子年正月初一.
func (t TimeState) Format() string {
	yearIndex := mod(t.Year-1, 60)
	month := monthNames[clampIndex(t.Month-1, len(monthNames))]
	day := dayNames[clampIndex(t.Day-1, len(dayNames))]
	return fmt.Sprintf("%s%s年%s月%s", heavenlyStems[yearIndex%10], earthlyBranches[yearIndex%12], month, day)
}

func mod(a, b int) int {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
