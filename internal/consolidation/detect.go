package consolidation

import (
	"regexp"
	"strconv"
	"strings"

	"TournamentSync/internal/model"
)

// DetectionSource 多日信号来源（诊断用：区分结构化字段与名称解析）
type DetectionSource string

const (
	DetectFromDayNumberField    DetectionSource = "DAY_NUMBER_FIELD"
	DetectFromFlightLetterField DetectionSource = "FLIGHT_LETTER_FIELD"
	DetectFromFinalDayField     DetectionSource = "FINAL_DAY_FIELD"
	DetectFromNamePattern       DetectionSource = "NAME_PATTERN"
	DetectNone                  DetectionSource = "NONE"
)

// Detection 多日检测结果：除判定外返回解析出的日编号/航段字母，供下游诊断数据缺口
type Detection struct {
	IsMultiDay   bool
	Source       DetectionSource
	DayNumber    *int
	FlightLetter *string
	IsFinalDay   bool
}

var (
	dayPattern      = regexp.MustCompile(`(?i)\bday\s*(\d+)\s*([A-Z])?\b`)
	flightPattern   = regexp.MustCompile(`(?i)\bflight\s*(\d*)\s*([A-Z])\b`)
	finalPattern    = regexp.MustCompile(`(?i)\bfinal\s*(day|table)\b|\bFT\b`)
	dayTokenPattern = regexp.MustCompile(`\b(\d+)([A-Z])\b`)
)

// DetectMultiDay 判定比赛是否多日赛航段。
// 结构化字段优先（dayNumber / flightLetter / finalDay），名称解析兜底；
// 名称解析出的日编号/航段字母只在结构化字段缺失时补齐。
func DetectMultiDay(g *model.Game) Detection {
	det := Detection{Source: DetectNone}
	if g == nil {
		return det
	}

	if g.DayNumber != nil {
		det.IsMultiDay = true
		det.Source = DetectFromDayNumberField
		day := *g.DayNumber
		det.DayNumber = &day
	}
	if g.FlightLetter != nil && *g.FlightLetter != "" {
		det.IsMultiDay = true
		if det.Source == DetectNone {
			det.Source = DetectFromFlightLetterField
		}
		fl := strings.ToUpper(*g.FlightLetter)
		det.FlightLetter = &fl
	}
	if g.FinalDay != nil && *g.FinalDay {
		det.IsMultiDay = true
		det.IsFinalDay = true
		if det.Source == DetectNone {
			det.Source = DetectFromFinalDayField
		}
	}

	// 名称解析：补齐缺失信号
	name := g.Name
	if m := dayPattern.FindStringSubmatch(name); m != nil {
		det.IsMultiDay = true
		if det.Source == DetectNone {
			det.Source = DetectFromNamePattern
		}
		if det.DayNumber == nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				det.DayNumber = &n
			}
		}
		if det.FlightLetter == nil && m[2] != "" {
			fl := strings.ToUpper(m[2])
			det.FlightLetter = &fl
		}
	}
	if m := flightPattern.FindStringSubmatch(name); m != nil {
		det.IsMultiDay = true
		if det.Source == DetectNone {
			det.Source = DetectFromNamePattern
		}
		if det.FlightLetter == nil {
			fl := strings.ToUpper(m[2])
			det.FlightLetter = &fl
		}
		if det.DayNumber == nil && m[1] != "" {
			if n, err := strconv.Atoi(m[1]); err == nil {
				det.DayNumber = &n
			}
		}
	}
	if finalPattern.MatchString(name) {
		det.IsMultiDay = true
		det.IsFinalDay = true
		if det.Source == DetectNone {
			det.Source = DetectFromNamePattern
		}
	}
	// "1A" 式裸 token（数字+大写字母），只认大写避免误伤普通单词
	if m := dayTokenPattern.FindStringSubmatch(name); m != nil {
		det.IsMultiDay = true
		if det.Source == DetectNone {
			det.Source = DetectFromNamePattern
		}
		if det.DayNumber == nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				det.DayNumber = &n
			}
		}
		if det.FlightLetter == nil {
			fl := m[2]
			det.FlightLetter = &fl
		}
	}

	return det
}
