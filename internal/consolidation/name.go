package consolidation

import (
	"fmt"
	"regexp"
	"strings"

	"TournamentSync/internal/model"
)

const mainEventSuffix = ": MAIN EVENT"

var (
	// 子记录名称尾部的日/航段/变体后缀，剥离顺序不敏感、循环剥离到不动点
	suffixPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*[-–—:,]?\s*day\s*\d+\s*[A-Z]?$`),
		regexp.MustCompile(`(?i)\s*[-–—:,]?\s*flight\s*\d*\s*[A-Z]$`),
		regexp.MustCompile(`(?i)\s*[-–—:,]?\s*final\s*(day|table)$`),
		regexp.MustCompile(`(?i)\s*[-–—:,]?\s*(turbo|hyper|deep\s*stack)$`),
		regexp.MustCompile(`\s*[-–—:,]?\s*\d+[A-Z]$`),
	}
	eventPrefixPattern = regexp.MustCompile(`(?i)^(.+?\bevent\s*#?\d+)\s*(?::\s*(.+))?$`)
	whitespaceRun      = regexp.MustCompile(`\s+`)
)

// DeriveParentName 推导父记录名称。
// 优先用结构化字段拼 "{seriesName} Event {n}"，主赛事追加 ": MAIN EVENT"；
// 否则解析子记录名称：保留 "系列 Event N[: 标题]" 前缀并剥离日/航段/变体后缀。
func DeriveParentName(g *model.Game) string {
	if g == nil {
		return ""
	}
	if g.SeriesName != nil && strings.TrimSpace(*g.SeriesName) != "" && g.EventNumber != nil {
		name := fmt.Sprintf("%s Event %d", strings.TrimSpace(*g.SeriesName), *g.EventNumber)
		if g.IsMainEvent {
			name += mainEventSuffix
		}
		return name
	}
	return stripChildSuffixes(g.Name, g.IsMainEvent)
}

func stripChildSuffixes(name string, isMainEvent bool) string {
	s := strings.TrimSpace(name)

	// 有 "… Event N: 标题" 结构时，标题部分同样要剥后缀
	if m := eventPrefixPattern.FindStringSubmatch(s); m != nil && m[2] != "" {
		title := stripSuffixLoop(m[2])
		if title != "" {
			s = m[1] + ": " + title
		} else {
			s = m[1]
		}
	} else {
		s = stripSuffixLoop(s)
	}

	s = strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
	if isMainEvent && !strings.HasSuffix(s, mainEventSuffix) {
		s += mainEventSuffix
	}
	return s
}

// stripSuffixLoop 循环剥离尾部后缀直到不再变化
func stripSuffixLoop(s string) string {
	for {
		before := s
		for _, p := range suffixPatterns {
			s = p.ReplaceAllString(s, "")
		}
		s = strings.TrimSpace(strings.TrimRight(s, "-–—:, "))
		if s == before {
			return s
		}
	}
}
