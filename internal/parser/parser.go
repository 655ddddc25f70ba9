package parser

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"TournamentSync/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// GameParser 页面解析器接口：从抓取正文提取比赛记录
type GameParser interface {
	// Parse 解析页面正文；无法识别为比赛页面时返回错误
	Parse(ctx context.Context, html []byte, sourceURL string) (*model.Game, error)
}

var (
	titlePattern  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	h1Pattern     = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	statusPattern = regexp.MustCompile(`(?is)class="[^"]*cw-badge[^"]*"[^>]*>\s*([A-Za-z _-]+?)\s*<`)
	regPattern    = regexp.MustCompile(`(?i)\b(late\s+registration|registration\s+(open|closed))\b`)
	buyInPattern  = regexp.MustCompile(`(?i)buy[\s-]*in[^0-9]{0,20}([0-9][0-9,.]*)`)
	tagPattern    = regexp.MustCompile(`(?is)<[^>]+>`)
	tidPattern    = regexp.MustCompile(`(?:[?&]id=|/tournament/)(\d+)`)
)

// 页面状态文案到枚举的映射（徽章文本，大小写无关）
var statusText = map[string]model.GameStatus{
	"RUNNING":       model.GameStatusRunning,
	"CLOCK STOPPED": model.GameStatusClockStopped,
	"SCHEDULED":     model.GameStatusScheduled,
	"INITIATING":    model.GameStatusInitiating,
	"REGISTERING":   model.GameStatusRegistering,
	"REGISTRATION":  model.GameStatusRegistering,
	"FINISHED":      model.GameStatusFinished,
	"ENDED":         model.GameStatusFinished,
	"CANCELLED":     model.GameStatusCancelled,
	"NOT PUBLISHED": model.GameStatusNotPublished,
}

// RegexParser 已知页面结构的正则解析器。
// 只保证提取名称、状态与买入等基础字段，复杂结构留给上游页面改版时再补。
type RegexParser struct {
	logger *logrus.Logger
}

// NewRegexParser 创建正则解析器
func NewRegexParser(logger *logrus.Logger) *RegexParser {
	return &RegexParser{logger: logger}
}

func (p *RegexParser) Parse(ctx context.Context, html []byte, sourceURL string) (*model.Game, error) {
	name := extractName(html)
	if name == "" {
		return nil, fmt.Errorf("页面中未找到比赛名称")
	}

	status, regStatus := ExtractStatuses(html)
	g := &model.Game{
		ID:                 uuid.New().String(),
		Name:               name,
		Status:             status,
		RegistrationStatus: regStatus,
		SourceURL:          sourceURL,
	}

	if m := tidPattern.FindStringSubmatch(sourceURL); m != nil {
		if tid, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			g.TournamentID = tid
		}
	}
	if m := buyInPattern.FindSubmatch(html); m != nil {
		raw := strings.NewReplacer(",", "", ".", "").Replace(string(m[1]))
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			g.BuyIn = v
		}
	}
	return g, nil
}

// ExtractStatuses 从正文嗅探比赛/报名状态（抓取管线在落库前调用）
func ExtractStatuses(html []byte) (model.GameStatus, model.RegistrationStatus) {
	status := model.GameStatusUnknown
	if m := statusPattern.FindSubmatch(html); m != nil {
		key := strings.ToUpper(strings.Join(strings.Fields(string(m[1])), " "))
		if s, ok := statusText[key]; ok {
			status = s
		}
	}

	reg := model.RegistrationUnknown
	if m := regPattern.FindSubmatch(html); m != nil {
		switch {
		case strings.Contains(strings.ToLower(string(m[0])), "late"):
			reg = model.RegistrationLate
		case strings.Contains(strings.ToLower(string(m[0])), "closed"):
			reg = model.RegistrationClosed
		default:
			reg = model.RegistrationOpen
		}
	}
	return status, reg
}

// extractName 名称优先级：h1 → title；剥除内嵌标签并压缩空白
func extractName(html []byte) string {
	for _, p := range []*regexp.Regexp{h1Pattern, titlePattern} {
		if m := p.FindSubmatch(html); m != nil {
			text := tagPattern.ReplaceAllString(string(m[1]), " ")
			text = strings.Join(strings.Fields(text), " ")
			if text != "" {
				return text
			}
		}
	}
	return ""
}
