package consolidation

import (
	"time"

	"TournamentSync/internal/model"
)

// StreamEventName 持久层变更流的事件名
type StreamEventName string

const (
	StreamInsert StreamEventName = "INSERT"
	StreamModify StreamEventName = "MODIFY"
	StreamRemove StreamEventName = "REMOVE"
)

// StreamEvent 比赛视图变更事件（入口边界，进入引擎前先过滤）
type StreamEvent struct {
	EventName StreamEventName `json:"eventName"`
	OldImage  *model.Game     `json:"oldImage,omitempty"`
	NewImage  *model.Game     `json:"newImage,omitempty"`
}

// FilterDecision 边界过滤结果，Reason 供日志诊断
type FilterDecision struct {
	Process bool
	Reason  string
}

// FilterEvent 流边界过滤：
// REMOVE 丢弃；MODIFY 且 dataChangedAt 与 contentHash 均未变化丢弃（幂等重放门）；
// PARENT 镜像丢弃（父记录自身的写入不再触发归并）；NOT_PUBLISHED 丢弃；非多日丢弃。
// 此过滤同时是补偿增量（步骤5）的单次触发保证：带 oldImage 通过过滤的 MODIFY 必然携带内容变化。
// MODIFY 缺 oldImage 时门无法判定，由 ProcessEvent 关闭增量。
func FilterEvent(evt StreamEvent) FilterDecision {
	if evt.EventName == StreamRemove {
		return FilterDecision{Reason: "REMOVE 事件不处理"}
	}
	g := evt.NewImage
	if g == nil {
		return FilterDecision{Reason: "缺少 newImage"}
	}
	if evt.EventName == StreamModify && evt.OldImage != nil {
		if equalTimePtr(evt.OldImage.DataChangedAt, g.DataChangedAt) &&
			evt.OldImage.ContentHash == g.ContentHash {
			return FilterDecision{Reason: "dataChangedAt 与 contentHash 均未变化"}
		}
	}
	if g.IsParent() {
		return FilterDecision{Reason: "PARENT 记录不回流"}
	}
	if g.Status == model.GameStatusNotPublished {
		return FilterDecision{Reason: "NOT_PUBLISHED 不处理"}
	}
	if det := DetectMultiDay(g); !det.IsMultiDay {
		return FilterDecision{Reason: "非多日比赛"}
	}
	return FilterDecision{Process: true}
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
