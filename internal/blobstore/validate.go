package blobstore

import "bytes"

// DefaultMinBodySize 小于此大小的正文视为残缺页面，不作为缓存命中
const DefaultMinBodySize = 512

var structuralMarkers = [][]byte{
	[]byte("<html"),
	[]byte("<body"),
	[]byte("<div"),
}

// ValidHTML 页面正文有效性启发式：满足最小大小且含基本结构标签。
// minSize<=0 时使用 DefaultMinBodySize。
func ValidHTML(body []byte, minSize int) bool {
	if minSize <= 0 {
		minSize = DefaultMinBodySize
	}
	if len(body) < minSize {
		return false
	}
	lower := bytes.ToLower(body)
	for _, m := range structuralMarkers {
		if bytes.Contains(lower, m) {
			return true
		}
	}
	return false
}
