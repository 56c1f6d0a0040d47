package pipeline

import (
	"regexp"
	"strconv"
)

const (
	chunkSize    = 1000
	chunkOverlap = 100
)

// Chunk 是送入向量化与索引的一个文本分块。
type Chunk struct {
	Seq  int
	Page int
	Text string
}

var pageMarkerRe = regexp.MustCompile(`\[Page (\d+)\]`)

// splitChunks 将带 [Page N] 标记的长文本按固定大小和重叠切分，
// 并为每个分块记录其起始位置所在的页码。
func splitChunks(text string, size, overlap int) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if size <= overlap {
		overlap = 0
	}

	// 预先定位所有页码标记的 rune 位置
	type marker struct {
		pos  int
		page int
	}
	var markers []marker
	for _, loc := range pageMarkerRe.FindAllStringSubmatchIndex(text, -1) {
		page, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		markers = append(markers, marker{pos: len([]rune(text[:loc[0]])), page: page})
	}

	pageAt := func(runePos int) int {
		page := 1
		for _, m := range markers {
			if m.pos > runePos {
				break
			}
			page = m.page
		}
		return page
	}

	var chunks []Chunk
	step := size - overlap
	seq := 0
	for i := 0; i < len(runes); i += step {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Seq:  seq,
			Page: pageAt(i),
			Text: string(runes[i:end]),
		})
		seq++
		if end == len(runes) {
			break
		}
	}
	return chunks
}
