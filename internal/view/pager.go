package view

import "github.com/kitbuilder587/wikisearch/internal/search"

// Pager описывает панель Prev/Next для текущей выдачи.
//
// Offset - начало текущей страницы, NextOffset - начало следующей.
// Все смещения неотрицательны и кратны BatchSize.
type Pager struct {
	Offset     int  `json:"offset"`
	BatchSize  int  `json:"batchSize"`
	TotalHits  int  `json:"totalHits"`
	PrevOffset int  `json:"prevOffset"`
	NextOffset int  `json:"nextOffset"`
	ShowPrev   bool `json:"showPrev"`
	ShowNext   bool `json:"showNext"`
}

func NewPager(offset, batchSize, totalHits int) Pager {
	if batchSize <= 0 {
		batchSize = search.DefaultBatchSize
	}
	if offset < 0 {
		offset = 0
	}
	offset -= offset % batchSize

	next := offset + batchSize
	prev := offset - batchSize
	if prev < 0 {
		prev = 0
	}
	// за концом выдачи Prev ведет сразу на последнюю страницу
	if totalHits > 0 && offset >= totalHits {
		prev = (totalHits - 1) / batchSize * batchSize
	}

	return Pager{
		Offset:     offset,
		BatchSize:  batchSize,
		TotalHits:  totalHits,
		PrevOffset: prev,
		NextOffset: next,
		ShowPrev:   next > batchSize,
		ShowNext:   next < totalHits,
	}
}

func (p Pager) Visible() bool {
	return p.ShowPrev || p.ShowNext
}

// First/Last - номера результатов на странице, с единицы
func (p Pager) First() int {
	if p.TotalHits == 0 {
		return 0
	}
	return p.Offset + 1
}

func (p Pager) Last() int {
	if p.NextOffset > p.TotalHits {
		return p.TotalHits
	}
	return p.NextOffset
}
