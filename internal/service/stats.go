// stats.go — сводная статистика по записям.
package service

import (
	"context"
	"math"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/domain/status"
)

// Stats — сводка для панели управления.
type Stats struct {
	Total       int                   `json:"total"`
	ByStatus    map[status.Status]int `json:"byStatus"`
	Eligible    int                   `json:"eligible"`
	NotEligible int                   `json:"notEligible"`
	// SuccessRate — доля Eligible среди записей с вердиктом, в процентах
	SuccessRate int `json:"successRate"`
}

// ComputeStats считает статистику по списку записей.
// Все статусы набора присутствуют в ByStatus, включая нулевые.
func ComputeStats(recs []*model.RFP) *Stats {
	st := &Stats{
		Total:    len(recs),
		ByStatus: make(map[status.Status]int, len(status.All())),
	}
	for _, s := range status.All() {
		st.ByStatus[s] = 0
	}
	for _, r := range recs {
		st.ByStatus[r.Status]++
	}

	st.Eligible = st.ByStatus[status.Eligible]
	st.NotEligible = st.ByStatus[status.NotEligible]
	if decided := st.Eligible + st.NotEligible; decided > 0 {
		st.SuccessRate = int(math.Round(float64(st.Eligible) / float64(decided) * 100))
	}
	return st
}

// Stats возвращает статистику по всем записям.
func (s *RecordService) Stats(ctx context.Context) (*Stats, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeStats(recs), nil
}
