// ABOUTME: Retrieval quality metrics: precision, recall, and MRR
// ABOUTME: Computed per scenario over ranked search results

package retrieval

// Metrics scores one ranked result list against the relevant set
type Metrics struct {
	PrecisionAtK float64 `json:"precision_at_k"`
	RecallAtK    float64 `json:"recall_at_k"`
	MRR          float64 `json:"mrr"`
}

// Score computes the metrics for ranked IDs against the relevant set,
// evaluated at cutoff k.
func Score(ranked []string, relevant []string, k int) Metrics {
	if k <= 0 || k > len(ranked) {
		k = len(ranked)
	}
	relevantSet := map[string]bool{}
	for _, id := range relevant {
		relevantSet[id] = true
	}

	m := Metrics{}
	hits := 0
	for i, id := range ranked[:k] {
		if !relevantSet[id] {
			continue
		}
		hits++
		if m.MRR == 0 {
			m.MRR = 1 / float64(i+1)
		}
	}
	if k > 0 {
		m.PrecisionAtK = float64(hits) / float64(k)
	}
	if len(relevant) > 0 {
		m.RecallAtK = float64(hits) / float64(len(relevant))
	}
	return m
}

// Aggregate averages metrics across scenarios
func Aggregate(all []Metrics) Metrics {
	if len(all) == 0 {
		return Metrics{}
	}
	var sum Metrics
	for _, m := range all {
		sum.PrecisionAtK += m.PrecisionAtK
		sum.RecallAtK += m.RecallAtK
		sum.MRR += m.MRR
	}
	n := float64(len(all))
	return Metrics{
		PrecisionAtK: sum.PrecisionAtK / n,
		RecallAtK:    sum.RecallAtK / n,
		MRR:          sum.MRR / n,
	}
}
