// Package evaluation measures classifier accuracy against labelled cases.
package evaluation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/amlboard/internal/domain"
	"github.com/opensource-finance/amlboard/internal/ingest"
)

// Score holds per-typology detection metrics.
type Score struct {
	Typology       domain.Typology `json:"typology"`
	Support        int64           `json:"support"`
	TruePositives  int64           `json:"truePositives"`
	FalsePositives int64           `json:"falsePositives"`
	FalseNegatives int64           `json:"falseNegatives"`
	Precision      float64         `json:"precision"`
	Recall         float64         `json:"recall"`
	F1             float64         `json:"f1"`
}

// Result summarizes an evaluation run.
type Result struct {
	Total     int64   `json:"total"`
	Labelled  int64   `json:"labelled"`
	Correct   int64   `json:"correct"`
	Accuracy  float64 `json:"accuracy"`
	Scores    []Score `json:"scores"`
	Confusion Matrix  `json:"confusion"`

	// Macro averages over typologies that occur as a label.
	MacroPrecision float64 `json:"macroPrecision"`
	MacroRecall    float64 `json:"macroRecall"`
	MacroF1        float64 `json:"macroF1"`

	Duration time.Duration `json:"duration"`
}

// Matrix counts cases by actual (row) and predicted (column) typology, both
// in domain.Typologies order.
type Matrix [][]int64

// Mismatch is a labelled case the classifier got wrong.
type Mismatch struct {
	Row       int             `json:"row"`
	Scenario  string          `json:"scenario"`
	Expected  domain.Typology `json:"expected"`
	Predicted domain.Typology `json:"predicted"`
}

// Options tune an evaluation run.
type Options struct {
	// Workers is the number of concurrent classifiers.
	Workers int
	// OnMismatch, if set, is called for every wrong prediction. It may be
	// called from several goroutines.
	OnMismatch func(Mismatch)
}

// Run classifies every labelled record and compares with its expected
// typology. Records without a label are counted in Total only.
func Run(ctx context.Context, records []ingest.Record, c ingest.Classifier, opts Options) (*Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	labels := domain.Typologies()
	index := make(map[domain.Typology]int, len(labels))
	for i, t := range labels {
		index[t] = i
	}
	n := len(labels)
	counts := make([]int64, n*n)

	var labelled, correct int64
	start := time.Now()

	work := make(chan ingest.Record)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range work {
				actual, ok := index[rec.Expected]
				if !ok {
					continue
				}
				predicted := c.ClassifyDetail(rec.Scenario).Typology

				atomic.AddInt64(&labelled, 1)
				atomic.AddInt64(&counts[actual*n+index[predicted]], 1)

				if predicted == rec.Expected {
					atomic.AddInt64(&correct, 1)
				} else if opts.OnMismatch != nil {
					opts.OnMismatch(Mismatch{
						Row:       rec.Row,
						Scenario:  rec.Scenario,
						Expected:  rec.Expected,
						Predicted: predicted,
					})
				}
			}
		}()
	}

	var err error
send:
	for _, rec := range records {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case work <- rec:
		case <-ctx.Done():
			err = ctx.Err()
			break send
		}
	}
	close(work)
	wg.Wait()

	if err != nil {
		return nil, err
	}

	matrix := make(Matrix, n)
	for i := range matrix {
		matrix[i] = counts[i*n : (i+1)*n]
	}

	res := &Result{
		Total:     int64(len(records)),
		Labelled:  labelled,
		Correct:   correct,
		Accuracy:  ratio(correct, labelled),
		Confusion: matrix,
		Duration:  time.Since(start),
	}
	res.Scores = score(labels, matrix)

	var supported float64
	for _, sc := range res.Scores {
		if sc.Support == 0 {
			continue
		}
		supported++
		res.MacroPrecision += sc.Precision
		res.MacroRecall += sc.Recall
		res.MacroF1 += sc.F1
	}
	if supported > 0 {
		res.MacroPrecision /= supported
		res.MacroRecall /= supported
		res.MacroF1 /= supported
	}
	return res, nil
}

// score derives per-typology metrics from the confusion matrix. Typologies
// that never occur as label or prediction are left out.
func score(labels []domain.Typology, m Matrix) []Score {
	var scores []Score
	for i, t := range labels {
		s := Score{Typology: t}
		for j := range labels {
			s.Support += m[i][j]
			if j == i {
				s.TruePositives = m[i][j]
				continue
			}
			s.FalseNegatives += m[i][j]
			s.FalsePositives += m[j][i]
		}
		if s.Support == 0 && s.FalsePositives == 0 {
			continue
		}

		s.Precision = ratio(s.TruePositives, s.TruePositives+s.FalsePositives)
		s.Recall = ratio(s.TruePositives, s.TruePositives+s.FalseNegatives)
		if s.Precision+s.Recall > 0 {
			s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		scores = append(scores, s)
	}
	return scores
}

// Interpret returns a one-line verdict each for recall and precision.
func Interpret(recall, precision float64) []string {
	var out []string
	switch {
	case recall >= 0.9:
		out = append(out, "Excellent recall - most typologies are recognised")
	case recall >= 0.7:
		out = append(out, "Good recall - some cases fall through")
	case recall >= 0.5:
		out = append(out, "Moderate recall - many cases are misclassified")
	default:
		out = append(out, "Poor recall - most cases are misclassified")
	}
	switch {
	case precision >= 0.5:
		out = append(out, "Good precision - labels are meaningful")
	case precision >= 0.2:
		out = append(out, "Low precision - many wrong labels")
	default:
		out = append(out, "Very low precision - labels are mostly wrong")
	}
	return out
}

func ratio(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
