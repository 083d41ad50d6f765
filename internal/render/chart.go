package render

import (
	"math"
	"strconv"
	"strings"

	"github.com/opensource-finance/amlboard/internal/domain"
	"github.com/opensource-finance/amlboard/internal/report"
)

// Chart geometry in SVG user units.
const (
	pieRadius   = 120.0
	pieCenter   = 150.0
	barHeight   = 200.0
	barWidth    = 60.0
	barGap      = 30.0
	barBaseline = 230.0
)

// Slice is one wedge of the typology pie.
type Slice struct {
	Typology domain.Typology
	Count    int
	Percent  float64
	Color    string
	// Path is the SVG path for the wedge; empty when the slice is the
	// whole pie, which is drawn as a circle instead.
	Path   string
	LabelX float64
	LabelY float64
}

// Pie lays out typology counts as pie wedges, starting at 12 o'clock and
// running clockwise in the order given.
func Pie(counts []report.TypologyCount) []Slice {
	total := 0
	for _, tc := range counts {
		total += tc.Count
	}
	if total == 0 {
		return nil
	}

	slices := make([]Slice, 0, len(counts))
	angle := -math.Pi / 2
	for _, tc := range counts {
		frac := float64(tc.Count) / float64(total)
		sweep := frac * 2 * math.Pi
		mid := angle + sweep/2

		s := Slice{
			Typology: tc.Typology,
			Count:    tc.Count,
			Percent:  frac * 100,
			Color:    tc.Color,
			LabelX:   round(pieCenter + 0.65*pieRadius*math.Cos(mid)),
			LabelY:   round(pieCenter + 0.65*pieRadius*math.Sin(mid)),
		}
		if tc.Count < total {
			s.Path = arc(angle, angle+sweep)
		} else {
			s.LabelX, s.LabelY = pieCenter, pieCenter
		}
		slices = append(slices, s)
		angle += sweep
	}
	return slices
}

// arc returns the path of a wedge between two angles in radians.
func arc(from, to float64) string {
	x1 := pieCenter + pieRadius*math.Cos(from)
	y1 := pieCenter + pieRadius*math.Sin(from)
	x2 := pieCenter + pieRadius*math.Cos(to)
	y2 := pieCenter + pieRadius*math.Sin(to)

	large := "0"
	if to-from > math.Pi+1e-9 {
		large = "1"
	}

	var b strings.Builder
	b.WriteString("M ")
	b.WriteString(num(pieCenter) + " " + num(pieCenter))
	b.WriteString(" L " + num(x1) + " " + num(y1))
	b.WriteString(" A " + num(pieRadius) + " " + num(pieRadius) + " 0 " + large + " 1 " + num(x2) + " " + num(y2))
	b.WriteString(" Z")
	return b.String()
}

// Bar is one column of a bar chart.
type Bar struct {
	Label  string
	Count  int
	X      float64
	Y      float64
	Width  float64
	Height float64
	Color  string
}

// BarChart is a laid-out column chart.
type BarChart struct {
	Bars     []Bar
	Width    float64
	Height   float64
	Baseline float64
}

// Bars lays out labelled counts as columns scaled to the largest count.
func Bars(labels []string, counts []int, color string) BarChart {
	chart := BarChart{
		Width:    barGap + float64(len(labels))*(barWidth+barGap),
		Height:   barBaseline + 40,
		Baseline: barBaseline,
	}

	peak := 0
	for _, c := range counts {
		if c > peak {
			peak = c
		}
	}
	if peak == 0 {
		return chart
	}

	for i, label := range labels {
		h := round(float64(counts[i]) / float64(peak) * barHeight)
		chart.Bars = append(chart.Bars, Bar{
			Label:  label,
			Count:  counts[i],
			X:      barGap + float64(i)*(barWidth+barGap),
			Y:      barBaseline - h,
			Width:  barWidth,
			Height: h,
			Color:  color,
		})
	}
	return chart
}

// RiskLevelBars charts cases per risk level.
func RiskLevelBars(levels []report.LevelCount) BarChart {
	labels := make([]string, len(levels))
	counts := make([]int, len(levels))
	for i, l := range levels {
		labels[i], counts[i] = l.Level, l.Count
	}
	return Bars(labels, counts, "red")
}

// TypologyBars charts a typology distribution.
func TypologyBars(tcs []report.TypologyCount) BarChart {
	labels := make([]string, len(tcs))
	counts := make([]int, len(tcs))
	for i, tc := range tcs {
		labels[i], counts[i] = string(tc.Typology), tc.Count
	}
	return Bars(labels, counts, "red")
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}

func num(v float64) string {
	return strconv.FormatFloat(round(v), 'f', -1, 64)
}
