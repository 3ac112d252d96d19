package charts

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/ivanoskov/fincontrol/internal/service"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ChartGenerator renders the derived financial series as PNG images.
type ChartGenerator struct {
	Width  int
	Height int
}

func NewChartGenerator() *ChartGenerator {
	return &ChartGenerator{Width: 1200, Height: 600}
}

func (g *ChartGenerator) background() chart.Style {
	return chart.Style{
		Padding: chart.Box{
			Top:    50,
			Left:   50,
			Right:  50,
			Bottom: 50,
		},
		FillColor: chart.ColorWhite,
	}
}

func moneyFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f", f)
	}
	return ""
}

// NetWorthChart plots monthly income, expenses and the running net worth.
// It returns nil when there are fewer than two months to draw.
func (g *ChartGenerator) NetWorthChart(points []service.NetWorthPoint) ([]byte, error) {
	if len(points) < 2 {
		return nil, nil
	}

	xValues := make([]time.Time, len(points))
	incomeValues := make([]float64, len(points))
	expenseValues := make([]float64, len(points))
	netWorthValues := make([]float64, len(points))
	for i, p := range points {
		xValues[i] = time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
		incomeValues[i] = p.Income.InexactFloat64()
		expenseValues[i] = p.Expenses.InexactFloat64()
		netWorthValues[i] = p.NetWorth.InexactFloat64()
	}

	graph := chart.Chart{
		Width:      g.Width,
		Height:     g.Height,
		Background: g.background(),
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("01/2006"),
			Style: chart.Style{
				FontSize:  12,
				FontColor: chart.ColorBlack,
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: moneyFormatter,
			Style: chart.Style{
				FontSize:  12,
				FontColor: chart.ColorBlack,
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Income",
				XValues: xValues,
				YValues: incomeValues,
				Style: chart.Style{
					StrokeColor: chart.ColorGreen,
					StrokeWidth: 2,
				},
			},
			chart.TimeSeries{
				Name:    "Expenses",
				XValues: xValues,
				YValues: expenseValues,
				Style: chart.Style{
					StrokeColor: chart.ColorRed,
					StrokeWidth: 2,
				},
			},
			chart.TimeSeries{
				Name:    "Net worth",
				XValues: xValues,
				YValues: netWorthValues,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					StrokeWidth: 3,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph, chart.Style{
			FontSize:  12,
			FontColor: chart.ColorBlack,
		}),
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render net worth chart: %w", err)
	}
	return buffer.Bytes(), nil
}

var tagColors = map[string]drawing.Color{
	"Essential":   {R: 59, G: 130, B: 246, A: 255},
	"Superfluous": {R: 239, G: 68, B: 68, A: 255},
	"Investment":  {R: 16, G: 185, B: 129, A: 255},
}

// LogicTagPie renders the essential/superfluous/investment split. It returns
// nil when the month has no classified expenses.
func (g *ChartGenerator) LogicTagPie(split service.LogicTagSplit) ([]byte, error) {
	total := split.Total()
	if !total.IsPositive() {
		return nil, nil
	}

	buckets := []struct {
		name  string
		value float64
	}{
		{"Essential", split.Essential.InexactFloat64()},
		{"Superfluous", split.Superfluous.InexactFloat64()},
		{"Investment", split.Investment.InexactFloat64()},
	}

	values := make([]chart.Value, 0, len(buckets))
	totalValue := total.InexactFloat64()
	for _, b := range buckets {
		if b.value <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s: %.2f (%.1f%%)", b.name, b.value, b.value/totalValue*100),
			Value: b.value,
			Style: chart.Style{FillColor: tagColors[b.name]},
		})
	}

	pie := chart.PieChart{
		Width:      g.Height,
		Height:     g.Height,
		Values:     values,
		Background: g.background(),
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := pie.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render logic tag chart: %w", err)
	}
	return buffer.Bytes(), nil
}

// BudgetChart draws spent amounts for every category with a monthly budget,
// red when over budget. It returns nil when there is nothing to draw.
func (g *ChartGenerator) BudgetChart(usage []service.BudgetUsage) ([]byte, error) {
	maxValue := 0.0
	bars := make([]chart.Value, 0, len(usage))
	for _, u := range usage {
		color := chart.ColorGreen
		if u.Over {
			color = chart.ColorRed
		}
		spent := u.Spent.InexactFloat64()
		bars = append(bars, chart.Value{
			Label: u.Category.Name,
			Value: spent,
			Style: chart.Style{FillColor: color, StrokeColor: color},
		})
		maxValue = math.Max(maxValue, math.Max(spent, u.Budget.InexactFloat64()))
	}
	if maxValue <= 0 {
		return nil, nil
	}

	graph := chart.BarChart{
		Width:      g.Width,
		Height:     g.Height,
		Background: g.background(),
		BarWidth:   60,
		YAxis: chart.YAxis{
			ValueFormatter: moneyFormatter,
			Range:          &chart.ContinuousRange{Min: 0, Max: maxValue},
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render budget chart: %w", err)
	}
	return buffer.Bytes(), nil
}
