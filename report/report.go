// report renders training results as html charts.
package report

import (
	"fmt"
	"io"

	"github.com/mvtalan/Q-Learning-m/reinforcement"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"
)

// DEFAULT_WINDOW is the number of episodes averaged by the reward chart's trend line.
const DEFAULT_WINDOW = 20

// WriteRewardChart renders a page with a line chart of every episode's reward, and its moving
// average over @window episodes.
func WriteRewardChart(
	w io.Writer,
	results []reinforcement.EpisodeResult,
	window int,
) error {
	if window < 1 {
		window = DEFAULT_WINDOW
	}

	episodes := make([]string, 0, len(results))
	rewards := make([]float64, 0, len(results))
	for _, result := range results {
		episodes = append(episodes, fmt.Sprintf("%d", result.Episode))
		rewards = append(rewards, float64(result.Reward))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Episode rewards",
			Subtitle: fmt.Sprintf("%d episodes, moving average of %d", len(results), window),
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
	)

	line.SetXAxis(episodes).
		AddSeries("reward", lineData(rewards)).
		AddSeries("moving average", lineData(MovingAverage(rewards, window)))

	page := components.NewPage()
	page.AddCharts(line)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render reward chart: %w", err)
	}
	return nil
}

// MovingAverage returns the mean of each value and up to @window-1 values preceding it.
func MovingAverage(vals []float64, window int) []float64 {
	avgs := make([]float64, len(vals))
	for i := range vals {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		avgs[i] = stat.Mean(vals[start:i+1], nil)
	}
	return avgs
}

func lineData(vals []float64) []opts.LineData {
	items := make([]opts.LineData, 0, len(vals))
	for _, val := range vals {
		items = append(items, opts.LineData{Value: val})
	}
	return items
}
