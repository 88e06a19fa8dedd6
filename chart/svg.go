package chart

import (
	"fmt"
	"sort"
	"strings"
)

type Options struct {
	Title  string
	Width  int // defaults to 640
	Height int // defaults to 400
}

var palette = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd", "#8c564b"}

const (
	marginLeft   = 56
	marginRight  = 140 // legend gutter
	marginTop    = 40
	marginBottom = 44
)

// RenderSVG draws the series as a line chart with a fixed [0, 1] y-axis,
// which every normalized metric fits by contract. The output is a
// self-contained SVG document.
func RenderSVG(series []Series, opts Options) ([]byte, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("at least one series is required")
	}

	width := opts.Width
	if width <= 0 {
		width = 640
	}
	height := opts.Height
	if height <= 0 {
		height = 400
	}

	minK, maxK := 0, 0
	for _, s := range series {
		for _, p := range s.Points {
			if minK == 0 || p.K < minK {
				minK = p.K
			}
			if p.K > maxK {
				maxK = p.K
			}
		}
	}
	if maxK == 0 {
		return nil, fmt.Errorf("series contain no points")
	}
	if minK == maxK {
		// Single cutoff: widen the domain so the point sits mid-chart.
		minK, maxK = minK-1, maxK+1
	}

	plotW := float64(width - marginLeft - marginRight)
	plotH := float64(height - marginTop - marginBottom)
	xOf := func(k int) float64 {
		return float64(marginLeft) + plotW*float64(k-minK)/float64(maxK-minK)
	}
	yOf := func(v float64) float64 {
		return float64(marginTop) + plotH*(1.0-v)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" font-family="sans-serif" font-size="12">`+"\n", width, height)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="white"/>`+"\n", width, height)

	if opts.Title != "" {
		fmt.Fprintf(&b, `<text x="%d" y="22" font-size="15" text-anchor="middle">%s</text>`+"\n",
			marginLeft+int(plotW)/2, escape(opts.Title))
	}

	// Horizontal gridlines and y labels at 0, 0.25, ... 1.
	for i := 0; i <= 4; i++ {
		v := float64(i) / 4.0
		y := yOf(v)
		fmt.Fprintf(&b, `<line x1="%d" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#ddd"/>`+"\n",
			marginLeft, y, float64(marginLeft)+plotW, y)
		fmt.Fprintf(&b, `<text x="%d" y="%.1f" text-anchor="end" dominant-baseline="middle">%.2f</text>`+"\n",
			marginLeft-8, y, v)
	}

	// X ticks at every distinct k across all series.
	for _, k := range distinctKs(series) {
		x := xOf(k)
		fmt.Fprintf(&b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#999"/>`+"\n",
			x, yOf(0), x, yOf(0)+5)
		fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" text-anchor="middle">%d</text>`+"\n",
			x, yOf(0)+20, k)
	}
	fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="middle">k</text>`+"\n",
		marginLeft+int(plotW)/2, height-8)

	// Axes.
	fmt.Fprintf(&b, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="black"/>`+"\n",
		marginLeft, yOf(1), marginLeft, yOf(0))
	fmt.Fprintf(&b, `<line x1="%d" y1="%.1f" x2="%.1f" y2="%.1f" stroke="black"/>`+"\n",
		marginLeft, yOf(0), float64(marginLeft)+plotW, yOf(0))

	// Lines, markers, legend.
	for si, s := range series {
		color := palette[si%len(palette)]

		var pts []string
		for _, p := range s.Points {
			pts = append(pts, fmt.Sprintf("%.1f,%.1f", xOf(p.K), yOf(clamp01(p.Value))))
		}
		if len(pts) > 1 {
			fmt.Fprintf(&b, `<polyline points="%s" fill="none" stroke="%s" stroke-width="2"/>`+"\n",
				strings.Join(pts, " "), color)
		}
		for _, p := range s.Points {
			fmt.Fprintf(&b, `<circle cx="%.1f" cy="%.1f" r="3" fill="%s"/>`+"\n",
				xOf(p.K), yOf(clamp01(p.Value)), color)
		}

		ly := marginTop + 16*si
		fmt.Fprintf(&b, `<rect x="%.1f" y="%d" width="10" height="10" fill="%s"/>`+"\n",
			float64(marginLeft)+plotW+12, ly, color)
		fmt.Fprintf(&b, `<text x="%.1f" y="%d">%s</text>`+"\n",
			float64(marginLeft)+plotW+27, ly+9, escape(s.Name))
	}

	b.WriteString("</svg>\n")
	return []byte(b.String()), nil
}

func distinctKs(series []Series) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, s := range series {
		for _, p := range s.Points {
			if _, dup := seen[p.K]; dup {
				continue
			}
			seen[p.K] = struct{}{}
			out = append(out, p.K)
		}
	}
	sort.Ints(out)
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
