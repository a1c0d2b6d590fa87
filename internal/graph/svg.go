package graph

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// labelBand is the height reserved under the plot for axis labels.
const labelBand = 20.0

// Chart is everything RenderSVG needs.
type Chart struct {
	Prices     []float64
	FirstLabel string
	LastLabel  string
	Labels     []string // interior labels, one per vertical divider
	Size       Size     // whole image, label band included
	Horizontal int      // horizontal dividers
	Color      string   // CSS stroke color
	Reveal     time.Duration
}

// RenderSVG writes c as a standalone SVG document: grid, gradient fill,
// line, labels and a clip rectangle animated from zero to full width.
func RenderSVG(w io.Writer, c Chart) error {
	plot := Size{Width: c.Size.Width, Height: c.Size.Height - labelBand}
	if plot.Width <= 0 || plot.Height <= 0 {
		return fmt.Errorf("graph: size %vx%v too small", c.Size.Width, c.Size.Height)
	}
	path, err := Layout(c.Prices, plot)
	if err != nil {
		return err
	}
	color := c.Color
	if color == "" {
		color = "currentColor"
	}
	reveal := c.Reveal
	if reveal <= 0 {
		reveal = DefaultRevealDuration
	}
	vertical := len(c.Labels)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`+"\n",
		num(c.Size.Width), num(c.Size.Height), num(c.Size.Width), num(c.Size.Height))

	fmt.Fprintf(bw, `<defs>
<linearGradient id="fill" x1="0" y1="0" x2="0" y2="1">
<stop offset="0" stop-color="%[1]s" stop-opacity="0.4"/>
<stop offset="1" stop-color="%[1]s" stop-opacity="0"/>
</linearGradient>
<clipPath id="reveal"><rect x="0" y="0" width="0" height="%[2]s"><animate attributeName="width" from="0" to="%[3]s" dur="%[4]s" fill="freeze"/></rect></clipPath>
</defs>
`, escape(color), num(plot.Height), num(plot.Width), seconds(reveal))

	bw.WriteString(`<g stroke="#d1d5db" stroke-width="1" stroke-dasharray="4 4">` + "\n")
	for _, l := range Grid(vertical, c.Horizontal, plot) {
		fmt.Fprintf(bw, `<line x1="%s" y1="%s" x2="%s" y2="%s"/>`+"\n", num(l.From.X), num(l.From.Y), num(l.To.X), num(l.To.Y))
	}
	bw.WriteString("</g>\n")

	bw.WriteString(`<g clip-path="url(#reveal)">` + "\n")
	fmt.Fprintf(bw, `<polygon fill="url(#fill)" stroke="none" points="%s"/>`+"\n", points(path.Fill(plot)))
	fmt.Fprintf(bw, `<polyline fill="none" stroke="%s" stroke-width="2" stroke-linejoin="round" points="%s"/>`+"\n",
		escape(color), points(path.Points))
	bw.WriteString("</g>\n")

	textY := num(c.Size.Height - 5)
	bw.WriteString(`<g font-family="sans-serif" font-size="11" fill="#6b7280">` + "\n")
	if c.FirstLabel != "" {
		fmt.Fprintf(bw, `<text x="0" y="%s" text-anchor="start">%s</text>`+"\n", textY, escape(c.FirstLabel))
	}
	for _, l := range PlaceLabels(c.Labels, vertical, plot) {
		fmt.Fprintf(bw, `<text x="%s" y="%s" text-anchor="middle">%s</text>`+"\n", num(l.At.X), textY, escape(l.Text))
	}
	if c.LastLabel != "" {
		fmt.Fprintf(bw, `<text x="%s" y="%s" text-anchor="end">%s</text>`+"\n", num(plot.Width), textY, escape(c.LastLabel))
	}
	bw.WriteString("</g>\n</svg>\n")
	return bw.Flush()
}

func points(pts []Point) string {
	var b strings.Builder
	for i, p := range pts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(num(p.X))
		b.WriteByte(',')
		b.WriteString(num(p.Y))
	}
	return b.String()
}

func num(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func seconds(d time.Duration) string {
	return num(d.Seconds()) + "s"
}

func escape(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
