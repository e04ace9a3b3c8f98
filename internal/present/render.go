package present

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"text/tabwriter"
)

//go:embed templates/*.html
var templateFS embed.FS

var resultTemplate = template.Must(template.ParseFS(templateFS, "templates/result.html"))

// Text writes the plain-text rendering used by the CLI.
func Text(w io.Writer, s Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Estimate (%s)\n", s.Mode)
	fmt.Fprintf(tw, "Paintable area:\t%s\n", s.PaintableArea)
	fmt.Fprintf(tw, "Paint required:\t%s\n", s.Paint)
	fmt.Fprintf(tw, "Total cost:\t%s\n", s.Cost)
	fmt.Fprintf(tw, "Dimensions:\t%s x %s x %s\n", s.Length, s.Width, s.Height)
	fmt.Fprintf(tw, "Doors / windows:\t%s / %s\n", s.Doors, s.Windows)

	if c := s.Confidence; c != nil {
		note := ""
		if c.Defaulted {
			note = " (default)"
		}
		fmt.Fprintf(tw, "Confidence:\t%s %s, expected error %s%s\n", c.Percent, c.Level, c.ExpectedError, note)
	}

	if len(s.Rooms) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "Room\tFloor\tPaintable\tPaint\tCost\tDoors\tWindows")
		for _, r := range s.Rooms {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.Name, r.FloorArea, r.PaintableArea, r.Paint, r.Cost, r.Doors, r.Windows)
		}
	}

	if s.ManualInput {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "The estimator asked for manual measurements to improve this result.")
	}
	if s.Message != "" {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, s.Message)
	}

	return tw.Flush()
}

// HTML writes the result fragment served to the browser.
func HTML(w io.Writer, s Summary) error {
	return resultTemplate.Execute(w, s)
}

// Notice renders a dismissible notification for a failed action.
func Notice(w io.Writer, class, message string) error {
	_, err := fmt.Fprintf(w, `<div class="alert alert-%s">%s</div>`,
		template.HTMLEscapeString(class), template.HTMLEscapeString(message))
	return err
}
