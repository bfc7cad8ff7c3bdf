package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the cartkeeper banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"                 _   _                            ", "#34d399"},
		{"   ___ __ _ _ __| |_| | _____  ___ _ __   ___ _ __", "#2dd4bf"},
		{"  / __/ _` | '__| __| |/ / _ \\/ _ \\ '_ \\ / _ \\ '__|", "#22d3ee"},
		{" | (_| (_| | |  | |_|   <  __/  __/ |_) |  __/ |", "#38bdf8"},
		{"  \\___\\__,_|_|   \\__|_|\\_\\___|\\___| .__/ \\___|_|", "#60a5fa"},
		{"                                  |_|", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
