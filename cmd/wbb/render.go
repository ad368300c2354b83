package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/srg/wbb/internal/calibration"
	"github.com/srg/wbb/pkg/board"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const clockFormat = "15:04:05.000"

// eventRenderer writes one event per line
type eventRenderer interface {
	Render(ev board.Event) error
}

func newRenderer(format string, out io.Writer) (eventRenderer, error) {
	switch format {
	case "text":
		return newTextRenderer(out, isTerminal(out)), nil
	case "json":
		return &jsonRenderer{enc: json.NewEncoder(out)}, nil
	default:
		return nil, fmt.Errorf("invalid format '%s': must be one of [text json]", format)
	}
}

type textRenderer struct {
	out   io.Writer
	kinds map[board.EventKind]*color.Color
	dim   *color.Color
}

func newTextRenderer(out io.Writer, colors bool) *textRenderer {
	r := &textRenderer{
		out: out,
		kinds: map[board.EventKind]*color.Color{
			board.KindStatus:      color.New(color.FgCyan),
			board.KindCalibration: color.New(color.FgYellow),
			board.KindMass:        color.New(color.FgGreen),
			board.KindButton:      color.New(color.FgMagenta, color.Bold),
		},
		dim: color.New(color.Faint),
	}
	for _, c := range r.kinds {
		setColor(c, colors)
	}
	setColor(r.dim, colors)
	return r
}

func setColor(c *color.Color, enabled bool) {
	if enabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
}

func (r *textRenderer) Render(ev board.Event) error {
	label := r.kinds[ev.Kind()].Sprintf("%-11s", ev.Kind())
	_, err := fmt.Fprintf(r.out, "%s %s %s\n", r.dim.Sprint(ev.Time().Format(clockFormat)), label, describe(ev))
	return err
}

// describe renders the event payload for humans
func describe(ev board.Event) string {
	switch e := ev.(type) {
	case board.StatusEvent:
		light := "off"
		if e.LightOn {
			light = "on"
		}
		return fmt.Sprintf("battery %5.1f%%  light %s", e.BatteryPct, light)

	case board.CalibrationEvent:
		var b strings.Builder
		for i, corner := range calibration.Corners {
			if i > 0 {
				b.WriteString("  ")
			}
			c0, c1, c2 := e.Matrix.Cells(corner)
			fmt.Fprintf(&b, "%s %d/%d/%d", cornerAbbrev(corner), c0, c1, c2)
		}
		return b.String()

	case board.MassEvent:
		r := e.Reading
		x, y := r.Balance()
		return fmt.Sprintf("total %6.2f kg  TR %5.2f  BR %5.2f  TL %5.2f  BL %5.2f  balance %+.2f,%+.2f",
			r.Total(), r.TopRight, r.BottomRight, r.TopLeft, r.BottomLeft, x, y)

	case board.ButtonEvent:
		if e.Pressed {
			return "pressed"
		}
		return "released"

	default:
		return ""
	}
}

func cornerAbbrev(c calibration.Corner) string {
	switch c {
	case calibration.TopRight:
		return "TR"
	case calibration.BottomRight:
		return "BR"
	case calibration.TopLeft:
		return "TL"
	case calibration.BottomLeft:
		return "BL"
	default:
		return "??"
	}
}

type jsonRenderer struct {
	enc *json.Encoder
}

// Render writes one JSON object per line. Keys keep a fixed order: time,
// kind, then the payload.
func (r *jsonRenderer) Render(ev board.Event) error {
	om := orderedmap.New[string, any]()
	om.Set("time", ev.Time().Format(time.RFC3339Nano))
	om.Set("kind", ev.Kind().String())

	switch e := ev.(type) {
	case board.StatusEvent:
		om.Set("battery_pct", round2(e.BatteryPct))
		om.Set("light_on", e.LightOn)

	case board.CalibrationEvent:
		matrix := orderedmap.New[string, [3]uint32]()
		for _, corner := range calibration.Corners {
			c0, c1, c2 := e.Matrix.Cells(corner)
			matrix.Set(corner.String(), [3]uint32{c0, c1, c2})
		}
		om.Set("matrix", matrix)

	case board.MassEvent:
		corners := orderedmap.New[string, float64]()
		for _, corner := range calibration.Corners {
			corners.Set(corner.String(), round2(e.Reading.Corner(corner)))
		}
		x, y := e.Reading.Balance()
		om.Set("total_kg", round2(e.Reading.Total()))
		om.Set("corners", corners)
		om.Set("balance", [2]float64{round2(x), round2(y)})

	case board.ButtonEvent:
		om.Set("pressed", e.Pressed)
	}

	return r.enc.Encode(om)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
