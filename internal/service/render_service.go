package service

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	appErrors "github.com/fieldvue/dispatch-api/pkg/errors"
)

// RenderTheme styles the SVG board snapshot. Loaded from YAML so operations
// can re-skin exports without a rebuild.
type RenderTheme struct {
	Background   string `yaml:"background"`
	RowStroke    string `yaml:"row_stroke"`
	GridStroke   string `yaml:"grid_stroke"`
	CardFill     string `yaml:"card_fill"`
	CardStroke   string `yaml:"card_stroke"`
	OverlapFill  string `yaml:"overlap_fill"`
	TextColor    string `yaml:"text_color"`
	GapFill      string `yaml:"gap_fill"`
	TightFill    string `yaml:"tight_fill"`
	CriticalFill string `yaml:"critical_fill"`
	FontFamily   string `yaml:"font_family"`
	FontSize     int    `yaml:"font_size"`
	HeaderHeight int    `yaml:"header_height"`
	LabelGutter  int    `yaml:"label_gutter"`
	CornerRadius int    `yaml:"corner_radius"`
}

// DefaultRenderTheme is the fallback when no theme file is configured.
func DefaultRenderTheme() RenderTheme {
	return RenderTheme{
		Background:   "#ffffff",
		RowStroke:    "#e2e8f0",
		GridStroke:   "#f1f5f9",
		CardFill:     "#dbeafe",
		CardStroke:   "#3b82f6",
		OverlapFill:  "#fde68a",
		TextColor:    "#1e293b",
		GapFill:      "#f8fafc",
		TightFill:    "#fef3c7",
		CriticalFill: "#fee2e2",
		FontFamily:   "sans-serif",
		FontSize:     11,
		HeaderHeight: 28,
		LabelGutter:  140,
		CornerRadius: 4,
	}
}

// LoadRenderTheme reads a YAML theme, falling back to defaults for any field
// the file leaves empty.
func LoadRenderTheme(path string) (RenderTheme, error) {
	theme := DefaultRenderTheme()
	if path == "" {
		return theme, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return theme, fmt.Errorf("read render theme: %w", err)
	}
	if err := yaml.Unmarshal(raw, &theme); err != nil {
		return theme, fmt.Errorf("parse render theme: %w", err)
	}
	return theme, nil
}

// RenderService draws the current board view as a static SVG, one row per
// resource, with the same geometry the layout engine computes for the live
// board.
type RenderService struct {
	board  *BoardService
	buffer *BufferWindowService
	theme  RenderTheme
	logger *zap.Logger
}

// NewRenderService instantiates RenderService.
func NewRenderService(board *BoardService, buffer *BufferWindowService, theme RenderTheme, logger *zap.Logger) *RenderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenderService{board: board, buffer: buffer, theme: theme, logger: logger}
}

// BoardSVG renders the current board view.
func (s *RenderService) BoardSVG(ctx context.Context) ([]byte, error) {
	view, err := s.board.View(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "board view unavailable")
	}

	t := s.theme
	gutter := float64(t.LabelGutter)
	width := gutter + view.TotalWidth
	height := float64(t.HeaderHeight) + view.TotalHeight

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" font-family="%s" font-size="%d">`,
		width, height, t.FontFamily, t.FontSize)
	fmt.Fprintf(&buf, `<rect width="%.0f" height="%.0f" fill="%s"/>`, width, height, t.Background)

	s.drawHourGrid(&buf, view.Window.Start, view.Window.End, gutter, height)

	y := float64(t.HeaderHeight)
	for _, lane := range view.Lanes {
		fmt.Fprintf(&buf, `<line x1="0" y1="%.1f" x2="%.0f" y2="%.1f" stroke="%s"/>`, y, width, y, t.RowStroke)
		fmt.Fprintf(&buf, `<text x="8" y="%.1f" fill="%s">%s</text>`,
			y+16, t.TextColor, html.EscapeString(lane.Resource.DisplayName))

		for _, gap := range lane.TravelGaps {
			fill := t.GapFill
			if gap.IsInsufficient {
				fill = t.CriticalFill
			} else if gap.IsTight {
				fill = t.TightFill
			}
			fmt.Fprintf(&buf, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>`,
				gutter+gap.Left, y, gap.Width, lane.LaneHeight, fill)
		}

		for _, p := range lane.Appointments {
			cardY := y + 4 + float64(p.Lane)*(lane.LaneHeight/float64(maxInt(lane.LaneCount, 1)))
			cardH := lane.LaneHeight/float64(maxInt(lane.LaneCount, 1)) - 4
			fill := t.CardFill
			if p.HasOverlap {
				fill = t.OverlapFill
			}
			fmt.Fprintf(&buf, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="%d" fill="%s" stroke="%s"/>`,
				gutter+p.Left, cardY, p.Width, cardH, t.CornerRadius, fill, t.CardStroke)
			fmt.Fprintf(&buf, `<text x="%.1f" y="%.1f" fill="%s">%s</text>`,
				gutter+p.Left+4, cardY+14, t.TextColor, html.EscapeString(p.Appointment.Title))
		}
		y += lane.LaneHeight
	}

	buf.WriteString(`</svg>`)
	s.logger.Debug("rendered board svg",
		zap.Int("lanes", len(view.Lanes)),
		zap.Float64("width", width),
	)
	return buf.Bytes(), nil
}

// drawHourGrid draws vertical lines plus a label at every hour boundary.
func (s *RenderService) drawHourGrid(buf *bytes.Buffer, start, end time.Time, gutter, height float64) {
	t := s.theme
	tick := start.Truncate(time.Hour)
	if tick.Before(start) {
		tick = tick.Add(time.Hour)
	}
	for ; tick.Before(end); tick = tick.Add(time.Hour) {
		x := gutter + s.buffer.OffsetOf(tick)
		fmt.Fprintf(buf, `<line x1="%.1f" y1="%d" x2="%.1f" y2="%.0f" stroke="%s"/>`,
			x, t.HeaderHeight, x, height, t.GridStroke)
		if tick.Hour()%6 == 0 {
			fmt.Fprintf(buf, `<text x="%.1f" y="18" fill="%s">%s</text>`,
				x+2, t.TextColor, tick.Format("Jan 2 15:04"))
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
