package booth

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/moonback/photoboot/internal/capture"
	"github.com/moonback/photoboot/internal/filter"
	"github.com/moonback/photoboot/internal/layout"
	"github.com/moonback/photoboot/internal/naming"
)

// SessionRequest holds the caller's choices for a capture session. Zero
// values select the controller defaults, except Countdown where only nil
// does, so an explicit 0 shoots immediately.
type SessionRequest struct {
	Mode        string `json:"mode"`
	ShotCount   int    `json:"shot_count"`
	Countdown   *int   `json:"countdown,omitempty"`
	Filter      string `json:"filter"`
	Template    string `json:"template"`
	TextOverlay string `json:"text_overlay"`
	NoFrame     bool   `json:"no_frame"`
}

// Session is a validated SessionRequest.
type Session struct {
	ID          string       `json:"session_id"`
	Mode        capture.Mode `json:"mode"`
	ShotCount   int          `json:"shot_count"`
	Countdown   int          `json:"countdown"`
	Filter      filter.Name  `json:"filter"`
	Template    string       `json:"template"`
	TextOverlay string       `json:"text_overlay,omitempty"`
	UseFrame    bool         `json:"use_frame"`
}

// ComposeRequest describes a print built from uploaded photos.
type ComposeRequest struct {
	Template       string
	TextOverlay    string
	Filter         string
	UseActiveFrame bool
}

// Result describes a stored print.
type Result struct {
	SessionID     string        `json:"session_id,omitempty"`
	Template      string        `json:"template"`
	Filename      string        `json:"filename"`
	PrintKey      string        `json:"canvas_path"`
	ThumbnailKey  string        `json:"thumbnail_path"`
	ShotKeys      []string      `json:"shots,omitempty"`
	PhotosUsed    int           `json:"photos_count"`
	PhotosDropped int           `json:"photos_dropped,omitempty"`
	Framed        bool          `json:"framed"`
	FrameFallback bool          `json:"frame_fallback,omitempty"`
	Duration      time.Duration `json:"duration_ns"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Status is the capture status plus the outcome of the last session.
type Status struct {
	capture.Status
	SessionID  string  `json:"session_id,omitempty"`
	LastResult *Result `json:"last_result"`
	LastError  string  `json:"last_error,omitempty"`
}

func (c *Controller) prepare(req SessionRequest) (*Session, *layout.Template, error) {
	mode, err := capture.ParseMode(req.Mode)
	if err != nil {
		return nil, nil, err
	}
	tmpl, err := c.template(req.Template)
	if err != nil {
		return nil, nil, err
	}

	countdown := c.defaults.Countdown
	if req.Countdown != nil {
		countdown = *req.Countdown
	}

	shots := 1
	if mode == capture.Multi {
		shots = req.ShotCount
		if shots == 0 {
			shots = tmpl.Slots()
			if shots < 2 {
				shots = c.defaults.StripShots
			}
		}
		if shots > tmpl.Slots() {
			log.Warn().
				Str("template", tmpl.Name).
				Int("shot_count", shots).
				Int("slots", tmpl.Slots()).
				Msg("Shot count exceeds template slots, extra shots will not be printed")
		}
	}

	return &Session{
		ID:          naming.NewSessionID("sess-"),
		Mode:        mode,
		ShotCount:   shots,
		Countdown:   countdown,
		Filter:      c.parseFilter(req.Filter),
		Template:    tmpl.Name,
		TextOverlay: req.TextOverlay,
		UseFrame:    !req.NoFrame,
	}, tmpl, nil
}

func (c *Controller) template(name string) (*layout.Template, error) {
	if name == "" {
		name = c.defaults.Template
	}
	return c.deps.Templates.Get(name)
}

// parseFilter falls back to no filter for unknown names; filters are cosmetic.
func (c *Controller) parseFilter(s string) filter.Name {
	if s == "" {
		s = c.defaults.Filter
	}
	name, err := filter.Parse(s)
	if err != nil {
		log.Warn().Err(err).Msg("Unknown filter, continuing without filter")
		return filter.None
	}
	return name
}
