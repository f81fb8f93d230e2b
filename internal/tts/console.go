package tts

import (
	"context"
	"time"
)

// Console "speaks" by handing the text to Print and then holding for roughly
// the time a voice would take, so interruption behaves like real audio.
type Console struct {
	Print   func(u Utterance)
	PerRune time.Duration
}

const defaultPerRune = 60 * time.Millisecond

func (c *Console) Voices(ctx context.Context) ([]Voice, error) {
	return []Voice{{ID: "console", Name: "Console", Lang: "en-US", Default: true}}, nil
}

func (c *Console) Synthesize(ctx context.Context, u Utterance) error {
	start := time.Now()
	if c.Print != nil && u.Volume > 0 {
		c.Print(u)
	}
	ttsFirstFrameMS.Observe(float64(time.Since(start).Milliseconds()))

	per := c.PerRune
	if per <= 0 {
		per = defaultPerRune
	}
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	hold := time.Duration(float64(per) * float64(len([]rune(u.Text))) / rate)
	t := time.NewTimer(hold)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
