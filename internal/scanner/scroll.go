package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/seo-scanner/internal/seo"
)

// ScrollConfig bounds the lazy-load scroll routine.
type ScrollConfig struct {
	Delay       time.Duration
	Step        int
	MaxAttempts int
	// GrowAfter is the attempt count after which Step grows by StepGrowth per
	// attempt, up to MaxStep.
	GrowAfter  int
	StepGrowth int
	MaxStep    int
	// Tolerance is how close to the page height, in pixels, counts as the bottom.
	Tolerance float64
}

// DefaultScrollConfig returns the stock scroll settings.
func DefaultScrollConfig() ScrollConfig {
	return ScrollConfig{
		Delay:       time.Second,
		Step:        300,
		MaxAttempts: 100,
		GrowAfter:   10,
		StepGrowth:  100,
		MaxStep:     1000,
		Tolerance:   10,
	}
}

func (c ScrollConfig) withDefaults() ScrollConfig {
	def := DefaultScrollConfig()
	if c.Delay < 0 {
		c.Delay = 0
	}
	if c.Step <= 0 {
		c.Step = def.Step
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.GrowAfter <= 0 {
		c.GrowAfter = def.GrowAfter
	}
	if c.StepGrowth <= 0 {
		c.StepGrowth = def.StepGrowth
	}
	if c.MaxStep <= 0 {
		c.MaxStep = def.MaxStep
	}
	if c.Tolerance <= 0 {
		c.Tolerance = def.Tolerance
	}
	return c
}

const (
	scrollHeightScript = `document.body.scrollHeight || document.documentElement.scrollHeight`
	pageHeightScript   = `Math.max(document.body.scrollHeight, document.documentElement.scrollHeight,
  document.body.offsetHeight, document.documentElement.offsetHeight,
  document.body.clientHeight, document.documentElement.clientHeight)`
	positionScript    = `window.pageYOffset + window.innerHeight`
	scrollFinalScript = `window.scrollTo(0, document.body.scrollHeight); true`
)

func scrollStepScript(step int) string {
	return fmt.Sprintf(`(() => {
  const start = window.pageYOffset;
  window.scrollBy({top: %d, behavior: "smooth"});
  return window.pageYOffset !== start;
})()`, step)
}

// scrollToBottom scrolls in steps until the page stops moving or stops
// growing, then jumps to the very bottom.
func scrollToBottom(ctx context.Context, tab seo.Tab, cfg ScrollConfig) error {
	var lastHeight float64
	if err := tab.Evaluate(ctx, scrollHeightScript, &lastHeight); err != nil {
		return err
	}
	step := cfg.Step
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		var moved bool
		if err := tab.Evaluate(ctx, scrollStepScript(step), &moved); err != nil {
			return err
		}
		if !moved {
			break
		}
		if err := sleep(ctx, cfg.Delay); err != nil {
			return err
		}
		var height, position float64
		if err := tab.Evaluate(ctx, pageHeightScript, &height); err != nil {
			return err
		}
		if err := tab.Evaluate(ctx, positionScript, &position); err != nil {
			return err
		}
		if height == lastHeight && position >= height-cfg.Tolerance {
			break
		}
		lastHeight = height
		if attempt > cfg.GrowAfter && step < cfg.MaxStep {
			step = min(cfg.MaxStep, step+cfg.StepGrowth)
		}
	}
	var done bool
	return tab.Evaluate(ctx, scrollFinalScript, &done)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
