package scanner

import (
	"context"
	"fmt"

	"github.com/JakeFAU/seo-scanner/internal/seo"
)

const navigationTimingScript = `(() => {
  const [nav] = performance.getEntriesByType("navigation");
  if (nav) { return nav.domContentLoadedEventEnd - nav.startTime; }
  const t = performance.timing;
  return t.domContentLoadedEventEnd - t.navigationStart;
})()`

// measureRenderingTime returns seconds from navigation start until the end of
// DOMContentLoaded.
func measureRenderingTime(ctx context.Context, tab seo.Tab) (float64, error) {
	if err := tab.WaitForLoad(ctx, seo.MilestoneDOMContentLoaded, 0); err != nil {
		return 0, err
	}
	var ms float64
	if err := tab.Evaluate(ctx, navigationTimingScript, &ms); err != nil {
		return 0, fmt.Errorf("navigation timing: %w", err)
	}
	if ms < 0 {
		ms = 0
	}
	return ms / 1000, nil
}
