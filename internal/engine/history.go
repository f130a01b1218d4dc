package engine

import (
	"time"

	"llm-spot-trader/internal/types"
)

// history keeps the bounded chart buffers. Samples grow to sampleCap and are
// then cut back to the newest sampleTrim; markers keep the newest markerCap.
type history struct {
	sampleCap, sampleTrim, markerCap int

	samples []types.PortfolioSample
	markers []types.ChartMarker
}

func newHistory(sampleCap, sampleTrim, markerCap int) *history {
	return &history{sampleCap: sampleCap, sampleTrim: sampleTrim, markerCap: markerCap}
}

func (h *history) addSample(t time.Time, value float64) {
	h.samples = append(h.samples, types.PortfolioSample{Time: t, Value: value})
	if len(h.samples) > h.sampleCap {
		h.samples = append([]types.PortfolioSample(nil), h.samples[len(h.samples)-h.sampleTrim:]...)
	}
}

func (h *history) addMarker(t time.Time, value float64, side types.Side) {
	h.markers = append(h.markers, types.ChartMarker{Time: t, Value: value, Side: side})
	if len(h.markers) > h.markerCap {
		h.markers = append([]types.ChartMarker(nil), h.markers[len(h.markers)-h.markerCap:]...)
	}
}

func (h *history) lastValue() float64 {
	if len(h.samples) == 0 {
		return 0
	}
	return h.samples[len(h.samples)-1].Value
}

func (h *history) copySamples() []types.PortfolioSample {
	return append([]types.PortfolioSample(nil), h.samples...)
}

func (h *history) copyMarkers() []types.ChartMarker {
	return append([]types.ChartMarker(nil), h.markers...)
}
