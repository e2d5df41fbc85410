package analysis

import "github.com/privacyanalyzer/privacyanalyzer/internal/crawl"

// scoreInput carries the exact signals the privacy score formula
// deducts against (spec §4.I Privacy score).
type scoreInput struct {
	trackerCount           int
	cookieCount            int
	isHTTPS                bool
	canvas                 bool
	webgl                  bool
	font                   bool
	keylogger              bool
	formSnooping           bool
	anyBeacon              bool
	serviceWorker          bool
	anyTrackingParam       bool
	cspAbsent              bool
	inlineTrackerScripts   int
}

// ComputeScore applies the fixed deduction table to derive the 0-100
// privacy score, starting from 100.
func ComputeScore(in scoreInput) int {
	score := 100
	score -= 8 * in.trackerCount
	if in.cookieCount > 20 {
		score -= 10
	}
	if !in.isHTTPS {
		score -= 20
	}
	if in.canvas {
		score -= 15
	}
	if in.webgl {
		score -= 10
	}
	if in.font {
		score -= 8
	}
	if in.keylogger {
		score -= 15
	}
	if in.formSnooping {
		score -= 8
	}
	if in.anyBeacon {
		score -= 8
	}
	if in.serviceWorker {
		score -= 5
	}
	if in.anyTrackingParam {
		score -= 10
	}
	if in.cspAbsent {
		score -= 5
	}
	if in.inlineTrackerScripts > 0 {
		score -= 5
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func buildScoreInput(artifact *crawl.Artifact, trackerCount int) scoreInput {
	in := scoreInput{
		trackerCount: trackerCount,
		cookieCount:  len(artifact.Cookies),
		isHTTPS:      artifact.IsHTTPS,
		cspAbsent:    !artifact.HasCSP,
	}
	for _, p := range artifact.Pages {
		in.canvas = in.canvas || p.Fingerprinting.Canvas
		in.webgl = in.webgl || p.Fingerprinting.WebGL
		in.font = in.font || p.Fingerprinting.Font
		in.keylogger = in.keylogger || p.Fingerprinting.Keylogger
		in.formSnooping = in.formSnooping || p.Fingerprinting.FormSnooping
		in.serviceWorker = in.serviceWorker || p.Fingerprinting.ServiceWorker
		if len(p.Fingerprinting.Beacons) > 0 {
			in.anyBeacon = true
		}
		for _, s := range p.Scripts.Inline {
			if s.TrackerSignaturePresent {
				in.inlineTrackerScripts++
			}
		}
		for _, r := range p.Requests {
			if len(r.TrackingParams) > 0 {
				in.anyTrackingParam = true
			}
		}
	}
	return in
}
