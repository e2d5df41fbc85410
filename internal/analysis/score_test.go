package analysis

import "testing"

func TestComputeScore_CleanSiteScoresMax(t *testing.T) {
	got := ComputeScore(scoreInput{isHTTPS: true})
	if got != 100 {
		t.Fatalf("expected a clean HTTPS site to score 100, got %d", got)
	}
}

func TestComputeScore_DeductionsAccumulate(t *testing.T) {
	in := scoreInput{
		trackerCount: 2,
		isHTTPS:      true,
		canvas:       true,
		keylogger:    true,
	}
	got := ComputeScore(in)
	want := 100 - 16 - 15 - 15
	if got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestComputeScore_FloorsAtZero(t *testing.T) {
	in := scoreInput{
		trackerCount:         20,
		cookieCount:          30,
		isHTTPS:              false,
		canvas:               true,
		webgl:                true,
		font:                 true,
		keylogger:            true,
		formSnooping:         true,
		anyBeacon:            true,
		serviceWorker:        true,
		anyTrackingParam:     true,
		cspAbsent:            true,
		inlineTrackerScripts: 1,
	}
	got := ComputeScore(in)
	if got != 0 {
		t.Fatalf("expected score floored at 0, got %d", got)
	}
}

func TestComputeScore_NeverExceedsRange(t *testing.T) {
	for trackers := 0; trackers <= 20; trackers++ {
		for _, https := range []bool{true, false} {
			score := ComputeScore(scoreInput{trackerCount: trackers, isHTTPS: https, canvas: !https})
			if score < 0 || score > 100 {
				t.Fatalf("score %d escaped [0,100]", score)
			}
		}
	}
}
