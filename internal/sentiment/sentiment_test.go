package sentiment

import (
	"math"
	"testing"
)

func assertDistribution(t *testing.T, d Distribution) {
	t.Helper()
	if sum := d.Pos + d.Neu + d.Neg; math.Abs(sum-1) > 1e-6 {
		t.Fatalf("distribution must sum to 1, got %f (%+v)", sum, d)
	}
	for _, v := range []float64{d.Pos, d.Neu, d.Neg} {
		if v < 0 || v > 1 {
			t.Fatalf("distribution component out of range: %+v", d)
		}
	}
}

func TestLexiconScorerNeutralWhenNoPolarityWords(t *testing.T) {
	t.Parallel()

	scorer := NewLexiconScorer()
	result := scorer.Score("The finale aired on Sunday night.")

	assertDistribution(t, result.Distribution)
	if result.Distribution != Neutral() {
		t.Fatalf("expected neutral distribution, got %+v", result.Distribution)
	}
	if result.Intensity != 0 {
		t.Fatalf("neutral sentence should carry zero intensity, got %f", result.Intensity)
	}
}

func TestLexiconScorerPositive(t *testing.T) {
	t.Parallel()

	scorer := NewLexiconScorer()
	result := scorer.Score("This show is amazing and the cast is perfect.")

	assertDistribution(t, result.Distribution)
	if result.Distribution.Pos <= result.Distribution.Neg {
		t.Fatalf("expected positive skew, got %+v", result.Distribution)
	}
	if result.Distribution.Signed() <= 0 {
		t.Fatalf("signed score should be positive, got %f", result.Distribution.Signed())
	}
}

func TestLexiconScorerNegative(t *testing.T) {
	t.Parallel()

	scorer := NewLexiconScorer()
	result := scorer.Score("That was an awful, boring mess.")

	assertDistribution(t, result.Distribution)
	if result.Distribution.Neg <= result.Distribution.Pos {
		t.Fatalf("expected negative skew, got %+v", result.Distribution)
	}
}

func TestLexiconScorerStemsInflections(t *testing.T) {
	t.Parallel()

	scorer := NewLexiconScorer()
	result := scorer.Score("Everyone loved the performance.")

	if result.Distribution.Pos <= 0 {
		t.Fatalf("expected 'loved' to stem onto the positive lexicon, got %+v", result.Distribution)
	}
}

func TestLexiconScorerIntensifiersRaiseIntensity(t *testing.T) {
	t.Parallel()

	scorer := NewLexiconScorer()
	plain := scorer.Score("The show is great and fun to watch overall this season.")
	intense := scorer.Score("The show is really great and so fun to watch overall.")

	if intense.Intensity <= plain.Intensity {
		t.Fatalf("intensifiers should raise intensity: %f <= %f", intense.Intensity, plain.Intensity)
	}
	if intense.Intensity < 0 || intense.Intensity > 1 {
		t.Fatalf("intensity out of range: %f", intense.Intensity)
	}
}

func TestLexiconScorerSupportAndDesire(t *testing.T) {
	t.Parallel()

	scorer := NewLexiconScorer()
	result := scorer.Score("No notes, we love her. Can't wait for another season!")

	if result.Support <= 0 {
		t.Fatalf("expected support signal, got %f", result.Support)
	}
	if result.Desire <= 0 {
		t.Fatalf("expected desire signal, got %f", result.Desire)
	}
}

func TestLexiconScorerEmptyInput(t *testing.T) {
	t.Parallel()

	scorer := NewLexiconScorer()
	result := scorer.Score("")

	if result.Distribution != Neutral() {
		t.Fatalf("empty input should score neutral, got %+v", result.Distribution)
	}
}
