package selector

import (
	"context"
	"errors"
	"fmt"

	"pressroom/internal/scraper"
	"pressroom/pkg/llm"
	"pressroom/pkg/logging"
)

const defaultScoreThreshold = 90

// Result is the winning candidate with its relevance score.
type Result struct {
	Candidate scraper.CandidateImage
	Score     float64
	Reasoning string
}

// VisionScorer rates one image against keywords. *llm.VisionClient satisfies
// this; tests substitute fakes.
type VisionScorer interface {
	ScoreImage(ctx context.Context, imageData []byte, keywords string) (llm.VisionScore, error)
}

// Config configures a Selector.
type Config struct {
	Vision VisionScorer
	Logger logging.Logger
	// Threshold stops scoring early once a candidate reaches it. Zero means
	// the default of 90.
	Threshold float64
}

// Selector picks the best thumbnail from a set of candidate images by asking
// a vision model to score each against the item's keywords.
type Selector struct {
	vision    VisionScorer
	logger    logging.Logger
	threshold float64
}

func New(cfg Config) *Selector {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = defaultScoreThreshold
	}
	return &Selector{
		vision:    cfg.Vision,
		logger:    cfg.Logger,
		threshold: threshold,
	}
}

// Select scores every candidate and returns the highest scorer. Scoring stops
// early once a candidate reaches the threshold. Individual scoring failures
// are logged and skipped; Select fails only when no candidate could be
// analyzed at all.
func (s *Selector) Select(ctx context.Context, candidates []scraper.CandidateImage, keywords string) (Result, error) {
	if len(candidates) < 2 {
		return Result{}, fmt.Errorf("selection requires at least 2 candidates, got %d", len(candidates))
	}
	if s.vision == nil {
		return Result{}, errors.New("vision scorer not configured")
	}

	var best *Result
	for idx, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			if best != nil {
				// Deadline hit partway through; the best so far still wins.
				return *best, nil
			}
			return Result{}, err
		}

		data, err := candidate.Read()
		if err != nil {
			s.logger.WithError(err).WithField("path", candidate.Path).Warn("Failed to read candidate image")
			continue
		}

		score, err := s.vision.ScoreImage(ctx, data, keywords)
		if err != nil {
			s.logger.WithError(err).WithField("image", candidate.FileName()).Warn("Failed to analyze candidate image")
			continue
		}

		s.logger.WithFields(logging.Fields{
			"image":    candidate.FileName(),
			"score":    score.Score,
			"progress": fmt.Sprintf("%d/%d", idx+1, len(candidates)),
		}).Info("Scored candidate image")

		if best == nil || score.Score > best.Score {
			best = &Result{Candidate: candidate, Score: score.Score, Reasoning: score.Reasoning}
		}

		if score.Score >= s.threshold {
			s.logger.WithField("score", score.Score).Info("Score threshold reached, stopping early")
			break
		}

		if (idx+1)%10 == 0 {
			s.logger.WithField("best", best.Score).Info("Scoring batch complete")
		}
	}

	if best == nil {
		return Result{}, errors.New("failed to analyze any candidate image")
	}
	return *best, nil
}
