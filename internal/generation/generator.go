package generation

import (
	"context"
	"fmt"
	"log/slog"
)

// Creator starts predictions
type Creator interface {
	Create(ctx context.Context, in CreateInput) (*Prediction, error)
}

// Generator runs one prompt end to end
type Generator struct {
	creator  Creator
	poller   *Poller
	archiver *Archiver
	logger   *slog.Logger
}

func NewGenerator(creator Creator, poller *Poller, archiver *Archiver, logger *slog.Logger) *Generator {
	return &Generator{creator: creator, poller: poller, archiver: archiver, logger: logger}
}

func (g *Generator) Generate(ctx context.Context, in CreateInput) (Archived, error) {
	pred, err := g.creator.Create(ctx, in)
	if err != nil {
		return Archived{}, fmt.Errorf("create prediction: %w", err)
	}
	g.logger.Info("Prediction created", "prediction_id", pred.ID, "status", pred.Status)

	if !pred.Status.Terminal() {
		if pred, err = g.poller.Wait(ctx, pred.ID); err != nil {
			return Archived{}, err
		}
	} else if pred.Status != StatusSucceeded {
		return Archived{}, &FailedError{ID: pred.ID, Reason: pred.Error}
	}

	return g.archiver.Archive(ctx, pred)
}
