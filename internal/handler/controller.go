package handler

import (
	"bytes"
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"trends-go/pkg/batch"
	"trends-go/pkg/logger"
	"trends-go/pkg/storage"
)

// BatchRunner executes one decoded request.
type BatchRunner interface {
	Run(ctx context.Context, req *batch.Request) (*batch.Response, error)
}

// RunnerFactory builds a runner for a request. Each request carries its own
// tz and proxy, so the collaborator is constructed per request.
type RunnerFactory func(req *batch.Request) (BatchRunner, error)

// Controller exposes the batch run over HTTP in serve mode.
type Controller struct {
	factory RunnerFactory
	cache   *storage.ResponseCache
	log     *logger.Logger
}

func NewController(factory RunnerFactory, cache *storage.ResponseCache) *Controller {
	return &Controller{
		factory: factory,
		cache:   cache,
		log:     logger.GetLogger().WithField("component", "handler"),
	}
}

// Register mounts the controller's routes on the app.
func (c *Controller) Register(app *fiber.App) {
	app.Get("/healthz", c.handleHealth)
	app.Post("/api/v1/interest", c.handleInterest)
}

func (c *Controller) handleHealth(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"status": "ok"})
}

func (c *Controller) handleInterest(ctx *fiber.Ctx) error {
	requestID := uuid.NewString()
	log := c.log.WithField("request_id", requestID)

	req, err := batch.DecodeRequest(bytes.NewReader(ctx.Body()))
	if err != nil {
		log.WithError(err).Warn("Rejected malformed request")
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	key := storage.Fingerprint(req)
	if cached, ok := c.cache.Get(key); ok {
		log.WithFields(map[string]interface{}{
			"fingerprint":    storage.FingerprintShort(req),
			"keywords_count": len(req.Keywords),
		}).Debug("Serving cached response")
		return ctx.JSON(cached)
	}

	runner, err := c.factory(req)
	if err != nil {
		log.WithError(err).Warn("Rejected request with invalid client settings")
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	resp, err := runner.Run(ctx.UserContext(), req)
	if err != nil {
		log.WithError(err).Error("Batch run failed")
		return ctx.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	c.cache.Set(key, resp)

	log.WithFields(map[string]interface{}{
		"fingerprint":    storage.FingerprintShort(req),
		"results_count":  len(resp.Results),
		"keywords_count": len(req.Keywords),
	}).Info("Batch run completed")

	return ctx.JSON(resp)
}
