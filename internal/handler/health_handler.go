package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-feedback-dashboard/internal/config"
	"github.com/noah-isme/gema-feedback-dashboard/internal/utils"
)

// StoreStatus reports whether the submission store is open and the error of
// its last failed connection attempt.
type StoreStatus interface {
	Status() (bool, error)
}

// StoreHealth describes the submission store behind the dashboard.
type StoreHealth struct {
	Driver     string `json:"driver"`
	Collection string `json:"collection"`
	Connected  bool   `json:"connected"`
	Error      string `json:"error,omitempty"`
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string      `json:"status"`
	Timestamp   time.Time   `json:"timestamp"`
	Service     string      `json:"service"`
	Environment string      `json:"environment"`
	Store       StoreHealth `json:"store"`
}

// HealthCheck reports liveness. The status is "degraded" while the last
// attempt to open the store failed; the endpoint still answers 200 so the
// process is not restarted for an upstream outage.
func HealthCheck(cfg config.Config, store StoreStatus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Store: StoreHealth{
				Driver:     cfg.StoreDriver,
				Collection: cfg.SubmissionsTable,
			},
		}

		if store != nil {
			connected, err := store.Status()
			payload.Store.Connected = connected
			if err != nil {
				payload.Status = "degraded"
				payload.Store.Error = err.Error()
			}
		}

		return utils.SendSuccess(c, "service "+payload.Status, payload)
	}
}
