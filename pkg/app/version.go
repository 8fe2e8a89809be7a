package app

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// VERSION is major.minor.patch+<first day of the release month>.
const (
	VERSION = "1.0.02+20261001"
	MODULE  = "bsbtrace"
)

// HandleVersion serves the version of the trace logger.
func (app *App) HandleVersion() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request version")

		return ctx.JSON(fiber.Map{
			"version":     VERSION,
			"description": MODULE,
			"about":       Version(),
		})
	}
}

// Version returns the module name and release, e.g. "bsbtrace V1.0.02".
func Version() string {
	release, _, _ := strings.Cut(VERSION, "+")
	return MODULE + " V" + release
}
