package app

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// runWebServer starts the applications web server and listens for web requests.
//  It's designed to run in a separate go function to not block the main go function.
//  e.g.: go runWebServer()
//  See app.Run()
func (app *App) runWebServer() {
	err := app.web.Listen(app.urlParsed.Host)
	debug.ErrorLog.Print(err)
}

// HandleData returns the last logged reading of every field.
func (app *App) HandleData() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request data")

		data := make([]Snapshot, 0, len(app.order))
		for _, id := range app.order {
			data = append(data, app.channels[id].snapshot())
		}
		return ctx.JSON(data)
	}
}

// HandleField returns the last logged reading of the field :id.
func (app *App) HandleField() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Printf("web request data %v", ctx.Params("id"))

		id, err := strconv.Atoi(ctx.Params("id"))
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid disp_id")
		}

		ch, ok := app.channels[id]
		if !ok {
			return fiber.NewError(http.StatusNotFound, "field isn't logged")
		}
		return ctx.JSON(ch.snapshot())
	}
}
