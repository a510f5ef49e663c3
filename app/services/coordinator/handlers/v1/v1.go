// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/hashrace/coordinator/app/services/coordinator/handlers/v1/public"
	"github.com/hashrace/coordinator/foundation/blockchain/state"
	"github.com/hashrace/coordinator/foundation/events"
	"github.com/hashrace/coordinator/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		WS:    websocket.Upgrader{},
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/template", pbl.Template)
	app.Handle(http.MethodPost, version, "/block/submit", pbl.SubmitBlock)
	app.Handle(http.MethodGet, version, "/block/:hash", pbl.Block)
	app.Handle(http.MethodGet, version, "/metrics", pbl.Metrics)
	app.Handle(http.MethodGet, version, "/chain/main", pbl.MainChain)
	app.Handle(http.MethodGet, version, "/chain/main/:limit", pbl.MainChain)
	app.Handle(http.MethodGet, version, "/chain/blocks", pbl.AllBlocks)
	app.Handle(http.MethodGet, version, "/chain/recent", pbl.RecentBlocks)
	app.Handle(http.MethodGet, version, "/chain/recent/:limit", pbl.RecentBlocks)
	app.Handle(http.MethodGet, version, "/events", pbl.Events)
}
