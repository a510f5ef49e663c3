// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	v1 "github.com/hashrace/coordinator/business/web/v1"
	"github.com/hashrace/coordinator/foundation/blockchain/state"
	"github.com/hashrace/coordinator/foundation/events"
	"github.com/hashrace/coordinator/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of public coordinator endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Template returns the block template miners should be working on.
func (h Handlers) Template(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tpl := h.State.RetrieveTemplate()
	return web.Respond(ctx, w, tpl, http.StatusOK)
}

// SubmitBlock validates a miner's block proposal and admits it into the
// ledger. Rejections are normal outcomes of mining races so they travel
// back as a 200 with the reason, not as an error.
func (h Handlers) SubmitBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var sub submission
	if err := web.Decode(r, &sub); err != nil {
		return err
	}

	block, err := h.State.SubmitBlock(sub.Height, sub.PrevHash, sub.Nonce, sub.MinerID, sub.TimestampMS)
	if err != nil {
		re := state.GetReject(err)
		if re == nil {
			return v1.NewRequestError(err, http.StatusInternalServerError)
		}

		h.Log.Infow("block rejected", "traceid", v.TraceID, "miner", sub.MinerID, "height", sub.Height, "reason", re.Reason)

		result := submitResult{
			Accepted: false,
			Reason:   re.Error(),
		}
		return web.Respond(ctx, w, result, http.StatusOK)
	}

	h.Log.Infow("block accepted", "traceid", v.TraceID, "miner", block.MinerID, "height", block.Height, "hash", block.BlockHash)

	result := submitResult{
		Accepted:  true,
		BlockHash: block.BlockHash,
		Height:    block.Height,
	}
	return web.Respond(ctx, w, result, http.StatusOK)
}

// Metrics returns a snapshot of the chain health statistics.
func (h Handlers) Metrics(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	metrics := h.State.RetrieveMetrics()
	return web.Respond(ctx, w, metrics, http.StatusOK)
}

// MainChain returns the last blocks on the canonical chain, genesis first.
func (h Handlers) MainChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	limit, err := limitParam(r, 50)
	if err != nil {
		return err
	}

	view := mainChain{
		Blocks: h.State.QueryMainChain(limit),
	}
	return web.Respond(ctx, w, view, http.StatusOK)
}

// Block returns a single block by hash, tagged with whether it sits on the
// canonical chain.
func (h Handlers) Block(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	block, exists := h.State.QueryBlock(web.Param(r, "hash"))
	if !exists {
		return v1.NewRequestError(errBlockNotFound, http.StatusNotFound)
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// AllBlocks returns every known block across all branches, each tagged
// with whether it sits on the canonical chain.
func (h Handlers) AllBlocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	view := allBlocks{
		Blocks: h.State.QueryAllBlocks(),
	}
	return web.Respond(ctx, w, view, http.StatusOK)
}

// RecentBlocks returns the most recently accepted blocks regardless of
// which branch they extend.
func (h Handlers) RecentBlocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	limit, err := limitParam(r, 50)
	if err != nil {
		return err
	}

	view := mainChain{
		Blocks: h.State.QueryRecentBlocks(limit),
	}
	return web.Respond(ctx, w, view, http.StatusOK)
}

// Events handles a web socket to provide engine events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// limitParam parses the limit route parameter, falling back to a default
// when the route has none.
func limitParam(r *http.Request, fallback int) (int, error) {
	param := web.Param(r, "limit")
	if param == "" {
		return fallback, nil
	}

	limit, err := strconv.Atoi(param)
	if err != nil || limit < 0 {
		return 0, v1.NewRequestError(errInvalidLimit, http.StatusBadRequest)
	}

	return limit, nil
}
