package api

import (
	"net/http"

	"cafeplease/internal/auth"
	"cafeplease/internal/schema"
	"cafeplease/internal/service"
	"cafeplease/internal/ws"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Dependencies struct {
	Desk   *service.Desk
	Hub    *ws.Hub
	Schema *schema.Compiler
	JWT    *auth.JWTConfig
	Log    *zap.Logger
}

func Routes(d Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger(d.Log))

	// The websocket handler authenticates on its own so browsers can pass ?token=.
	r.Get("/ws", d.wsHandler)

	r.Group(func(r chi.Router) {
		r.Use(d.JWT.Middleware)

		// Request endpoints
		r.Post("/requests", d.submitRequest)
		r.Get("/requests/{id}", d.getRequest)
		r.Get("/requests/{id}/position", d.requestPosition)
		r.Post("/requests/{id}/accept", d.ownTransition(d.Desk.AcceptApproval))
		r.Post("/requests/{id}/decline", d.ownTransition(d.Desk.DeclineApproval))
		r.Post("/requests/{id}/cancel", d.ownTransition(d.Desk.CancelRequest))
		r.Post("/requests/{id}/end", d.ownTransition(d.Desk.EndActiveEarly))

		// Team projections
		r.Get("/teams/{team}/queue", d.teamQueue)
		r.Get("/teams/{team}/active", d.teamActive)

		r.Get("/settings", d.getSettings)
		r.Get("/leaderboard/scores", d.leaderboardScores)
		r.Get("/leaderboard/sales", d.leaderboardSales)
		r.Post("/sales", d.reportSale)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireManager)

			r.Post("/requests/{id}/approve", d.approveRequest)
			r.Post("/requests/{id}/reject", d.rejectRequest)
			r.Get("/board", d.board)
			r.Get("/summary", d.summary)
			r.Put("/settings", d.updateSettings)
			r.Get("/users", d.listUsers)
			r.Post("/users", d.saveUser)
			r.Delete("/users/{id}", d.deleteUser)
		})
	})

	return r
}
