package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
)

func (app *application) JWTMiddlewareWithRole(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return app.JWTMiddleware(next, requiredRole)
	}
}

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders, makeResponseJSON)
	// Empty role: any authenticated user.
	authMiddleware := standardMiddleware.Append(app.JWTMiddlewareWithRole(""))
	clientMiddleware := standardMiddleware.Append(app.JWTMiddlewareWithRole("client"))
	professionalMiddleware := standardMiddleware.Append(app.JWTMiddlewareWithRole("professional"))

	mux := pat.New()

	// Users
	mux.Post("/user/sign_up", standardMiddleware.ThenFunc(app.userHandler.SignUp))
	mux.Post("/user/sign_in", standardMiddleware.ThenFunc(app.userHandler.SignIn))
	mux.Get("/user/profile", authMiddleware.ThenFunc(app.userHandler.Profile))

	// Requests
	mux.Post("/request", clientMiddleware.ThenFunc(app.requestHandler.CreateRequest))
	mux.Get("/request/available", professionalMiddleware.ThenFunc(app.requestHandler.GetAvailableRequests))
	mux.Get("/request/:id/quote", professionalMiddleware.ThenFunc(app.requestHandler.GetQuote))
	mux.Post("/request/:id/purchase", professionalMiddleware.ThenFunc(app.requestHandler.PurchaseAccess))
	mux.Get("/request/:id", professionalMiddleware.ThenFunc(app.requestHandler.GetRequestByID))

	// Wallet
	mux.Get("/wallet", professionalMiddleware.ThenFunc(app.walletHandler.GetWallet))
	mux.Post("/wallet/recharge", professionalMiddleware.ThenFunc(app.walletHandler.CreateRecharge))

	// Payment provider webhook. Unauthenticated: the signature check is the
	// authentication.
	mux.Post("/webhook/stripe", standardMiddleware.ThenFunc(app.webhookHandler.HandleWebhook))
	mux.Get("/webhook/stripe", standardMiddleware.ThenFunc(app.webhookHandler.HandleWebhook))

	return standardMiddleware.Then(mux)
}
