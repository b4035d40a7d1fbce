package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/openscioly/results-api/handlers"
	"github.com/openscioly/results-api/middleware"
)

// SetupRoutes assembles the full HTTP surface. Mutating routes sit behind
// token authentication plus the admin gate; reads are public.
func SetupRoutes(
	router *chi.Mux,
	auth *middleware.Authenticator,
	authHandler *handlers.AuthHandler,
	resultHandler *handlers.ResultHandler,
	seasonHandler *handlers.SeasonHandler,
	schoolHandler *handlers.SchoolHandler,
	imageHandler *handlers.ImageHandler,
	wsHandler *handlers.WSHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Welcome to the results API!"}`))
	})

	router.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.With(auth.Authenticate).Post("/admin", authHandler.Admin)
		r.With(auth.Authenticate).Get("/me", authHandler.Me)
		r.With(auth.Authenticate, auth.RequireAdmin).Post("/register", authHandler.Register)
	})

	router.Route("/results", func(r chi.Router) {
		r.Get("/", resultHandler.GetAll)
		r.Get("/meta", resultHandler.GetAllMeta)
		r.Get("/latest", resultHandler.Latest)
		r.Get("/recent", resultHandler.Recent)
		r.Get("/count", resultHandler.Count)
		r.Get("/{id}", resultHandler.GetByID)
		r.Get("/{id}/meta", resultHandler.GetMeta)
		r.Get("/{id}/superscore", resultHandler.Superscore)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Post("/", resultHandler.Create)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Delete("/", resultHandler.DeleteAll)
				r.Post("/meta", resultHandler.RegenerateAllMeta)
				r.Post("/yaml", resultHandler.AddYAML)
				r.Post("/yaml/batch", resultHandler.AddManyYAML)
				r.Delete("/{id}", resultHandler.Delete)
				r.Post("/{id}/meta", resultHandler.RegenerateMeta)
			})
		})
	})

	router.Get("/titles", resultHandler.Titles)

	router.Route("/seasons", func(r chi.Router) {
		r.Get("/", seasonHandler.List)
		r.Get("/{year}", seasonHandler.BySeason)
	})

	router.Route("/schools", func(r chi.Router) {
		r.Get("/letters", schoolHandler.Letters)
		r.Get("/history", schoolHandler.History)
		r.Get("/{letter}", schoolHandler.ByLetter)
	})

	router.Route("/images", func(r chi.Router) {
		r.Get("/logos", imageHandler.ListLogos)
		r.Get("/logos/{name}", imageHandler.GetLogo)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate, auth.RequireAdmin)
			r.Post("/logos/{name}", imageHandler.UploadLogo)
			r.Delete("/logos/{name}", imageHandler.DeleteLogo)
		})
	})

	router.Get("/ws/results", wsHandler.Results)
}
