package http

import (
	"log/slog"
	"net/http"
	"time"

	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterDeps struct {
	Handler        *Handler
	WS             http.HandlerFunc
	Metrics        http.Handler
	Logger         *slog.Logger
	AllowedOrigins []string
}

func NewRouter(d RouterDeps) http.Handler {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(httpmw.RequestID)
	r.Use(httpmw.Logging(log))

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", httpmw.HeaderRequestID, httpmw.HeaderUserID, httpmw.HeaderUserName},
		ExposedHeaders: []string{httpmw.HeaderRequestID},
		MaxAge:         300,
	}))

	// WS endpoint, identity comes from the query string
	if d.WS != nil {
		r.Get("/ws", d.WS)
	}

	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.Identity)
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Post("/messages", d.Handler.SendMessage)
		pr.Get("/chats/{id}", d.Handler.GetChat)

		pr.Route("/me", func(me chi.Router) {
			me.Get("/chatrooms", d.Handler.GetChatrooms)
			me.Get("/language", d.Handler.GetLanguage)
			me.Put("/language", d.Handler.PutLanguage)
			me.Put("/push-token", d.Handler.PutPushToken)
		})
	})

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
