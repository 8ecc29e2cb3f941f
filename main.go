package main

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"wavechat/database"
	"wavechat/handlers"
	"wavechat/middleware"
	"wavechat/relay"
)

func main() {
	// No .env file is fine; fall back to the process environment.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "wavechat.db"
	}

	store, err := database.Open(dbPath, logger)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	defer store.Close()

	rel := relay.New(store, logger)
	auth := handlers.NewAuth(store, logger)
	requireAuth := middleware.Auth(store)

	r := mux.NewRouter()
	r.HandleFunc("/api/register", auth.Register).Methods("POST")
	r.HandleFunc("/api/login", auth.Login).Methods("POST")
	r.HandleFunc("/api/logout", auth.Logout).Methods("POST")
	r.Handle("/api/me", requireAuth(http.HandlerFunc(auth.Me))).Methods("GET")
	r.Handle("/ws", requireAuth(relay.ServeWS(rel, logger)))

	logger.Info("server starting", zap.String("port", port))
	if err := http.ListenAndServe(":"+port, r); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
