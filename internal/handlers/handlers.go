package handlers

import (
	"github.com/01moynul/starter-api/internal/auth"
	"github.com/01moynul/starter-api/internal/database"
	"go.uber.org/zap"
)

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	DB     *database.Handle // Shared connectivity handle, opened once in main
	Signer *auth.Signer     // Issues and checks JWT_AUTH_SECRET tokens
	Log    *zap.Logger
}
