package interfaces

import (
	"github.com/google/wire"

	"jan-server/services/support-chat-api/internal/interfaces/httpserver"
	"jan-server/services/support-chat-api/internal/interfaces/httpserver/handlers"
)

// InterfacesProvider provides all interface layer dependencies.
var InterfacesProvider = wire.NewSet(
	handlers.HandlerProvider,
	httpserver.New,
)
