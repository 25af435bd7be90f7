package builder

import (
	"os"

	"github.com/agentflowhq/agentflow/config"
	"github.com/agentflowhq/agentflow/server"
)

// BuildServer wires a RunnerSet's agents and a config.File's ServerConfig
// into a server.Server. JWTSecretEnv, when set, is resolved from the
// environment into the bearer secret AuthMiddleware checks; EnableWS mounts
// the websocket gateway alongside the SSE endpoint.
func BuildServer(file *config.File, rs *RunnerSet) *server.Server {
	var secret string
	if file.Server.JWTSecretEnv != "" {
		secret = os.Getenv(file.Server.JWTSecretEnv)
	}
	return server.New(server.Config{
		Runners:   rs.Runners,
		JWTSecret: secret,
		EnableWS:  file.Server.EnableWS,
	})
}
