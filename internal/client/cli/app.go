package cli

import (
	"bufio"
	"context"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
)

type App struct {
	config  *config.Config
	client  client.Client
	reader  *bufio.Reader
	session string // email of the logged-in user
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewGRPCClient(c.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}

	return &App{config: c, client: apiClient, reader: bufio.NewReader(os.Stdin)}, nil
}

// Run starts the REPL and blocks until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	defer a.client.Close()
	printlnFn("gophauth client, connected to", a.config.ServerEndpointAddr+". Type help for commands.")
	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.client.LoggedIn()
}

func (a *App) status() string {
	if !a.isLoggedIn() {
		return "guest"
	}
	return a.session
}

func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := 10 * time.Second
	if a.config != nil && a.config.RequestTimeout > 0 {
		timeout = a.config.RequestTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
